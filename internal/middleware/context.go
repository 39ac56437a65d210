// Package middleware 提供 HTTP 中间件：请求 ID、恢复、超时、CORS、访问日志，以及 gin 的购物车会话中间件。
package middleware

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyCartSession
	ctxKeyAccess
)

// accessInfo 由 AccessLog 放入上下文，内层中间件回填字段供访问日志使用。
// 超时后内层可能仍在运行，所以字段是原子的。
type accessInfo struct {
	cartSession atomic.Value // string
}

func withAccessInfo(ctx context.Context) (context.Context, *accessInfo) {
	info := &accessInfo{}
	return context.WithValue(ctx, ctxKeyAccess, info), info
}

func (a *accessInfo) session() string {
	s, _ := a.cartSession.Load().(string)
	return s
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFromContext 从上下文中读取请求 ID（可能为空）
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

func withCartSession(ctx context.Context, sessionID string) context.Context {
	if info, ok := ctx.Value(ctxKeyAccess).(*accessInfo); ok {
		info.cartSession.Store(sessionID)
	}
	return context.WithValue(ctx, ctxKeyCartSession, sessionID)
}

// CartSessionFromContext 读取 CartSession 中间件写入请求上下文的会话 ID
func CartSessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyCartSession).(string)
	return id
}

// LogFields 请求级日志字段：request_id，以及存在时的 cart_session
func LogFields(ctx context.Context) []zap.Field {
	fields := []zap.Field{zap.String("request_id", RequestIDFromContext(ctx))}
	if sid := CartSessionFromContext(ctx); sid != "" {
		fields = append(fields, zap.String("cart_session", sid))
	}
	return fields
}
