package limiter

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/resp"
)

// allowTimeout 单次限流判定的上限，超时按限流器故障处理
const allowTimeout = 500 * time.Millisecond

const (
	headerLimit      = "X-RateLimit-Limit"
	headerRemaining  = "X-RateLimit-Remaining"
	headerRetryAfter = "Retry-After"
)

// Guard 把 Limiter 挂到 gin 路由上
type Guard struct {
	limiter Limiter
	scope   string
	key     func(*gin.Context) string
	logger  *zap.Logger
}

// NewGuard scope 作为计数键的前缀，区分不同接口的配额
func NewGuard(l Limiter, scope string, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guard{limiter: l, scope: scope, logger: logger}
	g.key = g.byClientIP
	return g
}

// BySession 按 gin 上下文中的会话 ID 计数。
// 没有会话，或会话是本次请求才新开的（freshKey 为 true）时按客户端 IP 计数，
// 否则不带令牌的客户端每次都拿到新会话和满额配额。
func (g *Guard) BySession(sessionKey, freshKey string) *Guard {
	g.key = func(c *gin.Context) string {
		if c.GetBool(freshKey) {
			return g.byClientIP(c)
		}
		if sid := c.GetString(sessionKey); sid != "" {
			return g.scope + ":session:" + sid
		}
		return g.byClientIP(c)
	}
	return g
}

func (g *Guard) byClientIP(c *gin.Context) string {
	return g.scope + ":ip:" + c.ClientIP()
}

// Handler 超出配额返回 429；限流器本身出错时放行并记录日志
func (g *Guard) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), allowTimeout)
		result, err := g.limiter.Allow(ctx, g.key(c))
		cancel()
		if err != nil {
			g.logger.Warn("rate limiter unavailable, allowing request",
				zap.String("scope", g.scope),
				zap.String("path", c.FullPath()),
				zap.Error(err))
			c.Next()
			return
		}

		writeHeaders(c, result)
		if !result.Allowed {
			g.logger.Debug("rate limited", zap.String("scope", g.scope), zap.Duration("retry_after", result.RetryAfter))
			resp.Error(c.Writer, http.StatusTooManyRequests, resp.CodeTooManyReqs,
				"too many requests, please retry later", c.GetString("request_id"), c.GetString("trace_id"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func writeHeaders(c *gin.Context, r *LimitResult) {
	if r.Limit > 0 {
		c.Header(headerLimit, strconv.FormatInt(r.Limit, 10))
	}
	c.Header(headerRemaining, strconv.FormatInt(r.Remaining, 10))
	if !r.Allowed && r.RetryAfter > 0 {
		// 向上取整，至少 1 秒
		c.Header(headerRetryAfter, strconv.FormatInt(int64(math.Ceil(r.RetryAfter.Seconds())), 10))
	}
}

// SearchRateLimitMiddleware 远程搜索限流：按已有购物车会话计数，新会话或无会话时按 IP
func SearchRateLimitMiddleware(l Limiter, sessionKey, freshKey string, logger *zap.Logger) gin.HandlerFunc {
	return NewGuard(l, "search", logger).BySession(sessionKey, freshKey).Handler()
}
