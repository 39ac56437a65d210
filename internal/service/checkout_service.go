package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/domain"
)

// CheckoutService 结算占位实现：确认订单并清空购物车，不保存订单
type CheckoutService interface {
	Submit(ctx context.Context, sessionID string, req *domain.CheckoutRequest) (*domain.OrderAck, error)
}

type checkoutService struct {
	sessions *SessionRegistry
	pricing  domain.PricingPolicy
	logger   *zap.Logger
}

// NewCheckoutService 创建结算服务
func NewCheckoutService(sessions *SessionRegistry, pricing domain.PricingPolicy, logger *zap.Logger) CheckoutService {
	return &checkoutService{sessions: sessions, pricing: pricing, logger: logger}
}

// Submit 空购物车返回 domain.ErrEmptyCart；成功后购物车被清空并立即持久化
func (s *checkoutService) Submit(ctx context.Context, sessionID string, req *domain.CheckoutRequest) (*domain.OrderAck, error) {
	var ack *domain.OrderAck
	err := s.sessions.With(ctx, sessionID, func(sess *Session) error {
		cart := sess.Cart()
		if cart.IsEmpty() {
			return domain.ErrEmptyCart
		}

		ack = &domain.OrderAck{
			OrderRef:    uuid.NewString(),
			Customer:    req.Customer,
			Items:       cart.Items(),
			Summary:     cart.Summary(s.pricing),
			SubmittedAt: time.Now().UTC(),
		}

		cart.ClearCart()
		if err := sess.SaveNow(ctx); err != nil {
			// 订单已确认，快照写回失败只记录日志
			s.logger.Error("failed to persist cleared cart",
				zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	s.logger.Info("checkout submitted",
		zap.String("order_ref", ack.OrderRef),
		zap.String("session_id", sessionID),
		zap.Int("total_items", ack.Summary.TotalItems),
		zap.Float64("total", ack.Summary.Total))
	return ack, nil
}
