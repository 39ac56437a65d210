package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/domain"
)

// CartView 购物车对外展示形态
type CartView struct {
	Items      []domain.CartLineItem `json:"items"`
	TotalItems int                   `json:"totalItems"`
	TotalPrice float64               `json:"totalPrice"`
	IsOpen     bool                  `json:"isOpen"`
	Summary    domain.CartSummary    `json:"summary"`
}

// CartService 购物车操作。所有变更都在会话锁内完成，并经防抖写回快照。
type CartService interface {
	View(ctx context.Context, sessionID string) (*CartView, error)
	AddItem(ctx context.Context, sessionID, uniqueID string) (*CartView, error)
	UpdateQuantity(ctx context.Context, sessionID, uniqueID string, quantity int) (*CartView, error)
	RemoveItem(ctx context.Context, sessionID, uniqueID string) (*CartView, error)
	Clear(ctx context.Context, sessionID string) (*CartView, error)
	Toggle(ctx context.Context, sessionID string) (*CartView, error)
}

type cartService struct {
	sessions *SessionRegistry
	catalog  CatalogService
	pricing  domain.PricingPolicy
	logger   *zap.Logger
}

// NewCartService 创建购物车服务
func NewCartService(sessions *SessionRegistry, cs CatalogService, pricing domain.PricingPolicy, logger *zap.Logger) CartService {
	return &cartService{
		sessions: sessions,
		catalog:  cs,
		pricing:  pricing,
		logger:   logger,
	}
}

// NewCartView 由购物车生成展示形态
func NewCartView(c *domain.Cart, pricing domain.PricingPolicy) *CartView {
	return &CartView{
		Items:      c.Items(),
		TotalItems: c.TotalItems(),
		TotalPrice: c.TotalPrice(),
		IsOpen:     c.IsOpen(),
		Summary:    c.Summary(pricing),
	}
}

// mutate 在会话锁内执行变更并安排写回
func (s *cartService) mutate(ctx context.Context, sessionID string, fn func(sess *Session) error) (*CartView, error) {
	var view *CartView
	err := s.sessions.With(ctx, sessionID, func(sess *Session) error {
		if err := fn(sess); err != nil {
			return err
		}
		sess.CartChanged()
		view = NewCartView(sess.Cart(), s.pricing)
		return nil
	})
	return view, err
}

func (s *cartService) View(ctx context.Context, sessionID string) (*CartView, error) {
	var view *CartView
	err := s.sessions.With(ctx, sessionID, func(sess *Session) error {
		view = NewCartView(sess.Cart(), s.pricing)
		return nil
	})
	return view, err
}

// AddItem 按 uniqueId 在会话目录中查找商品并加入购物车
func (s *cartService) AddItem(ctx context.Context, sessionID, uniqueID string) (*CartView, error) {
	s.catalog.EnsureLoaded(ctx)

	return s.mutate(ctx, sessionID, func(sess *Session) error {
		rec, ok := sess.Store().Find(uniqueID)
		if !ok {
			return ErrProductNotFound
		}
		sess.Cart().AddItem(rec.Normalize())
		s.logger.Debug("cart item added",
			zap.String("session_id", sessionID),
			zap.String("unique_id", uniqueID))
		return nil
	})
}

func (s *cartService) UpdateQuantity(ctx context.Context, sessionID, uniqueID string, quantity int) (*CartView, error) {
	return s.mutate(ctx, sessionID, func(sess *Session) error {
		return sess.Cart().UpdateQuantity(uniqueID, quantity)
	})
}

func (s *cartService) RemoveItem(ctx context.Context, sessionID, uniqueID string) (*CartView, error) {
	return s.mutate(ctx, sessionID, func(sess *Session) error {
		sess.Cart().RemoveItem(uniqueID)
		return nil
	})
}

func (s *cartService) Clear(ctx context.Context, sessionID string) (*CartView, error) {
	return s.mutate(ctx, sessionID, func(sess *Session) error {
		sess.Cart().ClearCart()
		return nil
	})
}

func (s *cartService) Toggle(ctx context.Context, sessionID string) (*CartView, error) {
	return s.mutate(ctx, sessionID, func(sess *Session) error {
		sess.Cart().ToggleCart()
		return nil
	})
}
