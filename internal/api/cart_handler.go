package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/domain"
	"github.com/MorseWayne/shopcart/internal/middleware"
	"github.com/MorseWayne/shopcart/internal/resp"
	"github.com/MorseWayne/shopcart/internal/service"
)

// CartHandler 购物车相关的HTTP处理器
type CartHandler struct {
	cart   service.CartService
	logger *zap.Logger
}

// NewCartHandler 创建购物车处理器实例
func NewCartHandler(cart service.CartService, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{cart: cart, logger: logger}
}

func (h *CartHandler) respond(c *gin.Context, view *service.CartView, err error) {
	if err != nil {
		fail(c, h.logger, err, resp.CodeInternalError)
		return
	}
	success(c, view)
}

// GetCart 当前购物车
// GET /api/v1/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	view, err := h.cart.View(c.Request.Context(), middleware.CartSessionID(c))
	h.respond(c, view, err)
}

// AddItem 加入购物车，已存在时数量加一
// POST /api/v1/cart/items {"uniqueId": "fs-1"}
func (h *CartHandler) AddItem(c *gin.Context) {
	var req domain.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "uniqueId is required")
		return
	}
	view, err := h.cart.AddItem(c.Request.Context(), middleware.CartSessionID(c), req.UniqueID)
	h.respond(c, view, err)
}

// UpdateItem 设置数量，0 表示移除，负数返回 400
// PUT /api/v1/cart/items/:uniqueId {"quantity": 3}
func (h *CartHandler) UpdateItem(c *gin.Context) {
	var req domain.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "quantity is required")
		return
	}
	view, err := h.cart.UpdateQuantity(c.Request.Context(), middleware.CartSessionID(c), c.Param("uniqueId"), *req.Quantity)
	h.respond(c, view, err)
}

// RemoveItem 移除商品；不在购物车中时为空操作
// DELETE /api/v1/cart/items/:uniqueId
func (h *CartHandler) RemoveItem(c *gin.Context) {
	view, err := h.cart.RemoveItem(c.Request.Context(), middleware.CartSessionID(c), c.Param("uniqueId"))
	h.respond(c, view, err)
}

// ClearCart 清空购物车
// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	view, err := h.cart.Clear(c.Request.Context(), middleware.CartSessionID(c))
	h.respond(c, view, err)
}

// ToggleCart 切换购物车抽屉的展开状态
// POST /api/v1/cart/toggle
func (h *CartHandler) ToggleCart(c *gin.Context) {
	view, err := h.cart.Toggle(c.Request.Context(), middleware.CartSessionID(c))
	h.respond(c, view, err)
}
