package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/domain"
	"github.com/MorseWayne/shopcart/internal/middleware"
	"github.com/MorseWayne/shopcart/internal/resp"
	"github.com/MorseWayne/shopcart/internal/service"
)

// CheckoutHandler 结算处理器
type CheckoutHandler struct {
	checkout service.CheckoutService
	logger   *zap.Logger
}

// NewCheckoutHandler 创建结算处理器实例
func NewCheckoutHandler(checkout service.CheckoutService, logger *zap.Logger) *CheckoutHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutHandler{checkout: checkout, logger: logger}
}

// Submit 提交结算表单
// POST /api/v1/checkout
func (h *CheckoutHandler) Submit(c *gin.Context) {
	var req domain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("checkout validation failed",
			zap.String("request_id", getRequestID(c)), zap.Error(err))
		badRequest(c, "invalid customer details")
		return
	}

	ack, err := h.checkout.Submit(c.Request.Context(), middleware.CartSessionID(c), &req)
	if err != nil {
		fail(c, h.logger, err, resp.CodeInternalError)
		return
	}
	success(c, ack)
}
