package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/api"
	"github.com/MorseWayne/shopcart/internal/limiter"
	mw "github.com/MorseWayne/shopcart/internal/middleware"
)

// RegisterCatalogRoutes 注册目录浏览相关路由
func RegisterCatalogRoutes(r *gin.RouterGroup, h *api.CatalogHandler, searchLimiter limiter.Limiter, lg *zap.Logger) {
	catalog := r.Group("/catalog")
	{
		catalog.GET("/products", h.ListProducts)
		catalog.GET("/products/:uniqueId", h.GetProduct)
		catalog.GET("/categories", h.Categories)
		catalog.GET("/status", h.Status)
		catalog.POST("/refresh", h.Refresh)
		catalog.POST("/normalize", h.Normalize)

		filter := catalog.Group("/filter")
		{
			filter.GET("", h.GetFilter)
			filter.PATCH("", h.UpdateFilter)
			filter.DELETE("", h.ResetFilter)
		}

		// 远程搜索会打到上游，单独限流
		search := []gin.HandlerFunc{h.Search}
		if searchLimiter != nil {
			search = append([]gin.HandlerFunc{
				limiter.SearchRateLimitMiddleware(searchLimiter, mw.ContextKeyCartSession, mw.ContextKeyNewCartSession, lg),
			}, search...)
		}
		catalog.GET("/search", search...)
	}
}

// RegisterCartRoutes 注册购物车与结算路由
func RegisterCartRoutes(r *gin.RouterGroup, cart *api.CartHandler, checkout *api.CheckoutHandler) {
	c := r.Group("/cart")
	{
		c.GET("", cart.GetCart)
		c.DELETE("", cart.ClearCart)
		c.POST("/toggle", cart.ToggleCart)

		items := c.Group("/items")
		{
			items.POST("", cart.AddItem)
			items.PUT("/:uniqueId", cart.UpdateItem)
			items.DELETE("/:uniqueId", cart.RemoveItem)
		}
	}

	r.POST("/checkout", checkout.Submit)
}
