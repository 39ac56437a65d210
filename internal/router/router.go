// Package router 提供 HTTP 路由设置和中间件配置功能
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/api"
	"github.com/MorseWayne/shopcart/internal/config"
	"github.com/MorseWayne/shopcart/internal/limiter"
	mw "github.com/MorseWayne/shopcart/internal/middleware"
	"github.com/MorseWayne/shopcart/internal/resp"
	"github.com/MorseWayne/shopcart/internal/service"
)

// Dependencies 包含路由设置所需的所有依赖
type Dependencies struct {
	CatalogHandler  *api.CatalogHandler
	CartHandler     *api.CartHandler
	CheckoutHandler *api.CheckoutHandler
	Catalog         service.CatalogService
	SessionTokens   service.SessionTokenService
	SearchLimiter   limiter.Limiter // nil 表示不限流
}

// Router 路由器接口
type Router interface {
	Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler
}

// GinRouter Gin路由器实现
type GinRouter struct {
	engine *gin.Engine
	cfg    *config.Config
	deps   *Dependencies
	logger *zap.Logger
}

// New 创建新的路由器实例
func New() Router {
	return &GinRouter{}
}

// Setup 设置路由，并在 gin 引擎外层包上 net/http 中间件链
func (r *GinRouter) Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler {
	// 根据环境设置 Gin 模式
	switch cfg.App.Env {
	case "prod":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r.engine = gin.New()
	r.engine.HandleMethodNotAllowed = true
	r.cfg = cfg
	r.deps = deps
	r.logger = lg

	r.setupRoutes()

	return Chain(cfg, r.engine, lg)
}

// Chain 构建中间件链：请求进入时执行顺序为 access log → CORS → timeout → recovery → request ID
// 响应返回时执行顺序相反
func Chain(cfg *config.Config, h http.Handler, lg *zap.Logger) http.Handler {
	handler := mw.RequestID(h)
	handler = mw.Recovery(lg)(handler)
	handler = mw.Timeout(cfg.App.RequestTimeout)(handler)
	handler = mw.CORS(cfg.CORS)(handler)
	handler = mw.AccessLog(lg)(handler)
	return handler
}

// setupRoutes 设置所有路由
func (r *GinRouter) setupRoutes() {
	// 健康检查
	r.engine.GET("/healthz", r.healthCheck)

	r.engine.NoRoute(func(c *gin.Context) {
		resp.Error(c.Writer, http.StatusNotFound, resp.CodeNotFound, "route not found",
			mw.RequestIDFromContext(c.Request.Context()), "")
	})
	r.engine.NoMethod(func(c *gin.Context) {
		resp.Error(c.Writer, http.StatusMethodNotAllowed, resp.CodeInvalidParam, "method not allowed",
			mw.RequestIDFromContext(c.Request.Context()), "")
	})

	// API v1 路由组，所有接口都挂在匿名购物车会话上
	v1 := r.engine.Group("/api/v1")
	v1.Use(mw.CartSession(r.deps.SessionTokens, r.logger))

	RegisterCatalogRoutes(v1, r.deps.CatalogHandler, r.deps.SearchLimiter, r.logger)
	RegisterCartRoutes(v1, r.deps.CartHandler, r.deps.CheckoutHandler)
}

// healthCheck 健康检查处理器；目录过期时仍返回 200，由 status 字段体现
func (r *GinRouter) healthCheck(c *gin.Context) {
	status := r.deps.Catalog.Status()
	state := "ok"
	if status.Stale || status.Version == 0 {
		state = "degraded"
	}
	resp.OK(c.Writer, gin.H{
		"status":  state,
		"version": r.cfg.App.Version,
		"catalog": status,
	}, mw.RequestIDFromContext(c.Request.Context()), "")
}
