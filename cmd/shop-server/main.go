package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/api"
	"github.com/MorseWayne/shopcart/internal/cache"
	"github.com/MorseWayne/shopcart/internal/config"
	"github.com/MorseWayne/shopcart/internal/database"
	"github.com/MorseWayne/shopcart/internal/domain"
	"github.com/MorseWayne/shopcart/internal/limiter"
	"github.com/MorseWayne/shopcart/internal/logger"
	"github.com/MorseWayne/shopcart/internal/provider"
	"github.com/MorseWayne/shopcart/internal/repo"
	"github.com/MorseWayne/shopcart/internal/router"
	"github.com/MorseWayne/shopcart/internal/service"
)

// AppDependencies 包含应用的所有依赖
type AppDependencies struct {
	CatalogHandler  *api.CatalogHandler
	CartHandler     *api.CartHandler
	CheckoutHandler *api.CheckoutHandler
	Catalog         service.CatalogService
	Sessions        *service.SessionRegistry
	SessionTokens   service.SessionTokenService
	SearchLimiter   limiter.Limiter
	// Sweepers 需要定期回收过期条目的进程内存储
	Sweepers []cache.Sweeper
}

// initConfigAndLogger 初始化配置和日志器
func initConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %v", err)
	}

	return cfg, lg, nil
}

// initDatabase 初始化数据库连接并执行迁移
func initDatabase(cfg *config.Config, lg *zap.Logger) (*database.DB, error) {
	db, err := database.New(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// 在 HTTP 服务启动前完成迁移
	migrationsDir := cfg.Migrations.Dir
	lg.Sugar().Infow("using migrations directory", "path", migrationsDir)

	if err := db.RunMigrations(migrationsDir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %v", err)
	}

	return db, nil
}

// initRedis 连接 Redis；未启用时返回 nil
func initRedis(cfg *config.Config, lg *zap.Logger) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(cache.RedisOptions{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.App.Name + ":",
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr(), err)
	}
	lg.Sugar().Infow("redis connected", "addr", cfg.Redis.Addr(), "db", cfg.Redis.DB)
	return rc, nil
}

// initCache 初始化上游目录缓存
func initCache(cfg *config.Config, redisCache *cache.RedisCache, lg *zap.Logger) cache.Cache {
	if !cfg.Cache.Enabled {
		lg.Sugar().Infow("cache disabled")
		return cache.NewNullCache()
	}

	switch cfg.Cache.Type {
	case "redis":
		if redisCache != nil {
			lg.Sugar().Infow("cache enabled", "type", "redis", "ttl", cfg.Cache.TTL)
			return redisCache
		}
		lg.Sugar().Warnw("redis unavailable, falling back to memory cache")
		lg.Sugar().Infow("cache enabled", "type", "memory (fallback)", "ttl", cfg.Cache.TTL)
		return cache.NewMemoryCache()
	default:
		lg.Sugar().Infow("cache enabled", "type", "memory", "ttl", cfg.Cache.TTL)
		return cache.NewMemoryCache()
	}
}

// initCartRepository 按 CART_STORE 选择购物车快照存储。
// 返回的 db 在 mysql 模式下非空，由调用方负责关闭。
func initCartRepository(cfg *config.Config, redisCache *cache.RedisCache, cacheInstance cache.Cache, lg *zap.Logger) (repo.CartSnapshotRepository, *database.DB, error) {
	switch cfg.Cart.Store {
	case "mysql":
		db, err := initDatabase(cfg, lg)
		if err != nil {
			return nil, nil, err
		}
		base := repo.NewCartSnapshotRepository(db.DB, cfg.Cart.StorageKey)
		if cfg.Cache.Enabled {
			// 可选缓存装饰器
			return repo.NewCachedCartSnapshotRepository(base, cacheInstance, cfg.Cart.StorageKey, cfg.Cache.TTL), db, nil
		}
		return base, db, nil

	case "redis":
		if redisCache == nil {
			return nil, nil, fmt.Errorf("CART_STORE=redis but redis is not connected")
		}
		return repo.NewKVCartSnapshotRepository(redisCache, cfg.Cart.StorageKey, cfg.Cart.SnapshotTTL), nil, nil

	default:
		lg.Sugar().Warnw("cart snapshots are kept in memory and lost on restart")
		return repo.NewKVCartSnapshotRepository(cache.NewMemoryCache(), cfg.Cart.StorageKey, cfg.Cart.SnapshotTTL), nil, nil
	}
}

// initDependencies 初始化应用依赖（上游目录、服务、处理器）
// limiterClient 为 nil 时搜索限流使用进程内令牌桶
func initDependencies(cfg *config.Config, snapshots repo.CartSnapshotRepository, cacheInstance cache.Cache, limiterClient redis.Cmdable, lg *zap.Logger) (*AppDependencies, error) {
	// 依赖注入链：上游目录 -> 服务 -> API处理器
	var catalogProvider provider.Provider = provider.NewHTTPProvider(provider.HTTPOptions{
		FakeStoreURL:   cfg.Catalog.FakeStoreURL,
		DummyJSONURL:   cfg.Catalog.DummyJSONURL,
		DummyJSONLimit: cfg.Catalog.DummyJSONLimit,
		Timeout:        cfg.Catalog.FetchTimeout,
	}, nil, lg)
	if cfg.Cache.Enabled {
		catalogProvider = provider.NewCachedProvider(catalogProvider, cacheInstance, cfg.Cache.TTL, lg)
	}

	catalogService := service.NewCatalogService(catalogProvider, lg)
	sessions := service.NewSessionRegistry(catalogService, snapshots, service.SessionOptions{
		PersistDelay: cfg.Cart.PersistDelay,
		IdleTimeout:  cfg.Session.IdleTimeout,
	}, lg)
	pricing := domain.PricingPolicy{
		TaxRate:               cfg.Checkout.TaxRate,
		FreeShippingThreshold: cfg.Checkout.FreeShippingThreshold,
		ShippingFee:           cfg.Checkout.ShippingFee,
	}

	browseService := service.NewBrowseService(sessions, catalogService, cfg.Catalog.RelatedLimit, lg)
	cartService := service.NewCartService(sessions, catalogService, pricing, lg)
	checkoutService := service.NewCheckoutService(sessions, pricing, lg)

	deps := &AppDependencies{
		CatalogHandler:  api.NewCatalogHandler(browseService, catalogService, lg),
		CartHandler:     api.NewCartHandler(cartService, lg),
		CheckoutHandler: api.NewCheckoutHandler(checkoutService, lg),
		Catalog:         catalogService,
		Sessions:        sessions,
		SessionTokens:   service.NewSessionTokenService(cfg, lg),
	}
	if sw, ok := cacheInstance.(cache.Sweeper); ok {
		deps.Sweepers = append(deps.Sweepers, sw)
	}

	if cfg.Limiter.Enabled {
		l, err := limiter.New(limiterClient, &limiter.Config{
			Rate:      cfg.Limiter.Rate,
			Burst:     cfg.Limiter.Burst,
			Window:    cfg.Limiter.Window,
			KeyPrefix: cfg.App.Name + ":limiter:search",
		})
		if err != nil {
			return nil, fmt.Errorf("init search limiter: %w", err)
		}
		deps.SearchLimiter = l
		lg.Sugar().Infow("search rate limit enabled",
			"rate", cfg.Limiter.Rate, "burst", cfg.Limiter.Burst, "window", cfg.Limiter.Window,
			"shared", limiterClient != nil)
	}

	return deps, nil
}

// setupRoutes 设置路由和中间件
func setupRoutes(cfg *config.Config, deps *AppDependencies, lg *zap.Logger) http.Handler {
	return router.New().Setup(cfg, &router.Dependencies{
		CatalogHandler:  deps.CatalogHandler,
		CartHandler:     deps.CartHandler,
		CheckoutHandler: deps.CheckoutHandler,
		Catalog:         deps.Catalog,
		SessionTokens:   deps.SessionTokens,
		SearchLimiter:   deps.SearchLimiter,
	}, lg)
}

// startBackground 启动后台任务：首次加载目录、回收空闲会话，以及清理进程内限流桶和过期缓存
func startBackground(ctx context.Context, cfg *config.Config, deps *AppDependencies, lg *zap.Logger) {
	go func() {
		loadCtx, cancel := context.WithTimeout(ctx, 2*cfg.Catalog.FetchTimeout)
		defer cancel()
		if err := deps.Catalog.Refresh(loadCtx, false); err != nil {
			// 首次加载失败不阻止启动，请求到来时会再次尝试
			lg.Sugar().Warnw("initial catalog load failed", "err", err)
			return
		}
		st := deps.Catalog.Status()
		lg.Sugar().Infow("catalog loaded", "version", st.Version, "fs", st.CountA, "dj", st.CountB)
	}()

	interval := cfg.Session.IdleTimeout / 2
	if interval <= 0 {
		interval = time.Minute
	}
	go deps.Sessions.RunJanitor(ctx, interval)

	if ml, ok := deps.SearchLimiter.(*limiter.MemoryLimiter); ok {
		go every(ctx, interval, func() {
			if n := ml.Cleanup(cfg.Limiter.Window); n > 0 {
				lg.Debug("limiter buckets cleaned", zap.Int("count", n))
			}
		})
	}

	for _, sw := range deps.Sweepers {
		go every(ctx, interval, func() {
			if n := sw.Sweep(); n > 0 {
				lg.Debug("expired cache entries swept", zap.Int("count", n))
			}
		})
	}
}

// every 每隔 interval 执行一次 fn，直到 ctx 取消
func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// startServer 启动服务器并处理优雅关闭
func startServer(cfg *config.Config, handler http.Handler, deps *AppDependencies, lg *zap.Logger) {
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	lg.Sugar().Infow("server starting", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	startBackground(bgCtx, cfg, deps, lg)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			lg.Sugar().Errorw("server error", "err", err)
		}
	case <-quit:
		lg.Sugar().Infow("shutdown signal received")
	}

	// 优雅关闭：先停止接收请求，再把未落盘的购物车写回
	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Sugar().Errorw("server shutdown error", "err", err)
	}
	stopBackground()

	flushed := deps.Sessions.FlushAll()
	lg.Sugar().Infow("server exited", "flushed_sessions", flushed)
}

// main 为应用入口，协调各个组件的初始化和启动
func main() {
	// 1) 加载配置和初始化日志
	cfg, lg, err := initConfigAndLogger()
	if err != nil {
		log.Fatalf("failed to initialize config and logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	// 2) 连接 Redis（可选）
	redisCache, err := initRedis(cfg, lg)
	if err != nil {
		if cfg.Cart.Store == "redis" {
			lg.Sugar().Fatalw("redis is required for cart storage", "err", err)
		}
		lg.Sugar().Warnw("redis unavailable, continuing without it", "err", err)
		redisCache = nil
	}
	var limiterClient redis.Cmdable
	if redisCache != nil {
		limiterClient = redisCache.Client()
		defer func() {
			if err := redisCache.Close(); err != nil {
				lg.Sugar().Errorw("failed to close redis connection", "err", err)
			}
		}()
	}

	// 3) 初始化缓存
	cacheInstance := initCache(cfg, redisCache, lg)

	// 4) 购物车快照存储
	snapshots, db, err := initCartRepository(cfg, redisCache, cacheInstance, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to initialize cart storage", "store", cfg.Cart.Store, "err", err)
	}
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				lg.Sugar().Errorw("failed to close database connection", "err", err)
			}
		}()
	}

	// 5) 初始化应用依赖（上游目录、服务、处理器）
	deps, err := initDependencies(cfg, snapshots, cacheInstance, limiterClient, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to initialize dependencies", "err", err)
	}

	// 6) 设置路由和中间件
	handler := setupRoutes(cfg, deps, lg)

	// 7) 启动 HTTP 服务器
	startServer(cfg, handler, deps, lg)
}
