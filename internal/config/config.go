// Package config 负责从 .env 文件与环境变量加载应用配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用全部配置
type Config struct {
	App        AppConfig
	Log        LogConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Migrations MigrationsConfig
	CORS       CORSConfig
	Session    SessionConfig
	Catalog    CatalogConfig
	Cart       CartConfig
	Checkout   CheckoutConfig
	Limiter    LimiterConfig
}

// AppConfig 基础应用配置
type AppConfig struct {
	Name            string
	Env             string // dev / test / prod
	Version         string
	Port            int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string // debug / info / warn / error
	Encoding string // json / console
}

// DatabaseConfig MySQL 连接配置
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr 返回 host:port 形式的地址
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// CacheConfig 上游目录缓存配置
type CacheConfig struct {
	Enabled bool
	Type    string // redis / memory
	TTL     time.Duration
}

// MigrationsConfig 数据库迁移配置
type MigrationsConfig struct {
	Dir string
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SessionConfig 购物车会话令牌配置
type SessionConfig struct {
	Secret      string
	TokenTTL    time.Duration
	IdleTimeout time.Duration // 内存中会话的空闲回收时间
}

// CatalogConfig 两个上游商品目录的地址
type CatalogConfig struct {
	FakeStoreURL   string
	DummyJSONURL   string
	DummyJSONLimit int
	FetchTimeout   time.Duration
	RelatedLimit   int
}

// CartConfig 购物车快照持久化配置
type CartConfig struct {
	Store        string // mysql / redis / memory
	StorageKey   string
	SnapshotTTL  time.Duration
	PersistDelay time.Duration // 写回防抖间隔
}

// CheckoutConfig 结算金额规则
type CheckoutConfig struct {
	TaxRate               float64
	FreeShippingThreshold float64
	ShippingFee           float64
}

// LimiterConfig 远程搜索限流配置
type LimiterConfig struct {
	Enabled bool
	Rate    int64
	Burst   int64
	Window  time.Duration
}

// Load 加载配置：先读取 .env（可选），再读取环境变量并校验。
func Load() (*Config, error) {
	// .env 不存在时忽略，环境变量可以由部署平台注入
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:            getString("APP_NAME", "shopcart"),
			Env:             getString("APP_ENV", "dev"),
			Version:         getString("APP_VERSION", "0.1.0"),
			Port:            getInt("APP_PORT", 8080),
			RequestTimeout:  getDuration("APP_REQUEST_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDuration("APP_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Log: LogConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Database: DatabaseConfig{
			Enabled:  getBool("DB_ENABLED", false),
			Host:     getString("DB_HOST", "127.0.0.1"),
			Port:     getInt("DB_PORT", 3306),
			User:     getString("DB_USER", "root"),
			Password: getString("DB_PASSWORD", ""),
			DBName:   getString("DB_NAME", "shopcart"),
		},
		Redis: RedisConfig{
			Enabled:  getBool("REDIS_ENABLED", false),
			Host:     getString("REDIS_HOST", "127.0.0.1"),
			Port:     getInt("REDIS_PORT", 6379),
			Password: getString("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled: getBool("CACHE_ENABLED", true),
			Type:    getString("CACHE_TYPE", "memory"),
			TTL:     getDuration("CACHE_TTL", 5*time.Minute),
		},
		Migrations: MigrationsConfig{
			Dir: getString("MIGRATIONS_DIR", "migrations"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders: getList("CORS_ALLOWED_HEADERS", []string{"Content-Type", "X-Request-ID", "X-Cart-Session"}),
		},
		Session: SessionConfig{
			Secret:      getString("SESSION_SECRET", ""),
			TokenTTL:    getDuration("SESSION_TOKEN_TTL", 30*24*time.Hour),
			IdleTimeout: getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		},
		Catalog: CatalogConfig{
			FakeStoreURL:   getString("CATALOG_FAKESTORE_URL", "https://fakestoreapi.com"),
			DummyJSONURL:   getString("CATALOG_DUMMYJSON_URL", "https://dummyjson.com"),
			DummyJSONLimit: getInt("CATALOG_DUMMYJSON_LIMIT", 100),
			FetchTimeout:   getDuration("CATALOG_FETCH_TIMEOUT", 8*time.Second),
			RelatedLimit:   getInt("CATALOG_RELATED_LIMIT", 4),
		},
		Cart: CartConfig{
			Store:        getString("CART_STORE", "memory"),
			StorageKey:   getString("CART_STORAGE_KEY", "ecommerce-cart-storage"),
			SnapshotTTL:  getDuration("CART_SNAPSHOT_TTL", 7*24*time.Hour),
			PersistDelay: getDuration("CART_PERSIST_DELAY", 500*time.Millisecond),
		},
		Checkout: CheckoutConfig{
			TaxRate:               getFloat("CHECKOUT_TAX_RATE", 0.08),
			FreeShippingThreshold: getFloat("CHECKOUT_FREE_SHIPPING_THRESHOLD", 50),
			ShippingFee:           getFloat("CHECKOUT_SHIPPING_FEE", 5.99),
		},
		Limiter: LimiterConfig{
			Enabled: getBool("LIMITER_ENABLED", true),
			Rate:    int64(getInt("LIMITER_RATE", 20)),
			Burst:   int64(getInt("LIMITER_BURST", 40)),
			Window:  getDuration("LIMITER_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置的合法性
func (c *Config) Validate() error {
	var errs []error

	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT out of range: %d", c.App.Port))
	}
	if c.App.Env == "prod" && c.Session.Secret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required in prod"))
	}
	if c.Session.Secret == "" {
		// 非生产环境使用固定开发密钥，便于本地调试
		c.Session.Secret = "dev-only-session-secret"
	}

	switch c.Cache.Type {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("CACHE_TYPE must be redis or memory, got %q", c.Cache.Type))
	}

	switch c.Cart.Store {
	case "mysql":
		if !c.Database.Enabled {
			errs = append(errs, errors.New("CART_STORE=mysql requires DB_ENABLED=true"))
		}
	case "redis":
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("CART_STORE=redis requires REDIS_ENABLED=true"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("CART_STORE must be mysql, redis or memory, got %q", c.Cart.Store))
	}

	if c.Checkout.TaxRate < 0 || c.Checkout.TaxRate > 1 {
		errs = append(errs, fmt.Errorf("CHECKOUT_TAX_RATE must be within [0,1], got %v", c.Checkout.TaxRate))
	}
	if c.Limiter.Enabled && (c.Limiter.Rate <= 0 || c.Limiter.Window <= 0) {
		errs = append(errs, errors.New("LIMITER_RATE and LIMITER_WINDOW must be positive"))
	}

	return errors.Join(errs...)
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getInt(key string, def int) int {
	if v := getString(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := getString(key, ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := getString(key, ""); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := getString(key, ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getList(key string, def []string) []string {
	v := getString(key, "")
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
