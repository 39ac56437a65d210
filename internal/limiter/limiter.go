// Package limiter 提供远程搜索的限流：Redis 令牌桶（多实例共享）与进程内令牌桶。
package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidConfig 限流配置无效
var ErrInvalidConfig = errors.New("invalid limiter config")

// LimitResult 限流结果
type LimitResult struct {
	Allowed    bool          `json:"allowed"`     // 是否允许通过
	Limit      int64         `json:"limit"`       // 桶容量
	Remaining  int64         `json:"remaining"`   // 剩余配额
	RetryAfter time.Duration `json:"retry_after"` // 建议重试时间
}

// Limiter 限流器接口
type Limiter interface {
	// Allow 检查是否允许请求通过
	Allow(ctx context.Context, key string) (*LimitResult, error)

	// AllowN 检查是否允许N个请求通过
	AllowN(ctx context.Context, key string, n int64) (*LimitResult, error)

	// Reset 重置限流状态
	Reset(ctx context.Context, key string) error
}

// Config 限流配置
type Config struct {
	Rate      int64         `json:"rate"`       // 每个时间窗口补充的令牌数
	Window    time.Duration `json:"window"`     // 时间窗口
	Burst     int64         `json:"burst"`      // 桶容量
	KeyPrefix string        `json:"key_prefix"` // Key前缀
}

func (c *Config) validate() error {
	if c == nil || c.Rate <= 0 || c.Window <= 0 {
		return ErrInvalidConfig
	}
	if c.Burst <= 0 {
		c.Burst = c.Rate
	}
	return nil
}

// New 按是否提供 Redis 客户端选择实现：有则使用 Redis 令牌桶，否则使用进程内令牌桶
func New(client redis.Cmdable, config *Config) (Limiter, error) {
	if client != nil {
		return NewTokenBucketLimiter(client, config)
	}
	return NewMemoryLimiter(config)
}
