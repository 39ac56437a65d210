package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter 进程内令牌桶，每个 key 一个 rate.Limiter。
// 未配置 Redis 时使用；多实例部署时各实例分别计数。
type MemoryLimiter struct {
	config *Config
	limit  rate.Limit
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*memoryBucket
}

type memoryBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter 创建进程内限流器
func NewMemoryLimiter(config *Config) (*MemoryLimiter, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &MemoryLimiter{
		config:  config,
		limit:   rate.Limit(float64(config.Rate) / config.Window.Seconds()),
		now:     time.Now,
		buckets: make(map[string]*memoryBucket),
	}, nil
}

// Allow 检查是否允许请求通过
func (m *MemoryLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	return m.AllowN(ctx, key, 1)
}

// AllowN 检查是否允许N个请求通过；被拒绝时不消耗令牌
func (m *MemoryLimiter) AllowN(ctx context.Context, key string, n int64) (*LimitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := m.now()
	l := m.bucket(key, now)

	r := l.ReserveN(now, int(n))
	result := &LimitResult{Limit: m.config.Burst}
	if !r.OK() {
		// n 超过桶容量，永远无法满足
		result.RetryAfter = m.config.Window
		return result, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		result.RetryAfter = delay
		result.Remaining = int64(l.TokensAt(now))
		return result, nil
	}

	result.Allowed = true
	result.Remaining = int64(l.TokensAt(now))
	return result, nil
}

// Reset 重置限流状态
func (m *MemoryLimiter) Reset(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets, key)
	return nil
}

// Cleanup 删除空闲超过 idle 的桶，返回删除数量
func (m *MemoryLimiter) Cleanup(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
			removed++
		}
	}
	return removed
}

func (m *MemoryLimiter) bucket(key string, now time.Time) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok {
		b = &memoryBucket{limiter: rate.NewLimiter(m.limit, int(m.config.Burst))}
		m.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}
