package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache 进程内实现，单实例部署和测试使用。
// 过期条目在读取时惰性删除，也可由 Sweep 批量回收。
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

type entry struct {
	data     []byte
	deadline time.Time // 零值表示不过期
}

func (e entry) live(now time.Time) bool {
	return e.deadline.IsZero() || !now.After(e.deadline)
}

var _ Sweeper = (*MemoryCache)(nil)

// NewMemoryCache 创建内存缓存实例
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]entry), now: time.Now}
}

func (m *MemoryCache) lookup(key string) (entry, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return entry{}, false
	}
	if !e.live(m.now()) {
		m.mu.Lock()
		// 期间可能已被重新写入
		if cur, ok := m.entries[key]; ok && !cur.live(m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return entry{}, false
	}
	return e, true
}

// Get 读取并解码
func (m *MemoryCache) Get(_ context.Context, key string, dest any) error {
	e, ok := m.lookup(key)
	if !ok {
		return ErrCacheMiss
	}
	return decode(key, e.data, dest)
}

// Set 编码后写入
func (m *MemoryCache) Set(_ context.Context, key string, value any, expiration time.Duration) error {
	data, err := encode(key, value)
	if err != nil {
		return err
	}
	e := entry{data: data}
	if expiration > 0 {
		e.deadline = m.now().Add(expiration)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.lookup(key)
	return ok, nil
}

// Sweep 删除所有已过期条目，返回删除数量
func (m *MemoryCache) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if !e.live(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Len 当前条目数（含尚未回收的过期条目）
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryCache) Ping(context.Context) error { return nil }

// Close 清空所有条目
func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.entries = make(map[string]entry)
	m.mu.Unlock()
	return nil
}
