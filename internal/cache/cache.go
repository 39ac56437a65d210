// Package cache 提供键值存储抽象，上游目录缓存和购物车快照共用。
// 实现：进程内 MemoryCache、Redis 以及禁用时的 NullCache。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCacheMiss 键不存在或已过期
	ErrCacheMiss = errors.New("cache miss")
	// ErrCacheDisabled 缓存被禁用
	ErrCacheDisabled = errors.New("cache disabled")
)

// Cache 键值存储接口，值以 JSON 编码保存；expiration <= 0 表示不过期
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Sweeper 需要主动回收过期条目的实现（Redis 自行过期，不需要）
type Sweeper interface {
	Sweep() int
}

func encode(key string, value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return data, nil
}

func decode(key string, data []byte, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// NullCache 禁用缓存时使用：写入丢弃，读取总是 ErrCacheDisabled
type NullCache struct{}

// NewNullCache 创建空缓存实例
func NewNullCache() *NullCache {
	return &NullCache{}
}

func (NullCache) Get(context.Context, string, any) error { return ErrCacheDisabled }

func (NullCache) Set(context.Context, string, any, time.Duration) error { return nil }

func (NullCache) Del(context.Context, ...string) error { return nil }

func (NullCache) Exists(context.Context, string) (bool, error) { return false, nil }

func (NullCache) Ping(context.Context) error { return nil }

func (NullCache) Close() error { return nil }
