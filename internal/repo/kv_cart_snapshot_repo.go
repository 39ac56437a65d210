package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MorseWayne/shopcart/internal/cache"
	"github.com/MorseWayne/shopcart/internal/domain"
)

// kvCartSnapshotRepo 将快照保存在键值存储（Redis 或内存）中
type kvCartSnapshotRepo struct {
	store  cache.Cache
	prefix string
	ttl    time.Duration
}

// NewKVCartSnapshotRepository 创建键值快照仓储，ttl <= 0 表示不过期
func NewKVCartSnapshotRepository(store cache.Cache, prefix string, ttl time.Duration) CartSnapshotRepository {
	return &kvCartSnapshotRepo{store: store, prefix: prefix, ttl: ttl}
}

func (r *kvCartSnapshotRepo) Load(ctx context.Context, sessionID string) (*domain.CartSnapshot, error) {
	var snap domain.CartSnapshot
	err := r.store.Get(ctx, StorageKey(r.prefix, sessionID), &snap)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) || errors.Is(err, cache.ErrCacheDisabled) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load cart snapshot: %w", err)
	}
	return &snap, nil
}

func (r *kvCartSnapshotRepo) Save(ctx context.Context, sessionID string, snap domain.CartSnapshot) error {
	if err := r.store.Set(ctx, StorageKey(r.prefix, sessionID), snap, r.ttl); err != nil {
		return fmt.Errorf("failed to save cart snapshot: %w", err)
	}
	return nil
}

func (r *kvCartSnapshotRepo) Delete(ctx context.Context, sessionID string) error {
	if err := r.store.Del(ctx, StorageKey(r.prefix, sessionID)); err != nil {
		return fmt.Errorf("failed to delete cart snapshot: %w", err)
	}
	return nil
}
