package repo

import (
	"context"
	"time"

	"github.com/MorseWayne/shopcart/internal/cache"
	"github.com/MorseWayne/shopcart/internal/domain"
)

// CachedCartSnapshotRepository 带缓存的快照仓储：读穿透，写入时先写底层存储再刷新缓存
type CachedCartSnapshotRepository struct {
	repo   CartSnapshotRepository
	cache  cache.Cache
	prefix string
	ttl    time.Duration
}

// NewCachedCartSnapshotRepository 创建带缓存的快照仓储
func NewCachedCartSnapshotRepository(repo CartSnapshotRepository, cache cache.Cache, prefix string, ttl time.Duration) CartSnapshotRepository {
	return &CachedCartSnapshotRepository{
		repo:   repo,
		cache:  cache,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Load 读取快照（带缓存）
func (r *CachedCartSnapshotRepository) Load(ctx context.Context, sessionID string) (*domain.CartSnapshot, error) {
	cacheKey := r.cacheKey(sessionID)

	// 尝试从缓存获取
	var snap domain.CartSnapshot
	if err := r.cache.Get(ctx, cacheKey, &snap); err == nil {
		return &snap, nil
	}

	// 缓存未命中，从底层存储获取
	result, err := r.repo.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	// 写入缓存
	r.cache.Set(ctx, cacheKey, result, r.ttl)
	return result, nil
}

// Save 写入快照并刷新缓存
func (r *CachedCartSnapshotRepository) Save(ctx context.Context, sessionID string, snap domain.CartSnapshot) error {
	if err := r.repo.Save(ctx, sessionID, snap); err != nil {
		// 底层写入失败时清除缓存，避免读到未持久化的数据
		r.cache.Del(ctx, r.cacheKey(sessionID))
		return err
	}
	r.cache.Set(ctx, r.cacheKey(sessionID), snap, r.ttl)
	return nil
}

// Delete 删除快照并清除缓存
func (r *CachedCartSnapshotRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.repo.Delete(ctx, sessionID); err != nil {
		return err
	}
	r.cache.Del(ctx, r.cacheKey(sessionID))
	return nil
}

func (r *CachedCartSnapshotRepository) cacheKey(sessionID string) string {
	return "cache:" + StorageKey(r.prefix, sessionID)
}
