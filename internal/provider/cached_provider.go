package provider

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/cache"
	"github.com/MorseWayne/shopcart/internal/domain"
)

// 缓存键前缀
const (
	catalogKeyPrefix    = "catalog:records:"
	categoriesKeyPrefix = "catalog:categories:"
	searchKeyPrefix     = "catalog:search:"
)

// CachedProvider 带缓存的目录数据源。
// 记录以带标签的 JSON 形式缓存，命中时无需重新判断来源。
type CachedProvider struct {
	next   Provider
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProvider 创建带缓存的 Provider
func NewCachedProvider(next Provider, c cache.Cache, ttl time.Duration, logger *zap.Logger) Provider {
	return &CachedProvider{next: next, cache: c, ttl: ttl, logger: logger}
}

func (p *CachedProvider) FetchCatalogA(ctx context.Context) ([]domain.SourceRecord, error) {
	return cachedRecords(ctx, p, catalogKeyPrefix+string(domain.SourceFakeStore), p.next.FetchCatalogA)
}

func (p *CachedProvider) FetchCatalogB(ctx context.Context) ([]domain.SourceRecord, error) {
	return cachedRecords(ctx, p, catalogKeyPrefix+string(domain.SourceDummyJSON), p.next.FetchCatalogB)
}

func (p *CachedProvider) FetchCategoriesA(ctx context.Context) ([]any, error) {
	return cachedCategories(ctx, p, categoriesKeyPrefix+string(domain.SourceFakeStore), p.next.FetchCategoriesA)
}

func (p *CachedProvider) FetchCategoriesB(ctx context.Context) ([]any, error) {
	return cachedCategories(ctx, p, categoriesKeyPrefix+string(domain.SourceDummyJSON), p.next.FetchCategoriesB)
}

func (p *CachedProvider) SearchByText(ctx context.Context, query string) ([]domain.SourceRecord, error) {
	// 缓存键与回源使用同一个规范化后的查询词
	q := strings.ToLower(strings.TrimSpace(query))
	return cachedRecords(ctx, p, searchKeyPrefix+q, func(ctx context.Context) ([]domain.SourceRecord, error) {
		return p.next.SearchByText(ctx, q)
	})
}

// Invalidate 清除目录与分类缓存，下次读取回源
func (p *CachedProvider) Invalidate(ctx context.Context) error {
	return p.cache.Del(ctx,
		catalogKeyPrefix+string(domain.SourceFakeStore),
		catalogKeyPrefix+string(domain.SourceDummyJSON),
		categoriesKeyPrefix+string(domain.SourceFakeStore),
		categoriesKeyPrefix+string(domain.SourceDummyJSON),
	)
}

func cachedRecords(ctx context.Context, p *CachedProvider, key string, load func(context.Context) ([]domain.SourceRecord, error)) ([]domain.SourceRecord, error) {
	// 尝试从缓存获取
	var records []domain.SourceRecord
	if err := p.cache.Get(ctx, key, &records); err == nil {
		return records, nil
	}

	// 缓存未命中，回源
	records, err := load(ctx)
	if err != nil {
		return nil, err
	}

	// 写入缓存，失败不影响结果
	if err := p.cache.Set(ctx, key, records, p.ttl); err != nil {
		p.logger.Warn("failed to cache records", zap.String("key", key), zap.Error(err))
	}
	return records, nil
}

func cachedCategories(ctx context.Context, p *CachedProvider, key string, load func(context.Context) ([]any, error)) ([]any, error) {
	var values []any
	if err := p.cache.Get(ctx, key, &values); err == nil {
		return values, nil
	}

	values, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(ctx, key, values, p.ttl); err != nil {
		p.logger.Warn("failed to cache categories", zap.String("key", key), zap.Error(err))
	}
	return values, nil
}
