// Package provider 从两个上游商品目录拉取原始记录，并在边界处为每条记录打上来源标签。
package provider

import (
	"context"
	"errors"

	"github.com/MorseWayne/shopcart/internal/domain"
)

// ErrUpstream 上游返回非 2xx 状态或无法解析的响应
var ErrUpstream = errors.New("upstream catalog error")

// Provider 目录数据源。返回的记录均已带来源标签，调用方无需再判断结构。
type Provider interface {
	FetchCatalogA(ctx context.Context) ([]domain.SourceRecord, error)
	FetchCatalogB(ctx context.Context) ([]domain.SourceRecord, error)
	// 分类原样返回，元素类型不保证是字符串，由 catalog.Categories 负责清洗
	FetchCategoriesA(ctx context.Context) ([]any, error)
	FetchCategoriesB(ctx context.Context) ([]any, error)
	// SearchByText 上游全文搜索（仅 B 来源支持）
	SearchByText(ctx context.Context, query string) ([]domain.SourceRecord, error)
}

// Invalidator 支持主动清除缓存的 Provider
type Invalidator interface {
	Invalidate(ctx context.Context) error
}
