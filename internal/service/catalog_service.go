package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MorseWayne/shopcart/internal/catalog"
	"github.com/MorseWayne/shopcart/internal/domain"
	"github.com/MorseWayne/shopcart/internal/provider"
)

// CatalogSnapshot 一次成功加载得到的两份原始记录。Version 每次成功加载递增，0 表示从未加载。
type CatalogSnapshot struct {
	A       []domain.SourceRecord
	B       []domain.SourceRecord
	Version uint64
}

// CatalogStatus 目录加载状态
type CatalogStatus struct {
	Version   uint64    `json:"version"`
	Stale     bool      `json:"stale"`
	LastError string    `json:"lastError,omitempty"`
	LoadedAt  time.Time `json:"loadedAt"`
	CountA    int       `json:"countA"`
	CountB    int       `json:"countB"`
}

// CatalogService 管理共享的目录快照，所有会话从这里加载各自的 Store
type CatalogService interface {
	// Refresh 并发拉取两个来源，全部成功才替换快照；失败时保留旧快照并标记为过期。
	// force 为 true 时先清除 Provider 缓存。
	Refresh(ctx context.Context, force bool) error
	// EnsureLoaded 从未成功加载过时尝试加载一次
	EnsureLoaded(ctx context.Context)
	Snapshot() CatalogSnapshot
	Status() CatalogStatus
	Categories(ctx context.Context) ([]string, error)
	Search(ctx context.Context, query string) ([]domain.SourceRecord, error)
}

type catalogService struct {
	provider provider.Provider
	logger   *zap.Logger

	refreshMu sync.Mutex // 串行化刷新

	mu         sync.RWMutex
	snapshot   CatalogSnapshot
	status     CatalogStatus
	categories []string
}

// NewCatalogService 创建目录服务
func NewCatalogService(p provider.Provider, logger *zap.Logger) CatalogService {
	return &catalogService{provider: p, logger: logger}
}

func (s *catalogService) Refresh(ctx context.Context, force bool) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if force {
		if inv, ok := s.provider.(provider.Invalidator); ok {
			if err := inv.Invalidate(ctx); err != nil {
				s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
			}
		}
	}

	var a, b []domain.SourceRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = s.provider.FetchCatalogA(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = s.provider.FetchCatalogB(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		s.mu.Lock()
		s.status.Stale = true
		s.status.LastError = err.Error()
		s.mu.Unlock()

		s.logger.Warn("catalog refresh failed, keeping previous snapshot",
			zap.Uint64("version", s.Snapshot().Version),
			zap.Error(err))
		return fmt.Errorf("refresh catalog: %w", err)
	}

	s.mu.Lock()
	s.snapshot = CatalogSnapshot{A: a, B: b, Version: s.snapshot.Version + 1}
	s.status = CatalogStatus{
		Version:  s.snapshot.Version,
		LoadedAt: time.Now().UTC(),
		CountA:   len(a),
		CountB:   len(b),
	}
	version := s.snapshot.Version
	s.mu.Unlock()

	s.logger.Info("catalog refreshed",
		zap.Uint64("version", version),
		zap.Int("count_a", len(a)),
		zap.Int("count_b", len(b)))
	return nil
}

func (s *catalogService) EnsureLoaded(ctx context.Context) {
	if s.Snapshot().Version > 0 {
		return
	}
	_ = s.Refresh(ctx, false)
}

func (s *catalogService) Snapshot() CatalogSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *catalogService) Status() CatalogStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Categories 合并两个来源的分类。拉取失败时返回上一次成功的结果，从未成功过则返回错误。
func (s *catalogService) Categories(ctx context.Context) ([]string, error) {
	var a, b []any
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = s.provider.FetchCategoriesA(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = s.provider.FetchCategoriesB(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		s.mu.RLock()
		cached := s.categories
		s.mu.RUnlock()
		if cached != nil {
			s.logger.Warn("category fetch failed, serving previous list", zap.Error(err))
			return append([]string(nil), cached...), nil
		}
		return nil, fmt.Errorf("fetch categories: %w", err)
	}

	categories := catalog.Categories(a, b)
	s.mu.Lock()
	s.categories = categories
	s.mu.Unlock()
	return append([]string(nil), categories...), nil
}

func (s *catalogService) Search(ctx context.Context, query string) ([]domain.SourceRecord, error) {
	results, err := s.provider.SearchByText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("remote search: %w", err)
	}
	return results, nil
}
