package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/domain"
)

// ErrProductNotFound uniqueId 不在当前目录中
var ErrProductNotFound = errors.New("product not found")

// ProductPage 会话当前的商品视图
type ProductPage struct {
	Products   []domain.NormalizedProduct `json:"products"`
	Filter     domain.Filter              `json:"filter"`
	Total      int                        `json:"total"`
	SearchMode bool                       `json:"searchMode"`
	Stale      bool                       `json:"stale"`
}

// ProductDetail 商品详情及同分类推荐
type ProductDetail struct {
	Product domain.NormalizedProduct   `json:"product"`
	Related []domain.NormalizedProduct `json:"related"`
}

// BrowseService 会话级的目录浏览：过滤、远程搜索、详情
type BrowseService interface {
	// Products 返回当前视图；patch 非空时先合并过滤条件
	Products(ctx context.Context, sessionID string, patch domain.FilterPatch) (*ProductPage, error)
	Filter(ctx context.Context, sessionID string) (domain.Filter, error)
	ResetFilter(ctx context.Context, sessionID string) (*ProductPage, error)
	// Search 远程搜索结果整体替换视图；空查询回到本地过滤视图
	Search(ctx context.Context, sessionID, query string) (*ProductPage, error)
	Product(ctx context.Context, sessionID, uniqueID string) (*ProductDetail, error)
}

type browseService struct {
	sessions     *SessionRegistry
	catalog      CatalogService
	relatedLimit int
	logger       *zap.Logger
}

// NewBrowseService 创建浏览服务
func NewBrowseService(sessions *SessionRegistry, cs CatalogService, relatedLimit int, logger *zap.Logger) BrowseService {
	return &browseService{
		sessions:     sessions,
		catalog:      cs,
		relatedLimit: relatedLimit,
		logger:       logger,
	}
}

func (s *browseService) page(sess *Session) *ProductPage {
	store := sess.Store()
	return &ProductPage{
		Products:   store.Products(),
		Filter:     store.Filter(),
		Total:      store.Len(),
		SearchMode: store.SearchMode(),
		Stale:      s.catalog.Status().Stale,
	}
}

func (s *browseService) Products(ctx context.Context, sessionID string, patch domain.FilterPatch) (*ProductPage, error) {
	s.catalog.EnsureLoaded(ctx)

	var page *ProductPage
	err := s.sessions.With(ctx, sessionID, func(sess *Session) error {
		if !patch.IsEmpty() {
			sess.Store().SetFilter(patch)
		}
		page = s.page(sess)
		return nil
	})
	return page, err
}

func (s *browseService) Filter(ctx context.Context, sessionID string) (domain.Filter, error) {
	var f domain.Filter
	err := s.sessions.With(ctx, sessionID, func(sess *Session) error {
		f = sess.Store().Filter()
		return nil
	})
	return f, err
}

func (s *browseService) ResetFilter(ctx context.Context, sessionID string) (*ProductPage, error) {
	var page *ProductPage
	err := s.sessions.With(ctx, sessionID, func(sess *Session) error {
		sess.Store().ResetFilter()
		page = s.page(sess)
		return nil
	})
	return page, err
}

func (s *browseService) Search(ctx context.Context, sessionID, query string) (*ProductPage, error) {
	s.catalog.EnsureLoaded(ctx)

	query = strings.TrimSpace(query)
	if query == "" {
		return s.Products(ctx, sessionID, domain.FilterPatch{Search: new(string)})
	}

	// 远程调用放在会话锁外，避免慢上游阻塞同一会话的其他请求
	results, err := s.catalog.Search(ctx, query)
	if err != nil {
		s.logger.Warn("remote search failed", zap.String("query", query), zap.Error(err))
		return nil, err
	}

	var page *ProductPage
	err = s.sessions.With(ctx, sessionID, func(sess *Session) error {
		sess.Store().ReplaceView(results)
		page = s.page(sess)
		return nil
	})
	return page, err
}

func (s *browseService) Product(ctx context.Context, sessionID, uniqueID string) (*ProductDetail, error) {
	s.catalog.EnsureLoaded(ctx)

	var detail *ProductDetail
	err := s.sessions.With(ctx, sessionID, func(sess *Session) error {
		rec, ok := sess.Store().Find(uniqueID)
		if !ok {
			return ErrProductNotFound
		}
		detail = &ProductDetail{
			Product: rec.Normalize(),
			Related: sess.Store().Related(uniqueID, s.relatedLimit),
		}
		return nil
	})
	return detail, err
}
