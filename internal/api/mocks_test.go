package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/cache"
	"github.com/MorseWayne/shopcart/internal/domain"
	"github.com/MorseWayne/shopcart/internal/middleware"
	"github.com/MorseWayne/shopcart/internal/provider"
	"github.com/MorseWayne/shopcart/internal/repo"
	"github.com/MorseWayne/shopcart/internal/resp"
	"github.com/MorseWayne/shopcart/internal/service"
)

// stubProvider 固定数据的上游目录
type stubProvider struct {
	mu     sync.Mutex
	fail   bool
	search map[string][]domain.SourceRecord
}

func (p *stubProvider) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return provider.ErrUpstream
	}
	return nil
}

func (p *stubProvider) FetchCatalogA(ctx context.Context) ([]domain.SourceRecord, error) {
	if err := p.err(); err != nil {
		return nil, err
	}
	return domain.FromSimpleList([]domain.SimpleRecord{
		{ID: 1, Title: "Backpack", Price: 109.95, Description: "Fits 15 inch laptops", Category: "men's clothing", Image: "b.jpg", Rating: domain.RateCount(3.9, 120)},
		{ID: 5, Title: "Silver Ring", Price: 10, Category: "jewelery", Image: "r.jpg", Rating: domain.RateCount(4.6, 70)},
	}), nil
}

func (p *stubProvider) FetchCatalogB(ctx context.Context) ([]domain.SourceRecord, error) {
	if err := p.err(); err != nil {
		return nil, err
	}
	return domain.FromRichList([]domain.RichRecord{
		{ID: 5, Title: "Mascara", Price: 30, Category: "beauty", Images: []string{"m.jpg"}, Rating: domain.ScalarRating(4.9)},
	}), nil
}

func (p *stubProvider) FetchCategoriesA(ctx context.Context) ([]any, error) {
	if err := p.err(); err != nil {
		return nil, err
	}
	return []any{"jewelery", "men's clothing"}, nil
}

func (p *stubProvider) FetchCategoriesB(ctx context.Context) ([]any, error) {
	if err := p.err(); err != nil {
		return nil, err
	}
	return []any{"beauty"}, nil
}

func (p *stubProvider) SearchByText(ctx context.Context, query string) ([]domain.SourceRecord, error) {
	if err := p.err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.search[query], nil
}

func (p *stubProvider) setFail(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = fail
}

type testServer struct {
	router   *gin.Engine
	provider *stubProvider
	catalog  service.CatalogService
}

// setupTestRouter 使用真实服务和内存存储组装路由，会话 ID 从 X-Test-Session 读取
func setupTestRouter() *testServer {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	p := &stubProvider{search: map[string][]domain.SourceRecord{}}
	cs := service.NewCatalogService(p, logger)
	snapshots := repo.NewKVCartSnapshotRepository(cache.NewMemoryCache(), repo.DefaultStorageKey, time.Hour)
	sessions := service.NewSessionRegistry(cs, snapshots, service.SessionOptions{PersistDelay: time.Hour}, logger)
	pricing := domain.DefaultPricingPolicy()

	catalogHandler := NewCatalogHandler(service.NewBrowseService(sessions, cs, 4, logger), cs, logger)
	cartHandler := NewCartHandler(service.NewCartService(sessions, cs, pricing, logger), logger)
	checkoutHandler := NewCheckoutHandler(service.NewCheckoutService(sessions, pricing, logger), logger)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		sid := c.GetHeader("X-Test-Session")
		if sid == "" {
			sid = "s1"
		}
		c.Set(middleware.ContextKeyCartSession, sid)
		c.Next()
	})

	router.GET("/catalog/products", catalogHandler.ListProducts)
	router.GET("/catalog/products/:uniqueId", catalogHandler.GetProduct)
	router.GET("/catalog/filter", catalogHandler.GetFilter)
	router.PATCH("/catalog/filter", catalogHandler.UpdateFilter)
	router.DELETE("/catalog/filter", catalogHandler.ResetFilter)
	router.GET("/catalog/categories", catalogHandler.Categories)
	router.GET("/catalog/search", catalogHandler.Search)
	router.GET("/catalog/status", catalogHandler.Status)
	router.POST("/catalog/refresh", catalogHandler.Refresh)
	router.POST("/catalog/normalize", catalogHandler.Normalize)
	router.GET("/cart", cartHandler.GetCart)
	router.DELETE("/cart", cartHandler.ClearCart)
	router.POST("/cart/toggle", cartHandler.ToggleCart)
	router.POST("/cart/items", cartHandler.AddItem)
	router.PUT("/cart/items/:uniqueId", cartHandler.UpdateItem)
	router.DELETE("/cart/items/:uniqueId", cartHandler.RemoveItem)
	router.POST("/checkout", checkoutHandler.Submit)

	return &testServer{router: router, provider: p, catalog: cs}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.doAs(t, "", method, path, body)
}

// doAs 以指定会话发起请求
func (s *testServer) doAs(t *testing.T, session, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set("X-Test-Session", session)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// decode 解析统一响应结构
func decode[T any](t *testing.T, w *httptest.ResponseRecorder) resp.Response[T] {
	t.Helper()
	var out resp.Response[T]
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid response body %q: %v", w.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status, code int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("Expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
	if got := decode[json.RawMessage](t, w).Code; got != code {
		t.Errorf("Expected code %d, got %d", code, got)
	}
}
