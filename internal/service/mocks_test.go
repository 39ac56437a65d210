package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/domain"
	"github.com/MorseWayne/shopcart/internal/repo"
)

// Mock Provider for testing
type mockProvider struct {
	mu       sync.Mutex
	a, b     []domain.SourceRecord
	catsA    []any
	catsB    []any
	search   map[string][]domain.SourceRecord
	errA     error
	errB     error
	errCats  error
	fetchesA int
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		a: domain.FromSimpleList([]domain.SimpleRecord{
			{ID: 1, Title: "Backpack", Price: 109.95, Category: "men's clothing", Image: "b.jpg", Rating: domain.RateCount(3.9, 120)},
			{ID: 5, Title: "Silver Ring", Price: 10, Category: "jewelery", Image: "r.jpg", Rating: domain.RateCount(4.6, 70)},
		}),
		b: domain.FromRichList([]domain.RichRecord{
			{ID: 5, Title: "Mascara", Price: 30, Category: "beauty", Images: []string{"m.jpg"}, Rating: domain.ScalarRating(4.9)},
			{ID: 6, Title: "Lipstick", Price: 12.5, Category: "beauty", Thumbnail: "l.jpg", Rating: domain.ScalarRating(4.1)},
		}),
		catsA:  []any{"jewelery", "men's clothing"},
		catsB:  []any{"beauty", "", 3},
		search: map[string][]domain.SourceRecord{},
	}
}

func (m *mockProvider) FetchCatalogA(ctx context.Context) ([]domain.SourceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchesA++
	if m.errA != nil {
		return nil, m.errA
	}
	return m.a, nil
}

func (m *mockProvider) FetchCatalogB(ctx context.Context) ([]domain.SourceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errB != nil {
		return nil, m.errB
	}
	return m.b, nil
}

func (m *mockProvider) FetchCategoriesA(ctx context.Context) ([]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errCats != nil {
		return nil, m.errCats
	}
	return m.catsA, nil
}

func (m *mockProvider) FetchCategoriesB(ctx context.Context) ([]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catsB, nil
}

func (m *mockProvider) SearchByText(ctx context.Context, query string) ([]domain.SourceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.search[query]; ok {
		return r, nil
	}
	return nil, errors.New("upstream search failed")
}

func (m *mockProvider) set(fn func(m *mockProvider)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

// Mock CartSnapshotRepository for testing
type mockSnapshotRepo struct {
	mu      sync.Mutex
	snaps   map[string]domain.CartSnapshot
	saves   int
	deletes int

	// 非 nil 时 Save 先向 saving 发信号，再等 gate 关闭
	saving chan struct{}
	gate   chan struct{}
}

var _ repo.CartSnapshotRepository = (*mockSnapshotRepo)(nil)

func newMockSnapshotRepo() *mockSnapshotRepo {
	return &mockSnapshotRepo{snaps: make(map[string]domain.CartSnapshot)}
}

func (m *mockSnapshotRepo) Load(ctx context.Context, sessionID string) (*domain.CartSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[sessionID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *mockSnapshotRepo) Save(ctx context.Context, sessionID string, snap domain.CartSnapshot) error {
	if m.gate != nil {
		m.saving <- struct{}{}
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.snaps[sessionID] = snap
	return nil
}

func (m *mockSnapshotRepo) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.snaps, sessionID)
	return nil
}

func (m *mockSnapshotRepo) get(sessionID string) (domain.CartSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[sessionID]
	return snap, ok
}

func (m *mockSnapshotRepo) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *mockSnapshotRepo) deleteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}

// testEnv 组装一套使用 mock 的服务
type testEnv struct {
	provider *mockProvider
	repo     *mockSnapshotRepo
	catalog  CatalogService
	sessions *SessionRegistry
	browse   BrowseService
	cart     CartService
	checkout CheckoutService
}

func newTestEnv() *testEnv {
	logger := zap.NewNop()
	p := newMockProvider()
	r := newMockSnapshotRepo()
	cs := NewCatalogService(p, logger)
	// 较长的防抖间隔，测试中通过 FlushAll 显式写回
	sessions := NewSessionRegistry(cs, r, SessionOptions{PersistDelay: time.Hour, IdleTimeout: time.Minute}, logger)
	pricing := domain.DefaultPricingPolicy()

	return &testEnv{
		provider: p,
		repo:     r,
		catalog:  cs,
		sessions: sessions,
		browse:   NewBrowseService(sessions, cs, 4, logger),
		cart:     NewCartService(sessions, cs, pricing, logger),
		checkout: NewCheckoutService(sessions, pricing, logger),
	}
}
