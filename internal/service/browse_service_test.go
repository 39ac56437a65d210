package service

import (
	"context"
	"errors"
	"testing"

	"github.com/MorseWayne/shopcart/internal/domain"
)

func TestBrowseService_ProductsAndFilter(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	page, err := env.browse.Products(ctx, "s1", domain.FilterPatch{})
	if err != nil {
		t.Fatalf("Products() error = %v", err)
	}
	if page.Total != 4 || page.SearchMode || page.Stale {
		t.Errorf("initial page = %+v", page)
	}
	// 先 A 后 B
	if page.Products[0].UniqueID != "fs-1" || page.Products[2].UniqueID != "dj-5" {
		t.Errorf("order = %s ... %s", page.Products[0].UniqueID, page.Products[2].UniqueID)
	}

	minRating := 4.5
	page, err = env.browse.Products(ctx, "s1", domain.FilterPatch{MinRating: &minRating})
	if err != nil {
		t.Fatalf("Products() error = %v", err)
	}
	if page.Total != 2 {
		t.Errorf("minRating 4.5 total = %d, want 2", page.Total)
	}

	search := "MASC"
	page, err = env.browse.Products(ctx, "s1", domain.FilterPatch{Search: &search})
	if err != nil {
		t.Fatalf("Products() error = %v", err)
	}
	if page.Total != 1 || page.Products[0].Name != "Mascara" {
		t.Errorf("search page = %+v", page.Products)
	}

	f, err := env.browse.Filter(ctx, "s1")
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if f.Search != "MASC" || f.MinRating != 4.5 || f.MaxPrice != domain.DefaultMaxPrice {
		t.Errorf("Filter() = %+v", f)
	}

	page, err = env.browse.ResetFilter(ctx, "s1")
	if err != nil {
		t.Fatalf("ResetFilter() error = %v", err)
	}
	if page.Total != 4 || page.Filter != domain.DefaultFilter() {
		t.Errorf("after reset = %+v", page.Filter)
	}
}

func TestBrowseService_Search(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.provider.set(func(m *mockProvider) {
		m.search["lip"] = domain.FromRichList([]domain.RichRecord{
			{ID: 6, Title: "Lipstick", Price: 12.5, Category: "beauty", Thumbnail: "l.jpg"},
			{ID: 88, Title: "Lip Balm", Price: 3, Category: "beauty"},
		})
	})

	page, err := env.browse.Search(ctx, "s1", "  lip ")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !page.SearchMode || page.Total != 2 || page.Products[1].Image != domain.PlaceholderImage {
		t.Errorf("search page = %+v", page)
	}

	// 远程失败时保留当前视图
	if _, err := env.browse.Search(ctx, "s1", "nothing"); err == nil {
		t.Error("Search() should surface upstream failure")
	}
	page, err = env.browse.Products(ctx, "s1", domain.FilterPatch{})
	if err != nil {
		t.Fatalf("Products() error = %v", err)
	}
	if !page.SearchMode || page.Total != 2 {
		t.Errorf("view changed after failed search: %+v", page)
	}

	page, err = env.browse.Search(ctx, "s1", "")
	if err != nil {
		t.Fatalf("Search(\"\") error = %v", err)
	}
	if page.SearchMode || page.Total != 4 || page.Filter.Search != "" {
		t.Errorf("empty search should restore local view: %+v", page)
	}
}

func TestBrowseService_Product(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	detail, err := env.browse.Product(ctx, "s1", "dj-5")
	if err != nil {
		t.Fatalf("Product() error = %v", err)
	}
	if detail.Product.Name != "Mascara" {
		t.Errorf("Product = %+v", detail.Product)
	}
	if len(detail.Related) != 1 || detail.Related[0].UniqueID != "dj-6" {
		t.Errorf("Related = %+v", detail.Related)
	}

	if _, err := env.browse.Product(ctx, "s1", "dj-404"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("Product(unknown) error = %v", err)
	}
}

func TestBrowseService_StaleCatalog(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if err := env.catalog.Refresh(ctx, false); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	env.provider.set(func(m *mockProvider) { m.errA = errors.New("down") })
	if err := env.catalog.Refresh(ctx, true); err == nil {
		t.Fatal("Refresh() should fail")
	}

	page, err := env.browse.Products(ctx, "s1", domain.FilterPatch{})
	if err != nil {
		t.Fatalf("Products() error = %v", err)
	}
	if !page.Stale || page.Total != 4 {
		t.Errorf("stale page = %+v", page)
	}
}
