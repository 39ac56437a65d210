package repo

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/MorseWayne/shopcart/internal/cache"
	"github.com/MorseWayne/shopcart/internal/domain"
)

func sampleSnapshot() domain.CartSnapshot {
	c := domain.NewCart()
	c.AddItem(domain.NormalizedProduct{UniqueID: "fs-1", Name: "Backpack", Price: 109.95, Image: "b.jpg", Category: "bags"})
	c.AddItem(domain.NormalizedProduct{UniqueID: "dj-1", Name: "Mascara", Price: 9.99, Image: "m.jpg", Category: "beauty"})
	c.AddItem(domain.NormalizedProduct{UniqueID: "dj-1", Name: "Mascara", Price: 9.99, Image: "m.jpg", Category: "beauty"})
	c.ToggleCart()
	return c.Snapshot()
}

func assertRestores(t *testing.T, got *domain.CartSnapshot, want domain.CartSnapshot) {
	t.Helper()
	if got == nil {
		t.Fatal("snapshot not found")
	}
	restored := domain.RestoreCart(*got)
	orig := domain.RestoreCart(want)
	if restored.TotalItems() != orig.TotalItems() || restored.TotalPrice() != orig.TotalPrice() || restored.IsOpen() != orig.IsOpen() {
		t.Errorf("restored cart differs: %+v vs %+v", restored.Snapshot(), orig.Snapshot())
	}
	if len(got.Items) != len(want.Items) || got.Items[1].Quantity != 2 {
		t.Errorf("items = %+v", got.Items)
	}
}

func TestStorageKey(t *testing.T) {
	if got := StorageKey("", "abc"); got != "ecommerce-cart-storage:abc" {
		t.Errorf("StorageKey default prefix = %q", got)
	}
	if got := StorageKey("shop", "abc"); got != "shop:abc" {
		t.Errorf("StorageKey custom prefix = %q", got)
	}
}

func TestKVCartSnapshotRepository(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryCache()
	r := NewKVCartSnapshotRepository(store, DefaultStorageKey, time.Hour)

	got, err := r.Load(ctx, "s1")
	if err != nil || got != nil {
		t.Fatalf("Load(missing) = %v, %v; want nil, nil", got, err)
	}

	want := sampleSnapshot()
	if err := r.Save(ctx, "s1", want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if ok, _ := store.Exists(ctx, "ecommerce-cart-storage:s1"); !ok {
		t.Error("snapshot not stored under the storage key")
	}

	got, err = r.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	assertRestores(t, got, want)

	if other, _ := r.Load(ctx, "s2"); other != nil {
		t.Error("sessions must not share snapshots")
	}

	if err := r.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, _ := r.Load(ctx, "s1"); got != nil {
		t.Error("snapshot still present after Delete")
	}
}

func TestKVCartSnapshotRepository_DisabledCache(t *testing.T) {
	r := NewKVCartSnapshotRepository(cache.NewNullCache(), "", 0)
	got, err := r.Load(context.Background(), "s1")
	if err != nil || got != nil {
		t.Errorf("Load on disabled cache = %v, %v", got, err)
	}
}

// countingRepo 记录底层调用次数
type countingRepo struct {
	CartSnapshotRepository
	loads   int
	saveErr error
}

func (c *countingRepo) Load(ctx context.Context, sessionID string) (*domain.CartSnapshot, error) {
	c.loads++
	return c.CartSnapshotRepository.Load(ctx, sessionID)
}

func (c *countingRepo) Save(ctx context.Context, sessionID string, snap domain.CartSnapshot) error {
	if c.saveErr != nil {
		return c.saveErr
	}
	return c.CartSnapshotRepository.Save(ctx, sessionID, snap)
}

func TestCachedCartSnapshotRepository(t *testing.T) {
	ctx := context.Background()
	base := &countingRepo{CartSnapshotRepository: NewKVCartSnapshotRepository(cache.NewMemoryCache(), "", 0)}
	r := NewCachedCartSnapshotRepository(base, cache.NewMemoryCache(), "", time.Minute)

	want := sampleSnapshot()
	if err := r.Save(ctx, "s1", want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		got, err := r.Load(ctx, "s1")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		assertRestores(t, got, want)
	}
	if base.loads != 0 {
		t.Errorf("write-through cache should serve reads, base loads = %d", base.loads)
	}

	if err := r.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, _ := r.Load(ctx, "s1"); got != nil {
		t.Error("snapshot still cached after Delete")
	}
	if base.loads != 1 {
		t.Errorf("miss should fall through once, base loads = %d", base.loads)
	}

	base.saveErr = errors.New("disk full")
	if err := r.Save(ctx, "s1", want); err == nil {
		t.Fatal("Save should surface base error")
	}
	if got, _ := r.Load(ctx, "s1"); got != nil {
		t.Error("failed save must not be visible through the cache")
	}
}

func TestCartSnapshotRepository_MySQL(t *testing.T) {
	// 需要已执行迁移的 MySQL 实例，例如：
	// SHOPCART_TEST_MYSQL_DSN="root:root@tcp(localhost:3306)/shopcart?parseTime=true"
	dsn := os.Getenv("SHOPCART_TEST_MYSQL_DSN")
	if dsn == "" || testing.Short() {
		t.Skip("SHOPCART_TEST_MYSQL_DSN not set")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Skipf("cannot reach MySQL: %v", err)
	}

	ctx := context.Background()
	r := NewCartSnapshotRepository(db, DefaultStorageKey)
	session := uuid.NewString()
	defer r.Delete(ctx, session)

	if got, err := r.Load(ctx, session); err != nil || got != nil {
		t.Fatalf("Load(missing) = %v, %v", got, err)
	}

	want := sampleSnapshot()
	if err := r.Save(ctx, session, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	// 再次保存走 ON DUPLICATE KEY 分支
	if err := r.Save(ctx, session, want); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := r.Load(ctx, session)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	assertRestores(t, got, want)
}
