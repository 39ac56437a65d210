package domain

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func product(tag SourceTag, id int64, price float64) NormalizedProduct {
	return NormalizedProduct{
		UniqueID: UniqueID(tag, id),
		ID:       id,
		Name:     "item",
		Price:    price,
		Image:    "i.jpg",
		Category: "misc",
	}
}

// checkTotals 验证合计等于行项目的重新求和
func checkTotals(t *testing.T, c *Cart) {
	t.Helper()
	qty := 0
	sum := decimal.Zero
	seen := map[string]bool{}
	for _, li := range c.Items() {
		if li.Quantity < 1 {
			t.Fatalf("line %s has quantity %d", li.UniqueID, li.Quantity)
		}
		if seen[li.UniqueID] {
			t.Fatalf("duplicate line %s", li.UniqueID)
		}
		seen[li.UniqueID] = true
		qty += li.Quantity
		sum = sum.Add(li.Subtotal())
	}
	if c.TotalItems() != qty {
		t.Fatalf("TotalItems = %d, want %d", c.TotalItems(), qty)
	}
	if c.TotalPrice() != sum.InexactFloat64() {
		t.Fatalf("TotalPrice = %v, want %v", c.TotalPrice(), sum.InexactFloat64())
	}
}

func TestCart_AddSameProductTwice(t *testing.T) {
	c := NewCart()
	p := product(SourceFakeStore, 1, 10.0)
	c.AddItem(p)
	c.AddItem(p)

	items := c.Items()
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("items = %+v", items)
	}
	if c.TotalItems() != 2 || c.TotalPrice() != 20.0 {
		t.Fatalf("totals = %d / %v", c.TotalItems(), c.TotalPrice())
	}
}

// 连续两次 AddItem 与 AddItem 后 UpdateQuantity(id, 2) 得到相同的购物车
func TestCart_AddTwiceEqualsUpdateToTwo(t *testing.T) {
	p := product(SourceDummyJSON, 7, 12.5)

	added := NewCart()
	added.AddItem(p)
	added.AddItem(p)

	updated := NewCart()
	updated.AddItem(p)
	if err := updated.UpdateQuantity(p.UniqueID, 2); err != nil {
		t.Fatalf("UpdateQuantity() error = %v", err)
	}

	if !reflect.DeepEqual(added.Items(), updated.Items()) {
		t.Errorf("items differ: %+v vs %+v", added.Items(), updated.Items())
	}
	if added.TotalItems() != updated.TotalItems() || added.TotalPrice() != updated.TotalPrice() {
		t.Errorf("totals differ: %d/%v vs %d/%v",
			added.TotalItems(), added.TotalPrice(), updated.TotalItems(), updated.TotalPrice())
	}
	checkTotals(t, added)
}

func TestCart_SameLocalIDDifferentSources(t *testing.T) {
	c := NewCart()
	c.AddItem(product(SourceFakeStore, 5, 10))
	c.AddItem(product(SourceDummyJSON, 5, 30))

	items := c.Items()
	if len(items) != 2 {
		t.Fatalf("expected two lines, got %+v", items)
	}
	if items[0].UniqueID != "fs-5" || items[1].UniqueID != "dj-5" {
		t.Errorf("insertion order not kept: %+v", items)
	}
	if c.TotalItems() != 2 || c.TotalPrice() != 40 {
		t.Errorf("totals = %d / %v", c.TotalItems(), c.TotalPrice())
	}
}

func TestCart_UpdateQuantity(t *testing.T) {
	c := NewCart()
	c.AddItem(product(SourceFakeStore, 1, 10.0))
	c.AddItem(product(SourceDummyJSON, 2, 5.5))

	if err := c.UpdateQuantity("fs-1", 4); err != nil {
		t.Fatalf("UpdateQuantity() error = %v", err)
	}
	if c.TotalItems() != 5 || c.TotalPrice() != 45.5 {
		t.Errorf("after update totals = %d / %v", c.TotalItems(), c.TotalPrice())
	}

	if err := c.UpdateQuantity("fs-1", 0); err != nil {
		t.Fatalf("UpdateQuantity(0) error = %v", err)
	}
	if _, ok := c.Get("fs-1"); ok {
		t.Error("quantity 0 should remove the line")
	}
	if c.TotalItems() != 1 || c.TotalPrice() != 5.5 {
		t.Errorf("after removal totals = %d / %v", c.TotalItems(), c.TotalPrice())
	}

	before := c.Items()
	if err := c.UpdateQuantity("dj-2", -1); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("negative quantity error = %v", err)
	}
	if after := c.Items(); len(after) != len(before) || after[0].Quantity != before[0].Quantity {
		t.Errorf("negative quantity changed state: %+v -> %+v", before, after)
	}

	if err := c.UpdateQuantity("dj-404", 3); err != nil {
		t.Errorf("unknown id should be a no-op, got %v", err)
	}
	checkTotals(t, c)
}

func TestCart_RemoveAndClear(t *testing.T) {
	c := NewCart()
	c.AddItem(product(SourceFakeStore, 1, 3))
	c.RemoveItem("fs-404")
	if len(c.Items()) != 1 {
		t.Fatal("removing unknown id changed cart")
	}

	c.ToggleCart()
	c.AddItem(product(SourceFakeStore, 2, 4))
	c.ClearCart()
	if !c.IsEmpty() || c.TotalItems() != 0 || c.TotalPrice() != 0 {
		t.Errorf("ClearCart left state: %+v", c.Snapshot())
	}
	if !c.IsOpen() {
		t.Error("ClearCart must not touch isOpen")
	}

	c.ToggleCart()
	if c.IsOpen() {
		t.Error("ToggleCart did not flip isOpen")
	}
}

func TestCart_RandomOperationsKeepTotals(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	prices := []float64{19.99, 0.1, 0.2, 109.95, 7.5, 22.3}
	c := NewCart()

	for step := 0; step < 500; step++ {
		tag := SourceFakeStore
		if rng.Intn(2) == 0 {
			tag = SourceDummyJSON
		}
		id := int64(rng.Intn(len(prices)))
		p := product(tag, id, prices[id])

		switch rng.Intn(5) {
		case 0, 1:
			c.AddItem(p)
		case 2:
			c.RemoveItem(p.UniqueID)
		case 3:
			_ = c.UpdateQuantity(p.UniqueID, rng.Intn(6)-1)
		case 4:
			if rng.Intn(20) == 0 {
				c.ClearCart()
			}
		}
		checkTotals(t, c)
	}
}

func TestRestoreCart(t *testing.T) {
	snap := CartSnapshot{
		Items: []CartLineItem{
			{UniqueID: "fs-1", Price: 2, Quantity: 2},
			{UniqueID: "", Price: 9, Quantity: 1},
			{UniqueID: "dj-3", Price: 1, Quantity: 0},
			{UniqueID: "fs-1", Price: 2, Quantity: 1},
		},
		TotalItems: 99,
		TotalPrice: 999,
		IsOpen:     true,
	}

	c := RestoreCart(snap)
	if len(c.Items()) != 1 {
		t.Fatalf("items = %+v", c.Items())
	}
	if c.TotalItems() != 3 || c.TotalPrice() != 6 {
		t.Errorf("totals not recomputed: %d / %v", c.TotalItems(), c.TotalPrice())
	}
	if !c.IsOpen() {
		t.Error("isOpen not restored")
	}

	again := RestoreCart(c.Snapshot())
	if again.TotalItems() != c.TotalItems() || again.TotalPrice() != c.TotalPrice() {
		t.Error("snapshot round trip changed totals")
	}
}

func TestCart_Summary(t *testing.T) {
	policy := DefaultPricingPolicy()

	tests := []struct {
		name     string
		price    float64
		qty      int
		shipping float64
		tax      float64
		total    float64
	}{
		{"below threshold pays shipping", 10, 2, 5.99, 1.6, 27.59},
		{"exactly threshold pays shipping", 25, 2, 5.99, 4, 59.99},
		{"exactly threshold single line pays shipping", 50, 1, 5.99, 4, 59.99},
		{"just above threshold ships free", 50.01, 1, 0, 4, 54.01},
		{"above threshold ships free", 60, 1, 0, 4.8, 64.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCart()
			c.AddItem(product(SourceFakeStore, 1, tt.price))
			_ = c.UpdateQuantity("fs-1", tt.qty)

			s := c.Summary(policy)
			if s.Shipping != tt.shipping || s.Tax != tt.tax || s.Total != tt.total {
				t.Errorf("Summary() = %+v, want shipping %v tax %v total %v", s, tt.shipping, tt.tax, tt.total)
			}
			if s.TotalItems != tt.qty {
				t.Errorf("TotalItems = %d", s.TotalItems)
			}
		})
	}

	if s := NewCart().Summary(policy); s.Total != 0 || s.Shipping != 0 {
		t.Errorf("empty cart summary = %+v", s)
	}
}
