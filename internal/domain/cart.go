package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity 数量为负数时返回，购物车状态保持不变
var ErrInvalidQuantity = errors.New("quantity must not be negative")

// CartLineItem 购物车行项目，以 UniqueID 作为身份
type CartLineItem struct {
	UniqueID string  `json:"uniqueId"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
	Category string  `json:"category"`
	Quantity int     `json:"quantity"`
}

// Subtotal 行小计
func (li CartLineItem) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(li.Price).Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart 购物车聚合。
// 每次变更后都从行项目重新计算合计，不做增量维护，因此合计与行项目始终一致。
// Cart 不是并发安全的，调用方需保证单写者。
type Cart struct {
	items      []CartLineItem
	totalItems int
	totalPrice float64
	isOpen     bool
}

// NewCart 创建空购物车
func NewCart() *Cart {
	return &Cart{items: []CartLineItem{}}
}

// AddItem 加入商品：已存在则数量 +1，否则追加数量为 1 的新行
func (c *Cart) AddItem(p NormalizedProduct) {
	if i := c.indexOf(p.UniqueID); i >= 0 {
		_ = c.UpdateQuantity(p.UniqueID, c.items[i].Quantity+1)
		return
	}
	c.items = append(c.items, CartLineItem{
		UniqueID: p.UniqueID,
		Name:     p.Name,
		Price:    p.Price,
		Image:    p.Image,
		Category: p.Category,
		Quantity: 1,
	})
	c.recalculate()
}

// RemoveItem 删除行项目，不存在时不做任何事
func (c *Cart) RemoveItem(uniqueID string) {
	i := c.indexOf(uniqueID)
	if i < 0 {
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.recalculate()
}

// UpdateQuantity 设置数量：0 等价于删除，负数返回 ErrInvalidQuantity，未知 ID 静默忽略
func (c *Cart) UpdateQuantity(uniqueID string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	if quantity == 0 {
		c.RemoveItem(uniqueID)
		return nil
	}
	i := c.indexOf(uniqueID)
	if i < 0 {
		return nil
	}
	c.items[i].Quantity = quantity
	c.recalculate()
	return nil
}

// ClearCart 清空购物车，isOpen 不变
func (c *Cart) ClearCart() {
	c.items = []CartLineItem{}
	c.recalculate()
}

// ToggleCart 切换购物车抽屉的打开状态
func (c *Cart) ToggleCart() {
	c.isOpen = !c.isOpen
}

// Items 按加入顺序返回行项目副本
func (c *Cart) Items() []CartLineItem {
	out := make([]CartLineItem, len(c.items))
	copy(out, c.items)
	return out
}

// Get 按 UniqueID 查找行项目
func (c *Cart) Get(uniqueID string) (CartLineItem, bool) {
	if i := c.indexOf(uniqueID); i >= 0 {
		return c.items[i], true
	}
	return CartLineItem{}, false
}

// TotalItems 所有行项目数量之和
func (c *Cart) TotalItems() int { return c.totalItems }

// TotalPrice 所有行项目 单价×数量 之和
func (c *Cart) TotalPrice() float64 { return c.totalPrice }

func (c *Cart) IsOpen() bool { return c.isOpen }

func (c *Cart) IsEmpty() bool { return len(c.items) == 0 }

func (c *Cart) indexOf(uniqueID string) int {
	for i := range c.items {
		if c.items[i].UniqueID == uniqueID {
			return i
		}
	}
	return -1
}

func (c *Cart) subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range c.items {
		sum = sum.Add(li.Subtotal())
	}
	return sum
}

func (c *Cart) recalculate() {
	total := 0
	for _, li := range c.items {
		total += li.Quantity
	}
	c.totalItems = total
	c.totalPrice = c.subtotal().InexactFloat64()
}

// CartSnapshot 购物车的持久化形态
type CartSnapshot struct {
	Items      []CartLineItem `json:"items"`
	TotalItems int            `json:"totalItems"`
	TotalPrice float64        `json:"totalPrice"`
	IsOpen     bool           `json:"isOpen"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Snapshot 导出当前状态
func (c *Cart) Snapshot() CartSnapshot {
	return CartSnapshot{
		Items:      c.Items(),
		TotalItems: c.totalItems,
		TotalPrice: c.totalPrice,
		IsOpen:     c.isOpen,
		UpdatedAt:  time.Now().UTC(),
	}
}

// RestoreCart 从快照恢复购物车。
// 快照中的合计不被信任，一律重新计算；数量非正或缺少 ID 的行被丢弃，重复 ID 合并数量。
func RestoreCart(s CartSnapshot) *Cart {
	c := NewCart()
	c.isOpen = s.IsOpen
	for _, li := range s.Items {
		if li.UniqueID == "" || li.Quantity <= 0 {
			continue
		}
		if i := c.indexOf(li.UniqueID); i >= 0 {
			c.items[i].Quantity += li.Quantity
			continue
		}
		c.items = append(c.items, li)
	}
	c.recalculate()
	return c
}

// PricingPolicy 结算页的运费与税费规则
type PricingPolicy struct {
	TaxRate               float64
	FreeShippingThreshold float64
	ShippingFee           float64
}

// DefaultPricingPolicy 满 50 免运费，否则运费 5.99；税率 8%
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		TaxRate:               0.08,
		FreeShippingThreshold: 50,
		ShippingFee:           5.99,
	}
}

// CartSummary 结算汇总，金额保留两位小数
type CartSummary struct {
	TotalItems int     `json:"totalItems"`
	Subtotal   float64 `json:"subtotal"`
	Shipping   float64 `json:"shipping"`
	Tax        float64 `json:"tax"`
	Total      float64 `json:"total"`
}

// Summary 按定价规则计算汇总。空购物车不收运费。
func (c *Cart) Summary(p PricingPolicy) CartSummary {
	subtotal := c.subtotal()

	shipping := decimal.Zero
	if len(c.items) > 0 && !subtotal.GreaterThan(decimal.NewFromFloat(p.FreeShippingThreshold)) {
		shipping = decimal.NewFromFloat(p.ShippingFee)
	}
	tax := subtotal.Mul(decimal.NewFromFloat(p.TaxRate)).Round(2)
	total := subtotal.Add(shipping).Add(tax)

	return CartSummary{
		TotalItems: c.totalItems,
		Subtotal:   subtotal.Round(2).InexactFloat64(),
		Shipping:   shipping.InexactFloat64(),
		Tax:        tax.InexactFloat64(),
		Total:      total.Round(2).InexactFloat64(),
	}
}
