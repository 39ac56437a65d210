package domain

import (
	"errors"
	"time"
)

// ErrEmptyCart 空购物车不能结算
var ErrEmptyCart = errors.New("cart is empty")

// Customer 结算表单中的收货人信息
type Customer struct {
	FirstName string `json:"firstName" binding:"required,min=2,max=50"`
	LastName  string `json:"lastName" binding:"required,min=2,max=50"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone" binding:"required,min=10,max=20"`
	Address   string `json:"address" binding:"required,min=5,max=200"`
	City      string `json:"city" binding:"required,min=2,max=100"`
	ZipCode   string `json:"zipCode" binding:"required,min=5,max=10"`
	Country   string `json:"country" binding:"required,min=2,max=56"`
}

// FullName 姓名
func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// CheckoutRequest 结算请求
type CheckoutRequest struct {
	Customer Customer `json:"customer" binding:"required"`
}

// OrderAck 结算确认。订单不在服务端保存，确认中只携带引用号和当时的购物车内容。
type OrderAck struct {
	OrderRef    string         `json:"orderRef"`
	Customer    Customer       `json:"customer"`
	Items       []CartLineItem `json:"items"`
	Summary     CartSummary    `json:"summary"`
	SubmittedAt time.Time      `json:"submittedAt"`
}

// AddItemRequest 加入购物车请求
type AddItemRequest struct {
	UniqueID string `json:"uniqueId" binding:"required"`
}

// UpdateQuantityRequest 修改数量请求，数量允许为 0（等价删除），负数由领域规则拒绝
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}
