package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusOpen   OrderStatus = "OPEN"
	OrderStatusClosed OrderStatus = "CLOSED"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	return s == OrderStatusOpen || s == OrderStatusClosed
}

// Order is the running bill of one table. TotalAmount is kept in minor
// currency units and always equals the sum of quantity*unit price over the
// order's items.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID          string      `bun:"id,pk"`
	TableID     string      `bun:"table_id,notnull"`
	Status      OrderStatus `bun:"status,notnull"`
	TotalAmount int64       `bun:"total_amount,notnull"`
	IsLocked    bool        `bun:"is_locked,notnull"`
	CreatedAt   time.Time   `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time   `bun:"updated_at,nullzero"`
}

// OrderItem is a line on an order. UnitPrice is the price captured when the
// item was added.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID        string `bun:"id,pk"`
	OrderID   string `bun:"order_id,notnull"`
	ProductID string `bun:"product_id,notnull"`
	Quantity  int64  `bun:"quantity,notnull"`
	UnitPrice int64  `bun:"unit_price,notnull"`
	IsPaid    bool   `bun:"is_paid,notnull"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// LineTotal returns quantity*unit price.
func (i OrderItem) LineTotal() int64 {
	return i.Quantity * i.UnitPrice
}
