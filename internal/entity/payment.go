package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// PaymentMethod names how a payment was tendered.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "CASH"
	PaymentMethodCard PaymentMethod = "CARD"
)

// Valid reports whether m is a supported method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCash || m == PaymentMethodCard
}

// Payment is an append-only ledger entry. Only OrderID ever changes, when
// two orders are merged.
type Payment struct {
	bun.BaseModel `bun:"table:payments,alias:pay"`

	ID            string        `bun:"id,pk"`
	OrderID       string        `bun:"order_id,notnull"`
	Amount        int64         `bun:"amount,notnull"`
	PaymentMethod PaymentMethod `bun:"payment_method,notnull"`
	CreatedAt     time.Time     `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
