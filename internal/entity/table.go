package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Table is a seating spot that owns at most one open order.
type Table struct {
	bun.BaseModel `bun:"table:tables,alias:t"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// Product is a catalog entry. Its price is only a default; items keep the
// price they were added with.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:pr"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	Price     int64     `bun:"price,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
