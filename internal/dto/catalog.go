package dto

import "time"

// TableStatus is a table annotated with the state of its open order.
type TableStatus struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	HasOpenOrder bool   `json:"hasOpenOrder"`
	IsLocked     bool   `json:"isLocked"`
	OpenOrderID  string `json:"openOrderId,omitempty"`
	OpenTotal    int64  `json:"openTotal"`
}

// Product is a catalog product.
type Product struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// ActivityLog is an audit entry as exposed to callers.
type ActivityLog struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	TableName string    `json:"tableName,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
