package dto

import "time"

// Order is the read projection of an order returned to callers.
type Order struct {
	ID          string    `json:"id"`
	TableID     string    `json:"tableId"`
	Status      string    `json:"status"`
	TotalAmount int64     `json:"totalAmount"`
	IsLocked    bool      `json:"isLocked"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
	Table       *TableRef `json:"table,omitempty"`
	Items       []Item    `json:"items"`
	Payments    []Payment `json:"payments"`
}

// TableRef names the table an order belongs to.
type TableRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Item is an order line joined with its product.
type Item struct {
	ID          string `json:"id"`
	OrderID     string `json:"orderId"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	IsPaid      bool   `json:"isPaid"`
}

// Payment is a recorded payment on an order.
type Payment struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"orderId"`
	Amount        int64     `json:"amount"`
	PaymentMethod string    `json:"paymentMethod"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PaidAmount sums the payments in the projection.
func (o *Order) PaidAmount() int64 {
	var sum int64
	for _, p := range o.Payments {
		sum += p.Amount
	}
	return sum
}

// TableName returns the table name or an empty string.
func (o *Order) TableName() string {
	if o == nil || o.Table == nil {
		return ""
	}
	return o.Table.Name
}

// PaymentResult is returned by payment processing.
type PaymentResult struct {
	Order     *Order `json:"order"`
	Completed bool   `json:"completed"`
}

// OrderHistory is one page of closed orders.
type OrderHistory struct {
	Orders     []Order `json:"orders"`
	TotalCount int     `json:"totalCount"`
	HasMore    bool    `json:"hasMore"`
}
