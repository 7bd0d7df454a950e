package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/Additional-Code/tabline/internal/dto"
	"github.com/Additional-Code/tabline/internal/entity"
)

// Tx is the transaction-scoped view of the ledger. Every write helper runs on
// the transaction that was handed to the TxFunc; nothing here is visible to
// other readers until the transaction commits.
type Tx interface {
	Order(ctx context.Context, id string) (*entity.Order, error)
	OpenOrderForTable(ctx context.Context, tableID string) (*entity.Order, error)
	InsertOrder(ctx context.Context, order *entity.Order) error
	AdjustOrderTotal(ctx context.Context, id string, delta int64) error
	SetOrderTotal(ctx context.Context, id string, total int64) error
	SetOrderStatus(ctx context.Context, id string, status entity.OrderStatus) error
	UpdateOrder(ctx context.Context, id string, patch OrderPatch) error
	MoveOrder(ctx context.Context, id, tableID string) error
	DeleteOrder(ctx context.Context, id string) error

	Item(ctx context.Context, id string) (*entity.OrderItem, error)
	ItemsByID(ctx context.Context, ids []string) ([]entity.OrderItem, error)
	Items(ctx context.Context, orderID string) ([]entity.OrderItem, error)
	UnpaidItem(ctx context.Context, orderID, productID string) (*entity.OrderItem, error)
	InsertItems(ctx context.Context, items []entity.OrderItem) error
	SetItemQuantity(ctx context.Context, id string, quantity int64) error
	IncrementItemQuantity(ctx context.Context, id string, delta int64) error
	MarkItemsPaid(ctx context.Context, ids []string) error
	MarkOrderItemsPaid(ctx context.Context, orderID string) error
	MoveItems(ctx context.Context, ids []string, orderID string) error
	DeleteItems(ctx context.Context, ids []string) error

	InsertPayment(ctx context.Context, payment *entity.Payment) error
	PaidAmount(ctx context.Context, orderID string) (int64, error)
	PaymentCount(ctx context.Context, orderID string) (int, error)
	MovePayments(ctx context.Context, fromOrderID, toOrderID string) error

	Table(ctx context.Context, id string) (*entity.Table, error)
	ProductNames(ctx context.Context, ids []string) (map[string]string, error)
	OrderView(ctx context.Context, id string) (*dto.Order, error)
}

// OrderPatch carries the optional fields of a direct order update.
type OrderPatch struct {
	Status   *entity.OrderStatus
	IsLocked *bool
}

// Empty reports whether the patch changes nothing.
func (p OrderPatch) Empty() bool {
	return p.Status == nil && p.IsLocked == nil
}

type bunTx struct {
	db bun.IDB
}

func now() time.Time {
	return time.Now().UTC()
}

// expectRow turns an update or delete that touched nothing into ErrNotFound.
func expectRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOne(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (t *bunTx) Order(ctx context.Context, id string) (*entity.Order, error) {
	order := new(entity.Order)
	if err := scanOne(t.db.NewSelect().Model(order).Where("o.id = ?", id).Scan(ctx)); err != nil {
		return nil, err
	}
	return order, nil
}

func (t *bunTx) OpenOrderForTable(ctx context.Context, tableID string) (*entity.Order, error) {
	return findOpenOrder(ctx, t.db, tableID)
}

func (t *bunTx) InsertOrder(ctx context.Context, order *entity.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = entity.OrderStatusOpen
	}
	ts := now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = ts
	}
	order.UpdatedAt = ts
	_, err := t.db.NewInsert().Model(order).Exec(ctx)
	return err
}

func (t *bunTx) AdjustOrderTotal(ctx context.Context, id string, delta int64) error {
	return expectRow(t.db.NewUpdate().Model((*entity.Order)(nil)).
		Set("total_amount = total_amount + ?", delta).
		Set("updated_at = ?", now()).
		Where("id = ?", id).
		Exec(ctx))
}

func (t *bunTx) SetOrderTotal(ctx context.Context, id string, total int64) error {
	return expectRow(t.db.NewUpdate().Model((*entity.Order)(nil)).
		Set("total_amount = ?", total).
		Set("updated_at = ?", now()).
		Where("id = ?", id).
		Exec(ctx))
}

func (t *bunTx) SetOrderStatus(ctx context.Context, id string, status entity.OrderStatus) error {
	return t.UpdateOrder(ctx, id, OrderPatch{Status: &status})
}

func (t *bunTx) UpdateOrder(ctx context.Context, id string, patch OrderPatch) error {
	q := t.db.NewUpdate().Model((*entity.Order)(nil)).
		Set("updated_at = ?", now()).
		Where("id = ?", id)
	if patch.Status != nil {
		q = q.Set("status = ?", *patch.Status)
	}
	if patch.IsLocked != nil {
		q = q.Set("is_locked = ?", *patch.IsLocked)
	}
	return expectRow(q.Exec(ctx))
}

func (t *bunTx) MoveOrder(ctx context.Context, id, tableID string) error {
	return expectRow(t.db.NewUpdate().Model((*entity.Order)(nil)).
		Set("table_id = ?", tableID).
		Set("updated_at = ?", now()).
		Where("id = ?", id).
		Exec(ctx))
}

// DeleteOrder removes the order together with its items. Payments are never
// deleted; callers must refuse to delete orders that have any.
func (t *bunTx) DeleteOrder(ctx context.Context, id string) error {
	if _, err := t.db.NewDelete().Model((*entity.OrderItem)(nil)).Where("order_id = ?", id).Exec(ctx); err != nil {
		return err
	}
	return expectRow(t.db.NewDelete().Model((*entity.Order)(nil)).Where("id = ?", id).Exec(ctx))
}

func (t *bunTx) Item(ctx context.Context, id string) (*entity.OrderItem, error) {
	item := new(entity.OrderItem)
	if err := scanOne(t.db.NewSelect().Model(item).Where("oi.id = ?", id).Scan(ctx)); err != nil {
		return nil, err
	}
	return item, nil
}

func (t *bunTx) ItemsByID(ctx context.Context, ids []string) ([]entity.OrderItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []entity.OrderItem
	err := t.db.NewSelect().Model(&items).Where("oi.id IN (?)", bun.In(ids)).Scan(ctx)
	return items, err
}

func (t *bunTx) Items(ctx context.Context, orderID string) ([]entity.OrderItem, error) {
	var items []entity.OrderItem
	err := t.db.NewSelect().Model(&items).
		Where("oi.order_id = ?", orderID).
		OrderExpr("oi.created_at ASC").
		OrderExpr("oi.id ASC").
		Scan(ctx)
	return items, err
}

func (t *bunTx) UnpaidItem(ctx context.Context, orderID, productID string) (*entity.OrderItem, error) {
	item := new(entity.OrderItem)
	err := t.db.NewSelect().Model(item).
		Where("oi.order_id = ?", orderID).
		Where("oi.product_id = ?", productID).
		Where("oi.is_paid = ?", false).
		Limit(1).
		Scan(ctx)
	if err := scanOne(err); err != nil {
		return nil, err
	}
	return item, nil
}

func (t *bunTx) InsertItems(ctx context.Context, items []entity.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	ts := now()
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].CreatedAt = ts
	}
	_, err := t.db.NewInsert().Model(&items).Exec(ctx)
	return err
}

func (t *bunTx) SetItemQuantity(ctx context.Context, id string, quantity int64) error {
	return expectRow(t.db.NewUpdate().Model((*entity.OrderItem)(nil)).
		Set("quantity = ?", quantity).
		Where("id = ?", id).
		Exec(ctx))
}

func (t *bunTx) IncrementItemQuantity(ctx context.Context, id string, delta int64) error {
	return expectRow(t.db.NewUpdate().Model((*entity.OrderItem)(nil)).
		Set("quantity = quantity + ?", delta).
		Where("id = ?", id).
		Exec(ctx))
}

func (t *bunTx) MarkItemsPaid(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := t.db.NewUpdate().Model((*entity.OrderItem)(nil)).
		Set("is_paid = ?", true).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}

func (t *bunTx) MarkOrderItemsPaid(ctx context.Context, orderID string) error {
	_, err := t.db.NewUpdate().Model((*entity.OrderItem)(nil)).
		Set("is_paid = ?", true).
		Where("order_id = ?", orderID).
		Where("is_paid = ?", false).
		Exec(ctx)
	return err
}

func (t *bunTx) MoveItems(ctx context.Context, ids []string, orderID string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := t.db.NewUpdate().Model((*entity.OrderItem)(nil)).
		Set("order_id = ?", orderID).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}

func (t *bunTx) DeleteItems(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := t.db.NewDelete().Model((*entity.OrderItem)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}

func (t *bunTx) InsertPayment(ctx context.Context, payment *entity.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	payment.CreatedAt = now()
	_, err := t.db.NewInsert().Model(payment).Exec(ctx)
	return err
}

func (t *bunTx) PaidAmount(ctx context.Context, orderID string) (int64, error) {
	var sum int64
	err := t.db.NewSelect().Model((*entity.Payment)(nil)).
		ColumnExpr("COALESCE(SUM(pay.amount), 0)").
		Where("pay.order_id = ?", orderID).
		Scan(ctx, &sum)
	return sum, err
}

func (t *bunTx) PaymentCount(ctx context.Context, orderID string) (int, error) {
	return t.db.NewSelect().Model((*entity.Payment)(nil)).
		Where("pay.order_id = ?", orderID).
		Count(ctx)
}

func (t *bunTx) MovePayments(ctx context.Context, fromOrderID, toOrderID string) error {
	_, err := t.db.NewUpdate().Model((*entity.Payment)(nil)).
		Set("order_id = ?", toOrderID).
		Where("order_id = ?", fromOrderID).
		Exec(ctx)
	return err
}

func (t *bunTx) Table(ctx context.Context, id string) (*entity.Table, error) {
	table := new(entity.Table)
	if err := scanOne(t.db.NewSelect().Model(table).Where("t.id = ?", id).Scan(ctx)); err != nil {
		return nil, err
	}
	return table, nil
}

func (t *bunTx) ProductNames(ctx context.Context, ids []string) (map[string]string, error) {
	return productNames(ctx, t.db, ids)
}

func (t *bunTx) OrderView(ctx context.Context, id string) (*dto.Order, error) {
	return loadOrderView(ctx, t.db, id)
}
