package ledger

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/Additional-Code/tabline/internal/dto"
	"github.com/Additional-Code/tabline/internal/entity"
)

// UnknownProduct is the display name used when an item references a product
// that no longer exists in the catalog.
const UnknownProduct = "Product"

func loadOrderView(ctx context.Context, db bun.IDB, id string) (*dto.Order, error) {
	order := new(entity.Order)
	if err := scanOne(db.NewSelect().Model(order).Where("o.id = ?", id).Scan(ctx)); err != nil {
		return nil, err
	}
	views, err := buildViews(ctx, db, []entity.Order{*order})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// buildViews assembles projections for orders with one query per relation.
func buildViews(ctx context.Context, db bun.IDB, orders []entity.Order) ([]dto.Order, error) {
	if len(orders) == 0 {
		return []dto.Order{}, nil
	}

	orderIDs := make([]string, 0, len(orders))
	tableIDs := make([]string, 0, len(orders))
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
		tableIDs = append(tableIDs, o.TableID)
	}

	var tables []entity.Table
	if err := db.NewSelect().Model(&tables).Where("t.id IN (?)", bun.In(tableIDs)).Scan(ctx); err != nil {
		return nil, err
	}
	tableByID := make(map[string]entity.Table, len(tables))
	for _, t := range tables {
		tableByID[t.ID] = t
	}

	var items []entity.OrderItem
	err := db.NewSelect().Model(&items).
		Where("oi.order_id IN (?)", bun.In(orderIDs)).
		OrderExpr("oi.created_at ASC").
		OrderExpr("oi.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	productIDs := make([]string, 0, len(items))
	for _, it := range items {
		productIDs = append(productIDs, it.ProductID)
	}
	names, err := productNames(ctx, db, productIDs)
	if err != nil {
		return nil, err
	}

	var payments []entity.Payment
	err = db.NewSelect().Model(&payments).
		Where("pay.order_id IN (?)", bun.In(orderIDs)).
		OrderExpr("pay.created_at ASC").
		OrderExpr("pay.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	itemsByOrder := make(map[string][]dto.Item, len(orders))
	for _, it := range items {
		name, ok := names[it.ProductID]
		if !ok {
			name = UnknownProduct
		}
		itemsByOrder[it.OrderID] = append(itemsByOrder[it.OrderID], dto.Item{
			ID:          it.ID,
			OrderID:     it.OrderID,
			ProductID:   it.ProductID,
			ProductName: name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			IsPaid:      it.IsPaid,
		})
	}

	paymentsByOrder := make(map[string][]dto.Payment, len(orders))
	for _, p := range payments {
		paymentsByOrder[p.OrderID] = append(paymentsByOrder[p.OrderID], dto.Payment{
			ID:            p.ID,
			OrderID:       p.OrderID,
			Amount:        p.Amount,
			PaymentMethod: string(p.PaymentMethod),
			CreatedAt:     p.CreatedAt,
		})
	}

	views := make([]dto.Order, 0, len(orders))
	for _, o := range orders {
		view := dto.Order{
			ID:          o.ID,
			TableID:     o.TableID,
			Status:      string(o.Status),
			TotalAmount: o.TotalAmount,
			IsLocked:    o.IsLocked,
			CreatedAt:   o.CreatedAt,
			UpdatedAt:   o.UpdatedAt,
			Items:       itemsByOrder[o.ID],
			Payments:    paymentsByOrder[o.ID],
		}
		if view.Items == nil {
			view.Items = []dto.Item{}
		}
		if view.Payments == nil {
			view.Payments = []dto.Payment{}
		}
		if t, ok := tableByID[o.TableID]; ok {
			view.Table = &dto.TableRef{ID: t.ID, Name: t.Name}
		}
		views = append(views, view)
	}
	return views, nil
}

func productNames(ctx context.Context, db bun.IDB, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var products []entity.Product
	if err := db.NewSelect().Model(&products).Column("id", "name").Where("pr.id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, err
	}
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names, nil
}
