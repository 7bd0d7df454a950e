package order

import (
	"context"

	"github.com/Additional-Code/tabline/internal/entity"
	"github.com/Additional-Code/tabline/internal/repository/ledger"
	"github.com/Additional-Code/tabline/pkg/errorbank"
)

// applySplit settles the requested quantities of unpaid items on orderID.
// A request covering the whole row marks it paid; a smaller request shrinks
// the row and inserts a paid fragment with the same product and price, so the
// order total is unchanged. Missing or already paid items are skipped and
// repeated ids are summed. It returns "Nx product" lines for the audit trail.
func applySplit(ctx context.Context, tx ledger.Tx, orderID string, reqs []ItemPayment) ([]string, error) {
	wanted := make(map[string]int64, len(reqs))
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		if _, seen := wanted[r.ItemID]; !seen {
			ids = append(ids, r.ItemID)
		}
		wanted[r.ItemID] += r.Quantity
	}

	rows, err := tx.ItemsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]entity.OrderItem, len(rows))
	productIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.OrderID != orderID {
			return nil, errorbank.BadRequest("item does not belong to the order",
				errorbank.WithDetail("itemId", row.ID), errorbank.WithDetail("orderId", orderID))
		}
		byID[row.ID] = row
		productIDs = append(productIDs, row.ProductID)
	}
	names, err := tx.ProductNames(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	var (
		full      []string
		fragments []entity.OrderItem
		lines     []string
	)
	for _, id := range ids {
		row, ok := byID[id]
		if !ok || row.IsPaid {
			continue
		}
		qty := wanted[id]
		name := nameOr(names, row.ProductID)
		if qty >= row.Quantity {
			full = append(full, id)
			lines = append(lines, itemLine(row.Quantity, name))
			continue
		}
		if err := tx.SetItemQuantity(ctx, id, row.Quantity-qty); err != nil {
			return nil, err
		}
		fragments = append(fragments, entity.OrderItem{
			OrderID:   row.OrderID,
			ProductID: row.ProductID,
			Quantity:  qty,
			UnitPrice: row.UnitPrice,
			IsPaid:    true,
		})
		lines = append(lines, itemLine(qty, name))
	}

	if err := tx.MarkItemsPaid(ctx, full); err != nil {
		return nil, err
	}
	if err := tx.InsertItems(ctx, fragments); err != nil {
		return nil, err
	}
	return lines, nil
}
