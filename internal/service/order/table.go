package order

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tabline/internal/activity"
	"github.com/Additional-Code/tabline/internal/dto"
	"github.com/Additional-Code/tabline/internal/entity"
	"github.com/Additional-Code/tabline/internal/repository/ledger"
	"github.com/Additional-Code/tabline/pkg/errorbank"
)

// TableService moves open orders between tables and merges them.
type TableService struct {
	base
}

// NewTableService wires a new TableService instance.
func NewTableService(p Params) *TableService {
	return &TableService{base: newBase(p)}
}

// ToggleLock sets the lock flag of an open order.
func (s *TableService) ToggleLock(ctx context.Context, orderID string, locked bool) (*dto.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "TableService.ToggleLock", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.Bool("order.locked", locked),
	))
	defer span.End()

	const fallback = "could not change the lock state"
	if orderID == "" {
		return nil, s.fail(span, "ToggleLock", errorbank.BadRequest("order is required"), fallback)
	}

	var view *dto.Order
	err := s.repo.RunInTx(ctx, 0, func(ctx context.Context, tx ledger.Tx) error {
		order, err := tx.Order(ctx, orderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		if err := requireOpen(order); err != nil {
			return err
		}
		if err := tx.UpdateOrder(ctx, orderID, ledger.OrderPatch{IsLocked: &locked}); err != nil {
			return err
		}
		view, err = tx.OrderView(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "ToggleLock", err, fallback)
	}
	return view, nil
}

// TransferTable moves an open order to a table that has no open order.
func (s *TableService) TransferTable(ctx context.Context, orderID, targetTableID string) (*dto.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "TableService.TransferTable", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("table.target", targetTableID),
	))
	defer span.End()

	const fallback = "could not transfer the table"
	if orderID == "" || targetTableID == "" {
		return nil, s.fail(span, "TransferTable", errorbank.BadRequest("order and target table are required"), fallback)
	}

	var (
		view       *dto.Order
		sourceName string
	)
	err := s.repo.RunInTx(ctx, 0, func(ctx context.Context, tx ledger.Tx) error {
		order, err := tx.Order(ctx, orderID)
		if err != nil {
			return notFound(err, "order to transfer not found")
		}
		if err := requireOpen(order); err != nil {
			return err
		}
		if order.TableID == targetTableID {
			return errorbank.BadRequest("order is already on the target table")
		}
		if _, err := tx.Table(ctx, targetTableID); err != nil {
			return notFound(err, "target table not found")
		}

		occupied, err := tx.OpenOrderForTable(ctx, targetTableID)
		switch {
		case err == nil:
			return errorbank.Unprocessable("target table already has an open order; use merge instead",
				errorbank.WithDetail("targetOrderId", occupied.ID))
		case !errors.Is(err, ledger.ErrNotFound):
			return err
		}

		if source, err := tx.Table(ctx, order.TableID); err == nil {
			sourceName = source.Name
		} else if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}

		if err := tx.MoveOrder(ctx, orderID, targetTableID); err != nil {
			return err
		}
		view, err = tx.OrderView(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "TransferTable", err, fallback)
	}

	s.audit(ctx, activity.ActionTransferTable, "", sourceName+" -> "+view.TableName()+" moved")
	return view, nil
}

// MergeTables folds the source order into the target order. Unpaid items of
// the same product and price are coalesced, everything else is moved, the
// source's payments are reassigned and the source order is deleted.
func (s *TableService) MergeTables(ctx context.Context, sourceOrderID, targetOrderID string) (*dto.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "TableService.MergeTables", trace.WithAttributes(
		attribute.String("order.source", sourceOrderID),
		attribute.String("order.target", targetOrderID),
	))
	defer span.End()

	const fallback = "could not merge the orders"
	switch {
	case sourceOrderID == "" || targetOrderID == "":
		return nil, s.fail(span, "MergeTables", errorbank.BadRequest("source and target orders are required"), fallback)
	case sourceOrderID == targetOrderID:
		return nil, s.fail(span, "MergeTables", errorbank.BadRequest("an order cannot be merged into itself"), fallback)
	}

	var view *dto.Order
	err := s.repo.RunInTx(ctx, s.ledger.MergeTimeout, func(ctx context.Context, tx ledger.Tx) error {
		source, err := tx.Order(ctx, sourceOrderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		target, err := tx.Order(ctx, targetOrderID)
		if err != nil {
			return notFound(err, "target order not found")
		}
		if err := requireOpen(source); err != nil {
			return err
		}
		if err := requireOpen(target); err != nil {
			return err
		}

		sourceItems, err := tx.Items(ctx, sourceOrderID)
		if err != nil {
			return err
		}
		if len(sourceItems) == 0 {
			return errorbank.Unprocessable("source order has no items")
		}
		targetItems, err := tx.Items(ctx, targetOrderID)
		if err != nil {
			return err
		}

		var moved, coalesced []string
		for _, item := range sourceItems {
			match := coalesceTarget(targetItems, item)
			if match == nil {
				moved = append(moved, item.ID)
				continue
			}
			if err := tx.IncrementItemQuantity(ctx, match.ID, item.Quantity); err != nil {
				return err
			}
			coalesced = append(coalesced, item.ID)
		}

		if err := tx.MoveItems(ctx, moved, targetOrderID); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, coalesced); err != nil {
			return err
		}
		if err := tx.MovePayments(ctx, sourceOrderID, targetOrderID); err != nil {
			return err
		}
		if err := tx.DeleteOrder(ctx, sourceOrderID); err != nil {
			return err
		}
		if err := tx.SetOrderTotal(ctx, targetOrderID, source.TotalAmount+target.TotalAmount); err != nil {
			return err
		}
		view, err = tx.OrderView(ctx, targetOrderID)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "MergeTables", err, fallback)
	}

	s.metrics.merges.Add(ctx, 1)
	s.audit(ctx, activity.ActionMergeTables, view.TableName(), "Orders merged (total: "+s.money(view.TotalAmount)+")")
	return view, nil
}

// coalesceTarget finds the unpaid target row an unpaid source row folds into.
func coalesceTarget(targets []entity.OrderItem, item entity.OrderItem) *entity.OrderItem {
	if item.IsPaid {
		return nil
	}
	for i := range targets {
		t := &targets[i]
		if !t.IsPaid && t.ProductID == item.ProductID && t.UnitPrice == item.UnitPrice {
			return t
		}
	}
	return nil
}
