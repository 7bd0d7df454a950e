package order

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tabline/internal/activity"
	"github.com/Additional-Code/tabline/internal/dto"
	"github.com/Additional-Code/tabline/internal/entity"
	"github.com/Additional-Code/tabline/internal/repository/ledger"
	"github.com/Additional-Code/tabline/pkg/errorbank"
)

// CoreService owns the order lifecycle and keeps every order's total equal to
// the sum of its item lines.
type CoreService struct {
	base
}

// NewCoreService wires a new CoreService instance.
func NewCoreService(p Params) *CoreService {
	return &CoreService{base: newBase(p)}
}

// AddItemInput describes an item addition.
type AddItemInput struct {
	OrderID   string
	ProductID string
	Quantity  int64
	UnitPrice int64
}

func (in AddItemInput) validate() error {
	if in.OrderID == "" || in.ProductID == "" {
		return errorbank.BadRequest("order and product are required")
	}
	if in.Quantity <= 0 {
		return errorbank.BadRequest("quantity must be a positive integer", errorbank.WithDetail("quantity", in.Quantity))
	}
	if in.UnitPrice < 0 {
		return errorbank.BadRequest("unit price cannot be negative", errorbank.WithDetail("unitPrice", in.UnitPrice))
	}
	return nil
}

// UpdateOrderInput carries the flags a direct order update may change.
type UpdateOrderInput struct {
	Status   *entity.OrderStatus
	IsLocked *bool
}

// HistoryQuery pages through closed orders.
type HistoryQuery struct {
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// CreateOrder returns the open order of the table, opening one when the table
// has none.
func (s *CoreService) CreateOrder(ctx context.Context, tableID string) (*dto.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "CoreService.CreateOrder", trace.WithAttributes(attribute.String("table.id", tableID)))
	defer span.End()

	if tableID == "" {
		return nil, s.fail(span, "CreateOrder", errorbank.BadRequest("table is required"), "could not open order")
	}

	var view *dto.Order
	err := s.repo.RunInTx(ctx, 0, func(ctx context.Context, tx ledger.Tx) error {
		if _, err := tx.Table(ctx, tableID); err != nil {
			return notFound(err, "table not found")
		}

		orderID := ""
		existing, err := tx.OpenOrderForTable(ctx, tableID)
		switch {
		case err == nil:
			orderID = existing.ID
		case errors.Is(err, ledger.ErrNotFound):
			order := &entity.Order{TableID: tableID, Status: entity.OrderStatusOpen}
			if err := tx.InsertOrder(ctx, order); err != nil {
				return err
			}
			orderID = order.ID
		default:
			return err
		}

		view, err = tx.OrderView(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "CreateOrder", err, "could not open order")
	}
	return view, nil
}

// AddItem adds quantity of a product to an order. An existing unpaid line of
// the same product absorbs the quantity at the price it was first added with.
func (s *CoreService) AddItem(ctx context.Context, in AddItemInput) (*dto.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "CoreService.AddItem", trace.WithAttributes(
		attribute.String("order.id", in.OrderID),
		attribute.String("product.id", in.ProductID),
		attribute.Int64("item.quantity", in.Quantity),
	))
	defer span.End()

	if err := in.validate(); err != nil {
		return nil, s.fail(span, "AddItem", err, "could not add item")
	}

	var (
		view        *dto.Order
		productName string
	)
	err := s.repo.RunInTx(ctx, 0, func(ctx context.Context, tx ledger.Tx) error {
		order, err := tx.Order(ctx, in.OrderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		if err := requireOpen(order); err != nil {
			return err
		}

		unitPrice := in.UnitPrice
		existing, err := tx.UnpaidItem(ctx, in.OrderID, in.ProductID)
		switch {
		case err == nil:
			unitPrice = existing.UnitPrice
			if err := tx.IncrementItemQuantity(ctx, existing.ID, in.Quantity); err != nil {
				return err
			}
		case errors.Is(err, ledger.ErrNotFound):
			item := entity.OrderItem{
				OrderID:   in.OrderID,
				ProductID: in.ProductID,
				Quantity:  in.Quantity,
				UnitPrice: in.UnitPrice,
			}
			if err := tx.InsertItems(ctx, []entity.OrderItem{item}); err != nil {
				return err
			}
		default:
			return err
		}

		if err := tx.AdjustOrderTotal(ctx, in.OrderID, in.Quantity*unitPrice); err != nil {
			return err
		}

		names, err := tx.ProductNames(ctx, []string{in.ProductID})
		if err != nil {
			return err
		}
		productName = nameOr(names, in.ProductID)

		view, err = tx.OrderView(ctx, in.OrderID)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "AddItem", err, "could not add item")
	}

	s.audit(ctx, activity.ActionAddItem, view.TableName(), itemLine(in.Quantity, productName)+" added")
	return view, nil
}

// UpdateItem sets the quantity of an item. A quantity of zero or less removes
// the item.
func (s *CoreService) UpdateItem(ctx context.Context, itemID string, quantity int64) (*dto.Order, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, itemID)
	}

	ctx, span := serviceTracer.Start(ctx, "CoreService.UpdateItem", trace.WithAttributes(
		attribute.String("item.id", itemID),
		attribute.Int64("item.quantity", quantity),
	))
	defer span.End()

	if itemID == "" {
		return nil, s.fail(span, "UpdateItem", errorbank.BadRequest("item is required"), "could not update item")
	}

	var view *dto.Order
	err := s.repo.RunInTx(ctx, 0, func(ctx context.Context, tx ledger.Tx) error {
		item, err := tx.Item(ctx, itemID)
		if err != nil {
			return notFound(err, "item not found")
		}
		order, err := tx.Order(ctx, item.OrderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		if err := requireOpen(order); err != nil {
			return err
		}

		diff := (quantity - item.Quantity) * item.UnitPrice
		if err := tx.SetItemQuantity(ctx, itemID, quantity); err != nil {
			return err
		}
		if err := tx.AdjustOrderTotal(ctx, item.OrderID, diff); err != nil {
			return err
		}
		closed, err := settleIfCovered(ctx, tx, item.OrderID)
		if err != nil {
			return err
		}
		if closed {
			s.metrics.ordersClosed.Add(ctx, 1)
		}

		view, err = tx.OrderView(ctx, item.OrderID)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "UpdateItem", err, "could not update item")
	}
	return view, nil
}

// RemoveItem deletes an item and closes the order when the remaining total is
// already covered by its payments.
func (s *CoreService) RemoveItem(ctx context.Context, itemID string) (*dto.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "CoreService.RemoveItem", trace.WithAttributes(attribute.String("item.id", itemID)))
	defer span.End()

	if itemID == "" {
		return nil, s.fail(span, "RemoveItem", errorbank.BadRequest("item is required"), "could not remove item")
	}

	var (
		view    *dto.Order
		removed entity.OrderItem
		name    string
	)
	err := s.repo.RunInTx(ctx, 0, func(ctx context.Context, tx ledger.Tx) error {
		item, err := tx.Item(ctx, itemID)
		if err != nil {
			return notFound(err, "item not found")
		}
		order, err := tx.Order(ctx, item.OrderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		if err := requireOpen(order); err != nil {
			return err
		}
		removed = *item

		if err := tx.DeleteItems(ctx, []string{itemID}); err != nil {
			return err
		}
		if err := tx.AdjustOrderTotal(ctx, item.OrderID, -item.LineTotal()); err != nil {
			return err
		}
		closed, err := settleIfCovered(ctx, tx, item.OrderID)
		if err != nil {
			return err
		}
		if closed {
			s.metrics.ordersClosed.Add(ctx, 1)
		}

		names, err := tx.ProductNames(ctx, []string{item.ProductID})
		if err != nil {
			return err
		}
		name = nameOr(names, item.ProductID)

		view, err = tx.OrderView(ctx, item.OrderID)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "RemoveItem", err, "could not remove item")
	}

	s.audit(ctx, activity.ActionRemoveItem, view.TableName(), itemLine(removed.Quantity, name)+" removed")
	return view, nil
}

// DeleteOrder deletes an order and its items. Orders with recorded payments
// are never deleted.
func (s *CoreService) DeleteOrder(ctx context.Context, orderID string) error {
	ctx, span := serviceTracer.Start(ctx, "CoreService.DeleteOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if orderID == "" {
		return s.fail(span, "DeleteOrder", errorbank.BadRequest("order is required"), "could not delete order")
	}

	var snapshot *dto.Order
	err := s.repo.RunInTx(ctx, 0, func(ctx context.Context, tx ledger.Tx) error {
		view, err := tx.OrderView(ctx, orderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		count, err := tx.PaymentCount(ctx, orderID)
		if err != nil {
			return err
		}
		if count > 0 {
			return errorbank.Unprocessable("cannot delete an order with recorded payments; use a refund or void instead",
				errorbank.WithDetail("payments", count))
		}
		snapshot = view
		return tx.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		return s.fail(span, "DeleteOrder", err, "could not delete order")
	}

	lines := make([]string, 0, len(snapshot.Items))
	for _, it := range snapshot.Items {
		lines = append(lines, itemLine(it.Quantity, it.ProductName))
	}
	s.audit(ctx, activity.ActionDeleteOrder, snapshot.TableName(), "Table cleared: "+joinLines(lines))
	return nil
}

// CloseOrder marks an order CLOSED without recomputing anything.
func (s *CoreService) CloseOrder(ctx context.Context, orderID string) (*dto.Order, error) {
	closed := entity.OrderStatusClosed
	return s.updateOrder(ctx, "CloseOrder", orderID, UpdateOrderInput{Status: &closed}, "could not close order")
}

// UpdateOrder changes the status or lock flag of an order. Closed orders
// cannot be reopened.
func (s *CoreService) UpdateOrder(ctx context.Context, orderID string, in UpdateOrderInput) (*dto.Order, error) {
	return s.updateOrder(ctx, "UpdateOrder", orderID, in, "could not update order")
}

func (s *CoreService) updateOrder(ctx context.Context, op, orderID string, in UpdateOrderInput, fallback string) (*dto.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "CoreService."+op, trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if orderID == "" {
		return nil, s.fail(span, op, errorbank.BadRequest("order is required"), fallback)
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, s.fail(span, op, errorbank.BadRequest("unknown order status", errorbank.WithDetail("status", *in.Status)), fallback)
	}

	var (
		view      *dto.Order
		newClosed bool
	)
	err := s.repo.RunInTx(ctx, 0, func(ctx context.Context, tx ledger.Tx) error {
		order, err := tx.Order(ctx, orderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		if in.Status != nil && *in.Status == entity.OrderStatusOpen && order.Status == entity.OrderStatusClosed {
			return errorbank.Unprocessable("a closed order cannot be reopened")
		}
		if in.IsLocked != nil {
			if err := requireOpen(order); err != nil {
				return err
			}
		}
		newClosed = in.Status != nil && *in.Status == entity.OrderStatusClosed && order.Status == entity.OrderStatusOpen

		patch := ledger.OrderPatch{Status: in.Status, IsLocked: in.IsLocked}
		if !patch.Empty() {
			if err := tx.UpdateOrder(ctx, orderID, patch); err != nil {
				return err
			}
		}
		view, err = tx.OrderView(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, s.fail(span, op, err, fallback)
	}
	if newClosed {
		s.metrics.ordersClosed.Add(ctx, 1)
	}
	return view, nil
}

// GetOpenOrderForTable returns the table's open order, or nil when it has none.
func (s *CoreService) GetOpenOrderForTable(ctx context.Context, tableID string) (*dto.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "CoreService.GetOpenOrderForTable", trace.WithAttributes(attribute.String("table.id", tableID)))
	defer span.End()

	view, err := s.repo.OpenOrderView(ctx, tableID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail(span, "GetOpenOrderForTable", err, "could not load order")
	}
	return view, nil
}

// GetOrderDetails returns the projection of one order.
func (s *CoreService) GetOrderDetails(ctx context.Context, orderID string) (*dto.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "CoreService.GetOrderDetails", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	view, err := s.repo.OrderView(ctx, orderID)
	if err != nil {
		return nil, s.fail(span, "GetOrderDetails", notFound(err, "order not found"), "could not load order details")
	}
	return view, nil
}

// GetOrderHistory pages through closed orders, newest first.
func (s *CoreService) GetOrderHistory(ctx context.Context, q HistoryQuery) (*dto.OrderHistory, error) {
	ctx, span := serviceTracer.Start(ctx, "CoreService.GetOrderHistory")
	defer span.End()

	if q.Limit <= 0 {
		q.Limit = s.ledger.HistoryPageSize
	}
	if s.ledger.HistoryMaxPageSize > 0 && q.Limit > s.ledger.HistoryMaxPageSize {
		q.Limit = s.ledger.HistoryMaxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, s.fail(span, "GetOrderHistory", errorbank.BadRequest("date range ends before it starts"), "could not load order history")
	}

	orders, total, err := s.repo.History(ctx, ledger.HistoryFilter{From: q.From, To: q.To, Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		return nil, s.fail(span, "GetOrderHistory", err, "could not load order history")
	}
	return &dto.OrderHistory{
		Orders:     orders,
		TotalCount: total,
		HasMore:    q.Offset+len(orders) < total,
	}, nil
}

func nameOr(names map[string]string, productID string) string {
	if name, ok := names[productID]; ok {
		return name
	}
	return ledger.UnknownProduct
}
