package order

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/tabline/internal/activity"
	"github.com/Additional-Code/tabline/internal/dto"
	"github.com/Additional-Code/tabline/internal/entity"
	"github.com/Additional-Code/tabline/internal/repository/ledger"
	"github.com/Additional-Code/tabline/pkg/errorbank"
)

// PaymentService applies money to orders and settles items, splitting rows
// when only part of an item's quantity is paid.
type PaymentService struct {
	base
}

// NewPaymentService wires a new PaymentService instance.
func NewPaymentService(p Params) *PaymentService {
	return &PaymentService{base: newBase(p)}
}

// ItemPayment names how much of an item is being settled.
type ItemPayment struct {
	ItemID   string `json:"id"`
	Quantity int64  `json:"quantity"`
}

// PaymentInput describes a payment on an order.
type PaymentInput struct {
	OrderID         string
	Amount          int64
	Method          entity.PaymentMethod
	ItemsToMarkPaid []ItemPayment
	SkipLog         bool
}

// PaymentDetails describes a payment recorded elsewhere, used for audit text.
type PaymentDetails struct {
	Amount int64
	Method entity.PaymentMethod
}

func validateItemPayments(items []ItemPayment) error {
	for _, it := range items {
		if it.ItemID == "" {
			return errorbank.BadRequest("item is required")
		}
		if it.Quantity <= 0 {
			return errorbank.BadRequest("quantity must be a positive integer",
				errorbank.WithDetail("itemId", it.ItemID), errorbank.WithDetail("quantity", it.Quantity))
		}
	}
	return nil
}

// ProcessPayment records a payment, optionally settles the given items and
// closes the order once the remaining balance reaches zero. Card payments may
// not exceed the remaining balance.
func (s *PaymentService) ProcessPayment(ctx context.Context, in PaymentInput) (*dto.PaymentResult, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.ProcessPayment", trace.WithAttributes(
		attribute.String("order.id", in.OrderID),
		attribute.Int64("payment.amount", in.Amount),
		attribute.String("payment.method", string(in.Method)),
	))
	defer span.End()

	const fallback = "could not record payment"
	switch {
	case in.OrderID == "":
		return nil, s.fail(span, "ProcessPayment", errorbank.BadRequest("order is required"), fallback)
	case in.Amount <= 0:
		return nil, s.fail(span, "ProcessPayment", errorbank.BadRequest("payment amount must be greater than zero",
			errorbank.WithDetail("amount", in.Amount)), fallback)
	case !in.Method.Valid():
		return nil, s.fail(span, "ProcessPayment", errorbank.BadRequest("unknown payment method",
			errorbank.WithDetail("method", in.Method)), fallback)
	}
	if err := validateItemPayments(in.ItemsToMarkPaid); err != nil {
		return nil, s.fail(span, "ProcessPayment", err, fallback)
	}

	var (
		result    dto.PaymentResult
		paidLines []string
	)
	err := s.repo.RunInTx(ctx, 0, func(ctx context.Context, tx ledger.Tx) error {
		order, err := tx.Order(ctx, in.OrderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		if err := requireOpen(order); err != nil {
			return err
		}
		paid, err := tx.PaidAmount(ctx, in.OrderID)
		if err != nil {
			return err
		}
		remaining := order.TotalAmount - paid
		if in.Method == entity.PaymentMethodCard && in.Amount > remaining {
			return errorbank.Unprocessable("card payment cannot exceed the remaining balance",
				errorbank.WithDetail("remaining", remaining), errorbank.WithDetail("amount", in.Amount))
		}

		payment := &entity.Payment{OrderID: in.OrderID, Amount: in.Amount, PaymentMethod: in.Method}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}

		if len(in.ItemsToMarkPaid) > 0 {
			if paidLines, err = applySplit(ctx, tx, in.OrderID, in.ItemsToMarkPaid); err != nil {
				return err
			}
		}

		if remaining-in.Amount <= 0 {
			if err := tx.MarkOrderItemsPaid(ctx, in.OrderID); err != nil {
				return err
			}
			if err := tx.SetOrderStatus(ctx, in.OrderID, entity.OrderStatusClosed); err != nil {
				return err
			}
			result.Completed = true
		}

		result.Order, err = tx.OrderView(ctx, in.OrderID)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "ProcessPayment", err, fallback)
	}

	s.metrics.paidAmount.Add(ctx, in.Amount, metric.WithAttributes(attribute.String("method", string(in.Method))))
	if result.Completed {
		s.metrics.ordersClosed.Add(ctx, 1)
	}

	if in.SkipLog {
		return &result, nil
	}
	amount := s.money(in.Amount) + " " + methodLabel(in.Method)
	if result.Completed {
		lines := make([]string, 0, len(result.Order.Items))
		for _, it := range result.Order.Items {
			lines = append(lines, itemLine(it.Quantity, it.ProductName))
		}
		s.audit(ctx, activity.ActionCloseTable, result.Order.TableName(),
			"Table closed with "+amount+". Paid: "+joinLines(lines))
		return &result, nil
	}

	details := "Partial payment received: " + amount
	if len(paidLines) > 0 {
		details += " (paid: " + joinLines(paidLines) + ")"
	}
	action := activity.ActionPaymentCash
	if in.Method == entity.PaymentMethodCard {
		action = activity.ActionPaymentCard
	}
	s.audit(ctx, action, result.Order.TableName(), details)
	return &result, nil
}

// MarkItemsPaid settles items without recording a payment. All items must
// belong to the same open order. It returns nil when items is empty.
func (s *PaymentService) MarkItemsPaid(ctx context.Context, items []ItemPayment, details *PaymentDetails) (*dto.Order, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ctx, span := serviceTracer.Start(ctx, "PaymentService.MarkItemsPaid", trace.WithAttributes(attribute.Int("items.count", len(items))))
	defer span.End()

	const fallback = "could not mark items as paid"
	if err := validateItemPayments(items); err != nil {
		return nil, s.fail(span, "MarkItemsPaid", err, fallback)
	}

	var (
		view  *dto.Order
		lines []string
	)
	err := s.repo.RunInTx(ctx, 0, func(ctx context.Context, tx ledger.Tx) error {
		first, err := tx.Item(ctx, items[0].ItemID)
		if err != nil {
			return notFound(err, "item not found")
		}
		order, err := tx.Order(ctx, first.OrderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		if err := requireOpen(order); err != nil {
			return err
		}
		if lines, err = applySplit(ctx, tx, order.ID, items); err != nil {
			return err
		}
		view, err = tx.OrderView(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "MarkItemsPaid", err, fallback)
	}

	if len(lines) > 0 {
		text := "Items paid: " + joinLines(lines)
		if details != nil {
			text = "Items paid with " + s.money(details.Amount) + " " + methodLabel(details.Method) + ": " + joinLines(lines)
		}
		s.audit(ctx, activity.ActionItemsPaid, view.TableName(), text)
	}
	return view, nil
}
