// Package order implements the transactional core of the ledger: order and
// item mutations, payments with item splitting, and table transfers and
// merges. Every public operation runs in exactly one ledger transaction,
// records activity only after commit and returns errorbank errors.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tabline/internal/activity"
	"github.com/Additional-Code/tabline/internal/config"
	"github.com/Additional-Code/tabline/internal/entity"
	"github.com/Additional-Code/tabline/internal/repository/ledger"
	"github.com/Additional-Code/tabline/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/Additional-Code/tabline/service/order")
	serviceMeter  = otel.Meter("github.com/Additional-Code/tabline/service/order")
)

// Params defines dependencies shared by the order services.
type Params struct {
	fx.In

	Repository *ledger.Repository
	Recorder   activity.Recorder
	Config     config.Config
	Logger     *zap.Logger
}

type instruments struct {
	ordersClosed metric.Int64Counter
	paidAmount   metric.Int64Counter
	merges       metric.Int64Counter
}

func newInstruments() instruments {
	var in instruments
	in.ordersClosed, _ = serviceMeter.Int64Counter("tabline.orders.closed",
		metric.WithDescription("Orders transitioned to CLOSED"))
	in.paidAmount, _ = serviceMeter.Int64Counter("tabline.payments.amount",
		metric.WithDescription("Recorded payment amount in minor units"))
	in.merges, _ = serviceMeter.Int64Counter("tabline.merges",
		metric.WithDescription("Completed order merges"))
	return in
}

// base holds what the three services share.
type base struct {
	repo        *ledger.Repository
	recorder    activity.Recorder
	logger      *zap.Logger
	ledger      config.Ledger
	detailLimit int
	metrics     instruments
}

func newBase(p Params) base {
	recorder := p.Recorder
	if recorder == nil {
		recorder = activity.Nop{}
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{
		repo:        p.Repository,
		recorder:    recorder,
		logger:      logger,
		ledger:      p.Config.Ledger,
		detailLimit: p.Config.Activity.DetailMaxLength,
		metrics:     newInstruments(),
	}
}

// fail converts err into the error returned to callers. Infrastructure
// errors are logged with their cause and replaced by fallback.
func (b *base) fail(span trace.Span, op string, err error, fallback string) error {
	appErr := errorbank.Normalize(err, fallback)
	span.RecordError(err)
	span.SetStatus(codes.Error, appErr.Message())
	if appErr.Kind() == errorbank.KindInternal {
		b.logger.Error(op+" failed", zap.String("op", op), zap.Error(err))
	} else {
		b.logger.Info(op+" rejected", zap.String("op", op), zap.String("kind", string(appErr.Kind())), zap.String("reason", appErr.Message()))
	}
	return appErr
}

// audit records an activity entry. Called only after commit.
func (b *base) audit(ctx context.Context, action, tableName, details string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("activity recorder panicked", zap.String("action", action), zap.Any("panic", r))
		}
	}()
	b.recorder.Record(ctx, activity.Entry{
		Action:    action,
		TableName: tableName,
		Details:   activity.Truncate(details, b.detailLimit),
	})
}

// money renders minor units for audit text, e.g. 1250 -> "12.50 ₺".
func (b *base) money(amount int64) string {
	s := decimal.New(amount, -2).StringFixed(2)
	if b.ledger.CurrencySymbol == "" {
		return s
	}
	return s + " " + b.ledger.CurrencySymbol
}

func methodLabel(m entity.PaymentMethod) string {
	if m == entity.PaymentMethodCard {
		return "card"
	}
	return "cash"
}

// notFound maps ledger.ErrNotFound onto a specific not-found message.
func notFound(err error, message string) error {
	if errors.Is(err, ledger.ErrNotFound) {
		return errorbank.NotFound(message)
	}
	return err
}

func requireOpen(order *entity.Order) error {
	if order.Status != entity.OrderStatusOpen {
		return errorbank.Unprocessable("order is closed", errorbank.WithDetail("orderId", order.ID))
	}
	return nil
}

// settleIfCovered closes an open order whose recorded payments cover its
// total, marking every remaining unpaid item as paid. It reports whether the
// order was closed.
func settleIfCovered(ctx context.Context, tx ledger.Tx, orderID string) (bool, error) {
	order, err := tx.Order(ctx, orderID)
	if err != nil {
		return false, notFound(err, "order not found")
	}
	if order.Status != entity.OrderStatusOpen {
		return false, nil
	}
	paid, err := tx.PaidAmount(ctx, orderID)
	if err != nil {
		return false, err
	}
	if paid <= 0 || order.TotalAmount > paid {
		return false, nil
	}
	if err := tx.MarkOrderItemsPaid(ctx, orderID); err != nil {
		return false, err
	}
	if err := tx.SetOrderStatus(ctx, orderID, entity.OrderStatusClosed); err != nil {
		return false, err
	}
	return true, nil
}

func itemLine(quantity int64, name string) string {
	return fmt.Sprintf("%dx %s", quantity, name)
}

func joinLines(lines []string) string {
	return strings.Join(lines, ", ")
}
