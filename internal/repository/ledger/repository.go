package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/tabline/internal/config"
	"github.com/Additional-Code/tabline/internal/database"
	"github.com/Additional-Code/tabline/internal/dto"
	"github.com/Additional-Code/tabline/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/tabline/repository/ledger")

// ErrNotFound is returned when a row addressed by id or filter is missing.
var ErrNotFound = errors.New("ledger: record not found")

// Module provides the ledger repository to Fx.
var Module = fx.Provide(NewRepository)

// TxFunc is the body of a ledger transaction.
type TxFunc func(ctx context.Context, tx Tx) error

// Repository is the ledger store: every mutation goes through RunInTx, reads
// of committed state use the reader connection.
type Repository struct {
	writer  *bun.DB
	reader  *bun.DB
	timeout time.Duration
}

// NewRepository wires a repository backed by the configured connections.
func NewRepository(conns *database.Connections, cfg config.Config) *Repository {
	return &Repository{
		writer:  conns.Writer,
		reader:  conns.Reader,
		timeout: cfg.Ledger.TxTimeout,
	}
}

// RunInTx runs fn inside one transaction bounded by timeout (the configured
// default when timeout <= 0). The transaction commits when fn returns nil and
// rolls back otherwise.
func (r *Repository) RunInTx(ctx context.Context, timeout time.Duration, fn TxFunc) error {
	if timeout <= 0 {
		timeout = r.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, span := repoTracer.Start(ctx, "LedgerRepository.RunInTx", trace.WithAttributes(
		attribute.String("ledger.timeout", timeout.String()),
	))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, btx bun.Tx) error {
		return fn(ctx, &bunTx{db: btx})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction rolled back")
	}
	return err
}

// OrderView loads the committed projection of an order.
func (r *Repository) OrderView(ctx context.Context, id string) (*dto.Order, error) {
	ctx, span := repoTracer.Start(ctx, "LedgerRepository.OrderView", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	view, err := loadOrderView(ctx, r.reader, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
	}
	return view, err
}

// OpenOrderView loads the open order of a table, or ErrNotFound.
func (r *Repository) OpenOrderView(ctx context.Context, tableID string) (*dto.Order, error) {
	ctx, span := repoTracer.Start(ctx, "LedgerRepository.OpenOrderView", trace.WithAttributes(attribute.String("table.id", tableID)))
	defer span.End()

	order, err := findOpenOrder(ctx, r.reader, tableID)
	if err != nil {
		return nil, err
	}
	views, err := buildViews(ctx, r.reader, []entity.Order{*order})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "projection failed")
		return nil, err
	}
	return &views[0], nil
}

// HistoryFilter selects closed orders for the history listing.
type HistoryFilter struct {
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// History returns one page of closed orders, newest first, with the total
// number of matching orders.
func (r *Repository) History(ctx context.Context, f HistoryFilter) ([]dto.Order, int, error) {
	ctx, span := repoTracer.Start(ctx, "LedgerRepository.History", trace.WithAttributes(
		attribute.Int("history.limit", f.Limit),
		attribute.Int("history.offset", f.Offset),
	))
	defer span.End()

	filter := func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("o.status = ?", entity.OrderStatusClosed)
		if !f.From.IsZero() {
			q = q.Where("o.created_at >= ?", f.From)
		}
		if !f.To.IsZero() {
			q = q.Where("o.created_at <= ?", f.To)
		}
		return q
	}

	total, err := filter(r.reader.NewSelect().Model((*entity.Order)(nil))).Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return nil, 0, err
	}

	var orders []entity.Order
	err = filter(r.reader.NewSelect().Model(&orders)).
		OrderExpr("o.created_at DESC").
		OrderExpr("o.id DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}

	views, err := buildViews(ctx, r.reader, orders)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func findOpenOrder(ctx context.Context, db bun.IDB, tableID string) (*entity.Order, error) {
	order := new(entity.Order)
	err := db.NewSelect().Model(order).
		Where("o.table_id = ?", tableID).
		Where("o.status = ?", entity.OrderStatusOpen).
		OrderExpr("o.created_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}
