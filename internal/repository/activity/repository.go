package activity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/tabline/internal/database"
	"github.com/Additional-Code/tabline/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/tabline/repository/activity")

// Module provides the activity repository to Fx.
var Module = fx.Provide(NewRepository)

// Repository persists and lists activity log entries.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Insert stores a batch of entries in one statement.
func (r *Repository) Insert(ctx context.Context, logs []entity.ActivityLog) error {
	if len(logs) == 0 {
		return nil
	}
	ctx, span := repoTracer.Start(ctx, "ActivityRepository.Insert", trace.WithAttributes(attribute.Int("activity.count", len(logs))))
	defer span.End()

	for i := range logs {
		if logs[i].ID == "" {
			logs[i].ID = uuid.NewString()
		}
	}
	if _, err := r.writer.NewInsert().Model(&logs).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// ListFilter narrows the activity listing.
type ListFilter struct {
	Limit  int
	Offset int
	Search string
}

// List returns entries newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]entity.ActivityLog, error) {
	ctx, span := repoTracer.Start(ctx, "ActivityRepository.List")
	defer span.End()

	var logs []entity.ActivityLog
	q := r.reader.NewSelect().Model(&logs)
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("al.details LIKE ?", like).
				WhereOr("al.table_name LIKE ?", like).
				WhereOr("al.action LIKE ?", like)
		})
	}
	err := q.OrderExpr("al.created_at DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return logs, nil
}
