// Package audit reads the activity log.
package audit

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tabline/internal/dto"
	repo "github.com/Additional-Code/tabline/internal/repository/activity"
	"github.com/Additional-Code/tabline/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/tabline/service/audit")

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Module provides the audit service to Fx.
var Module = fx.Provide(NewService)

// Service lists recorded activity.
type Service struct {
	repo   *repo.Repository
	logger *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: p.Repository, logger: logger}
}

// Query filters the activity listing.
type Query struct {
	Limit  int
	Offset int
	Search string
}

// RecentLogs returns activity newest first. Limit is clamped to 1..1000 and
// defaults to 100.
func (s *Service) RecentLogs(ctx context.Context, q Query) ([]dto.ActivityLog, error) {
	q.Limit = clampLimit(q.Limit)
	if q.Offset < 0 {
		q.Offset = 0
	}
	ctx, span := serviceTracer.Start(ctx, "AuditService.RecentLogs", trace.WithAttributes(
		attribute.Int("activity.limit", q.Limit),
		attribute.Int("activity.offset", q.Offset),
	))
	defer span.End()

	rows, err := s.repo.List(ctx, repo.ListFilter{Limit: q.Limit, Offset: q.Offset, Search: q.Search})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		s.logger.Error("list activity failed", zap.Error(err))
		return nil, errorbank.Internal("could not load activity", errorbank.WithCause(err))
	}
	out := make([]dto.ActivityLog, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.ActivityLog{
			ID:        r.ID,
			Action:    r.Action,
			TableName: r.TableName,
			Details:   r.Details,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

func clampLimit(limit int) int {
	switch {
	case limit == 0:
		return defaultLimit
	case limit < 1:
		return 1
	case limit > maxLimit:
		return maxLimit
	}
	return limit
}
