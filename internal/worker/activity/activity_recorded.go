// Package activity consumes activity events published by the messaging sink
// and persists them.
package activity

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tabline/internal/activity"
	"github.com/Additional-Code/tabline/internal/config"
	"github.com/Additional-Code/tabline/internal/messaging"
	activityrepo "github.com/Additional-Code/tabline/internal/repository/activity"
	"github.com/Additional-Code/tabline/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/tabline/worker/activity")

// Module registers the activity persistence handler.
var Module = fx.Module("worker_activity",
	fx.Provide(
		fx.Annotate(
			func(logger *zap.Logger, cfg config.Config, repo *activityrepo.Repository) worker.HandlerRegistration {
				return NewActivityRecordedHandler(logger, cfg, repo)
			},
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewActivityRecordedHandler stores every decoded activity event. Malformed
// payloads are logged and acknowledged so they do not block the partition.
func NewActivityRecordedHandler(logger *zap.Logger, cfg config.Config, store activity.Store) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.activity.persist", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.Int64("messaging.offset", msg.Offset),
		))
		defer span.End()

		entry, err := activity.Decode(msg.Value)
		if err != nil {
			logger.Warn("dropping malformed activity event", zap.Int64("offset", msg.Offset), zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}
		if entry.At.IsZero() {
			entry.At = msg.Time
		}

		if err := store.Insert(ctx, activity.ToRecords([]activity.Entry{entry})); err != nil {
			logger.Error("persist activity event", zap.String("action", entry.Action), zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "store error")
			return err
		}
		logger.Debug("activity event persisted", zap.String("action", entry.Action), zap.String("table", entry.TableName))
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
