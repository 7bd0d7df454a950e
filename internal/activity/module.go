package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tabline/internal/config"
	"github.com/Additional-Code/tabline/internal/entity"
	"github.com/Additional-Code/tabline/internal/messaging"
	activityrepo "github.com/Additional-Code/tabline/internal/repository/activity"
)

// Module provides the configured Recorder.
var Module = fx.Provide(NewRecorder)

// Params defines dependencies for constructing the Recorder.
type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Config     config.Config
	Logger     *zap.Logger
	Repository *activityrepo.Repository
	Bus        messaging.Client
}

// NewRecorder selects the sink named by ACTIVITY_SINK.
func NewRecorder(p Params) (Recorder, error) {
	cfg := p.Config.Activity

	var flush FlushFunc
	switch cfg.Sink {
	case "noop":
		p.Logger.Info("activity log disabled; using noop recorder")
		return Nop{}, nil
	case "database":
		flush = StoreFlusher(p.Repository)
	case "messaging":
		flush = BusFlusher(p.Bus)
	default:
		return nil, fmt.Errorf("unsupported activity sink: %s", cfg.Sink)
	}

	pipeline := NewPipeline(cfg.Sink, flush, cfg.FlushInterval, cfg.BufferSize, p.Logger)
	p.Lifecycle.Append(fx.Hook{
		OnStart: pipeline.Start,
		OnStop:  pipeline.Stop,
	})
	return pipeline, nil
}

// Store is the persistence side of the database sink.
type Store interface {
	Insert(ctx context.Context, logs []entity.ActivityLog) error
}

// StoreFlusher writes batches straight to the activity table.
func StoreFlusher(store Store) FlushFunc {
	return func(ctx context.Context, batch []Entry) error {
		return store.Insert(ctx, ToRecords(batch))
	}
}

// BusFlusher publishes each entry as an event; the activity worker persists
// them on the consuming side.
func BusFlusher(bus messaging.Client) FlushFunc {
	return func(ctx context.Context, batch []Entry) error {
		for _, e := range batch {
			payload, err := Encode(e)
			if err != nil {
				return err
			}
			if err := bus.Publish(ctx, []byte(e.Action), payload); err != nil {
				return fmt.Errorf("publish activity: %w", err)
			}
		}
		return nil
	}
}

// ToRecords converts entries into rows.
func ToRecords(batch []Entry) []entity.ActivityLog {
	logs := make([]entity.ActivityLog, 0, len(batch))
	for _, e := range batch {
		logs = append(logs, entity.ActivityLog{
			Action:    e.Action,
			TableName: e.TableName,
			Details:   e.Details,
			CreatedAt: e.At,
		})
	}
	return logs
}

// Encode serialises an entry for the message bus.
func Encode(e Entry) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses an entry published by BusFlusher.
func Decode(payload []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return Entry{}, err
	}
	if e.Action == "" {
		return Entry{}, fmt.Errorf("activity event without action")
	}
	return e, nil
}
