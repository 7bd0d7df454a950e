// Package worker runs message consumers registered by feature packages.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tabline/internal/config"
	"github.com/Additional-Code/tabline/internal/messaging"
)

const maxBackoff = 30 * time.Second

var workerMeter = otel.Meter("github.com/Additional-Code/tabline/worker")

// HandlerRegistration binds a topic to its handler.
type HandlerRegistration struct {
	Topic   string
	Handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine consumes the bus with a fixed number of workers and dispatches each
// message to the handler registered for its topic.
type Engine struct {
	client   messaging.Client
	logger   *zap.Logger
	cfg      config.Config
	handlers map[string]messaging.Handler
	handled  metric.Int64Counter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine constructs the worker Engine. A topic registered twice keeps its
// first handler.
func NewEngine(p Params) *Engine {
	handlers := make(map[string]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		if _, dup := handlers[r.Topic]; dup {
			p.Logger.Warn("duplicate worker handler ignored", zap.String("topic", r.Topic))
			continue
		}
		handlers[r.Topic] = r.Handler
	}
	handled, _ := workerMeter.Int64Counter("tabline.worker.messages",
		metric.WithDescription("Messages dispatched to worker handlers"))

	return &Engine{
		client:   p.Client,
		logger:   p.Logger,
		cfg:      p.Config,
		handlers: handlers,
		handled:  handled,
	}
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.Start,
			OnStop:  engine.Stop,
		})
	}),
)

// Start launches the consumers when messaging and workers are enabled.
func (e *Engine) Start(context.Context) error {
	if !e.cfg.Messaging.Enabled || !e.cfg.Messaging.Workers.Enabled {
		e.logger.Info("worker engine disabled")
		return nil
	}
	if len(e.handlers) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")
		return nil
	}

	concurrency := e.cfg.Messaging.Workers.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	for i := 0; i < concurrency; i++ {
		e.wg.Add(1)
		go func(id int) {
			defer e.wg.Done()
			e.consumeLoop(runCtx, id)
		}(i)
	}

	e.logger.Info("worker engine started", zap.Int("workers", concurrency), zap.String("topic", e.client.Topic()))
	return nil
}

// Stop cancels the consumers and waits for them until ctx expires.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")
		return nil
	}
}

// Dispatch routes one message to its handler. Messages for unknown topics
// are acknowledged; a panicking handler is reported as an error.
func (e *Engine) Dispatch(ctx context.Context, msg messaging.Message) (err error) {
	handler, ok := e.handlers[msg.Topic]
	if !ok {
		e.logger.Warn("no handler for topic", zap.String("topic", msg.Topic))
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker handler panicked: %v", r)
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		e.handled.Add(ctx, 1, metric.WithAttributes(
			attribute.String("topic", msg.Topic),
			attribute.String("outcome", outcome),
		))
	}()
	return handler(ctx, msg)
}

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			e.logger.Debug("processing message", zap.String("topic", msg.Topic), zap.Int("worker", workerID))
			return e.Dispatch(msgCtx, msg)
		})
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		e.logger.Error("consume loop error", zap.Int("worker", workerID), zap.Error(err))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
