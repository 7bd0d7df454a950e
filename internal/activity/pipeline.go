package activity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FlushFunc delivers a batch of entries to a sink.
type FlushFunc func(ctx context.Context, batch []Entry) error

// Pipeline buffers entries and flushes them in batches from a single
// goroutine, either every interval or as soon as a batch is full.
type Pipeline struct {
	name     string
	flush    FlushFunc
	interval time.Duration
	size     int
	logger   *zap.Logger

	queue  chan Entry
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewPipeline builds a stopped pipeline.
func NewPipeline(name string, flush FlushFunc, interval time.Duration, size int, logger *zap.Logger) *Pipeline {
	if size <= 0 {
		size = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Pipeline{
		name:     name,
		flush:    flush,
		interval: interval,
		size:     size,
		logger:   logger,
		queue:    make(chan Entry, size*4),
		done:     make(chan struct{}),
	}
}

// Record enqueues an entry, dropping it when the queue is full.
func (p *Pipeline) Record(_ context.Context, entry Entry) {
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	select {
	case p.queue <- entry:
	default:
		p.logger.Warn("activity queue full; entry dropped",
			zap.String("sink", p.name),
			zap.String("action", entry.Action),
		)
	}
}

// Start launches the flush loop.
func (p *Pipeline) Start(context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.loop(runCtx)
	p.logger.Info("activity pipeline started", zap.String("sink", p.name), zap.Duration("interval", p.interval))
	return nil
}

// Stop drains pending entries and waits for the loop to exit.
func (p *Pipeline) Stop(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		if p.cancel == nil {
			return
		}
		p.cancel()
		select {
		case <-p.done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

func (p *Pipeline) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	batch := make([]Entry, 0, p.size)
	deliver := func() {
		if len(batch) == 0 {
			return
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.flush(flushCtx, batch); err != nil {
			p.logger.Warn("activity flush failed",
				zap.String("sink", p.name),
				zap.Int("entries", len(batch)),
				zap.Error(err),
			)
		}
		batch = make([]Entry, 0, p.size)
	}

	for {
		select {
		case entry := <-p.queue:
			batch = append(batch, entry)
			if len(batch) >= p.size {
				deliver()
			}
		case <-ticker.C:
			deliver()
		case <-ctx.Done():
			for {
				select {
				case entry := <-p.queue:
					batch = append(batch, entry)
				default:
					deliver()
					return
				}
			}
		}
	}
}
