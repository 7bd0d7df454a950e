package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/tabline/internal/config"
	"github.com/Additional-Code/tabline/internal/messaging"
)

// feedClient hands a fixed set of messages to the consumer, then blocks.
type feedClient struct {
	msgs []messaging.Message

	mu   sync.Mutex
	errs []error
}

func (f *feedClient) Publish(context.Context, []byte, []byte) error { return nil }
func (f *feedClient) Topic() string                                 { return "tabline.activity" }

func (f *feedClient) Consume(ctx context.Context, handler messaging.Handler) error {
	for _, m := range f.msgs {
		err := handler(ctx, m)
		f.mu.Lock()
		f.errs = append(f.errs, err)
		f.mu.Unlock()
	}
	<-ctx.Done()
	return ctx.Err()
}

func enabledConfig() config.Config {
	var cfg config.Config
	cfg.Messaging.Enabled = true
	cfg.Messaging.Workers.Enabled = true
	cfg.Messaging.Workers.Concurrency = 1
	return cfg
}

func TestEngineDispatchesByTopic(t *testing.T) {
	received := make(chan string, 2)
	client := &feedClient{msgs: []messaging.Message{
		{Topic: "tabline.activity", Value: []byte("a")},
		{Topic: "unknown", Value: []byte("b")},
	}}
	engine := NewEngine(Params{
		Client: client,
		Logger: zaptest.NewLogger(t),
		Config: enabledConfig(),
		Registrations: []HandlerRegistration{{
			Topic: "tabline.activity",
			Handler: func(_ context.Context, msg messaging.Message) error {
				received <- string(msg.Value)
				return nil
			},
		}},
	})

	require.NoError(t, engine.Start(context.Background()))
	select {
	case v := <-received:
		assert.Equal(t, "a", v)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, engine.Stop(ctx))
	assert.Empty(t, received)
}

func TestEngineDisabledDoesNotConsume(t *testing.T) {
	engine := NewEngine(Params{
		Client: &feedClient{},
		Logger: zaptest.NewLogger(t),
		Config: config.Config{},
	})
	require.NoError(t, engine.Start(context.Background()))
	assert.NoError(t, engine.Stop(context.Background()))
}

func TestDispatchRecoversFromPanics(t *testing.T) {
	engine := NewEngine(Params{
		Client: &feedClient{},
		Logger: zaptest.NewLogger(t),
		Config: enabledConfig(),
		Registrations: []HandlerRegistration{
			{Topic: "boom", Handler: func(context.Context, messaging.Message) error { panic("bad payload") }},
			{Topic: "fail", Handler: func(context.Context, messaging.Message) error { return errors.New("nope") }},
			{Topic: "fail", Handler: func(context.Context, messaging.Message) error { return nil }},
		},
	})

	err := engine.Dispatch(context.Background(), messaging.Message{Topic: "boom"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad payload")

	assert.Error(t, engine.Dispatch(context.Background(), messaging.Message{Topic: "fail"}))
	assert.NoError(t, engine.Dispatch(context.Background(), messaging.Message{Topic: "other"}))
}
