package activity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/tabline/internal/entity"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "çayçayç...", Truncate("çayçayçayçay", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "unbounded", Truncate("unbounded", 0))
}

type fakeStore struct {
	mu   sync.Mutex
	logs []entity.ActivityLog
	err  error
}

func (f *fakeStore) Insert(_ context.Context, logs []entity.ActivityLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.logs = append(f.logs, logs...)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logs)
}

func TestPipelineFlushesOnStop(t *testing.T) {
	store := &fakeStore{}
	p := NewPipeline("database", StoreFlusher(store), time.Hour, 10, zap.NewNop())
	require.NoError(t, p.Start(context.Background()))

	p.Record(context.Background(), Entry{Action: ActionAddItem, TableName: "Table 1", Details: "2x Tea added"})
	p.Record(context.Background(), Entry{Action: ActionRemoveItem, TableName: "Table 1"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))

	require.Equal(t, 2, store.count())
	assert.Equal(t, ActionAddItem, store.logs[0].Action)
	assert.False(t, store.logs[0].CreatedAt.IsZero())
}

func TestPipelineFlushesFullBatch(t *testing.T) {
	store := &fakeStore{}
	p := NewPipeline("database", StoreFlusher(store), time.Hour, 2, zap.NewNop())
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop(context.Background())

	p.Record(context.Background(), Entry{Action: ActionAddItem})
	p.Record(context.Background(), Entry{Action: ActionAddItem})

	assert.Eventually(t, func() bool { return store.count() == 2 }, time.Second, 10*time.Millisecond)
}

func TestPipelineSwallowsSinkErrors(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	p := NewPipeline("database", StoreFlusher(store), 10*time.Millisecond, 5, zap.NewNop())
	require.NoError(t, p.Start(context.Background()))

	p.Record(context.Background(), Entry{Action: ActionMergeTables})
	require.NoError(t, p.Stop(context.Background()))
	assert.Zero(t, store.count())
}

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	payload, err := Encode(Entry{Action: ActionCloseTable, TableName: "Table 3", Details: "closed", At: at})
	require.NoError(t, err)

	got, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, "Table 3", got.TableName)
	assert.True(t, at.Equal(got.At))

	_, err = Decode([]byte(`{"details":"no action"}`))
	assert.Error(t, err)
}

func TestMemory(t *testing.T) {
	var m Memory
	_, ok := m.Last()
	assert.False(t, ok)

	m.Record(context.Background(), Entry{Action: ActionItemsPaid})
	last, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, ActionItemsPaid, last.Action)
	assert.Len(t, m.Entries(), 1)
}
