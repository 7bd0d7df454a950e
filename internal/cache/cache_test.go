package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/tabline/internal/config"
)

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemory(time.Minute)
	store.now = func() time.Time { return clock }

	require.NoError(t, store.Set(ctx, "catalog:tables", []byte("[]"), 0))
	got, err := store.Get(ctx, "catalog:tables")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	clock = clock.Add(time.Minute)
	_, err = store.Get(ctx, "catalog:tables")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryStoreDeleteAndCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(0)

	value := []byte("Tea")
	require.NoError(t, store.Set(ctx, "k", value, 0))
	value[0] = 'S'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "Tea", string(got))

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Error(t, store.Set(ctx, "", nil, 0))
}

func TestNewStoreDrivers(t *testing.T) {
	var cfg config.Config

	cfg.Cache.Driver = "noop"
	store, err := NewStore(fxtest.NewLifecycle(t), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = store.Get(context.Background(), "x")
	assert.ErrorIs(t, err, ErrCacheMiss)

	cfg.Cache.Driver = "memory"
	store, err = NewStore(fxtest.NewLifecycle(t), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, store)

	cfg.Cache.Driver = "memcached"
	_, err = NewStore(fxtest.NewLifecycle(t), cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "unsupported cache driver")
}
