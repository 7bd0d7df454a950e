package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/tabline/internal/config"
)

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "tabline.db?_foreign_keys=on&_busy_timeout=5000", sqliteDSN("tabline.db"))
	assert.Equal(t, "file:x?mode=memory&_foreign_keys=on&_busy_timeout=5000", sqliteDSN("file:x?mode=memory"))
	assert.Equal(t, "x.db?_fk=1&_timeout=10", sqliteDSN("x.db?_fk=1&_timeout=10"))
}

func TestNewSqliteSharesWriter(t *testing.T) {
	dsn := fmt.Sprintf("file:db_%s?mode=memory&cache=shared", uuid.NewString()[:8])
	cfg := config.Config{Database: config.Database{
		Driver:    "sqlite",
		WriterDSN: dsn,
		ReaderDSN: dsn + "&ignored=1",
	}}

	lc := fxtest.NewLifecycle(t)
	conns, err := New(lc, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	lc.RequireStart()
	defer lc.RequireStop()

	assert.Same(t, conns.Writer, conns.Reader)

	var enabled int
	require.NoError(t, conns.Writer.NewRaw("PRAGMA foreign_keys").Scan(context.Background(), &enabled))
	assert.Equal(t, 1, enabled)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := config.Config{Database: config.Database{Driver: "oracle", WriterDSN: "x"}}
	_, err := New(fxtest.NewLifecycle(t), cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "unsupported database driver")
}
