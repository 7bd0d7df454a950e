package seeder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/tabline/internal/repository/catalog"
	"github.com/Additional-Code/tabline/internal/repository/ledger/ledgertest"
)

func TestRunIsIdempotent(t *testing.T) {
	conns := ledgertest.New(t)
	repo := catalog.NewRepository(conns)
	s := New(repo, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, s.Run(ctx))
	require.NoError(t, s.Run(ctx))

	tables, err := repo.Tables(ctx)
	require.NoError(t, err)
	assert.Len(t, tables, DefaultTableCount)

	products, err := repo.Products(ctx)
	require.NoError(t, err)
	assert.Len(t, products, len(DefaultMenu))
}
