package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/tabline/internal/activity"
	"github.com/Additional-Code/tabline/internal/entity"
	repo "github.com/Additional-Code/tabline/internal/repository/activity"
	"github.com/Additional-Code/tabline/internal/repository/ledger/ledgertest"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultLimit, clampLimit(0))
	assert.Equal(t, 1, clampLimit(-5))
	assert.Equal(t, 1000, clampLimit(5000))
	assert.Equal(t, 42, clampLimit(42))
}

func TestRecentLogsNewestFirstWithSearch(t *testing.T) {
	conns := ledgertest.New(t)
	r := repo.NewRepository(conns)
	svc := NewService(Params{Repository: r})
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, r.Insert(ctx, []entity.ActivityLog{
		{Action: activity.ActionAddItem, TableName: "Table 1", Details: "2x Tea added", CreatedAt: base},
		{Action: activity.ActionPaymentCash, TableName: "Table 1", Details: "Partial payment received", CreatedAt: base.Add(time.Minute)},
		{Action: activity.ActionMergeTables, TableName: "Garden 2", Details: "Orders merged", CreatedAt: base.Add(2 * time.Minute)},
	}))

	logs, err := svc.RecentLogs(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, activity.ActionMergeTables, logs[0].Action)
	assert.Equal(t, activity.ActionAddItem, logs[2].Action)

	logs, err = svc.RecentLogs(ctx, Query{Search: "Tea"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "2x Tea added", logs[0].Details)

	logs, err = svc.RecentLogs(ctx, Query{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, activity.ActionPaymentCash, logs[0].Action)
}
