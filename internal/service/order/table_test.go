package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/tabline/internal/activity"
	"github.com/Additional-Code/tabline/internal/entity"
	"github.com/Additional-Code/tabline/internal/repository/ledger/ledgertest"
	"github.com/Additional-Code/tabline/pkg/errorbank"
)

func TestToggleLock(t *testing.T) {
	f := newFixture(t)
	order := f.openWith(t, "Table 1")

	order, err := f.tables.ToggleLock(f.ctx, order.ID, true)
	require.NoError(t, err)
	assert.True(t, order.IsLocked)

	order, err = f.tables.ToggleLock(f.ctx, order.ID, false)
	require.NoError(t, err)
	assert.False(t, order.IsLocked)

	_, err = f.tables.ToggleLock(f.ctx, "missing", true)
	assertKind(t, err, errorbank.KindNotFound, "order not found")

	_, err = f.core.CloseOrder(f.ctx, order.ID)
	require.NoError(t, err)
	_, err = f.tables.ToggleLock(f.ctx, order.ID, true)
	assertKind(t, err, errorbank.KindUnprocessableEntity, "order is closed")
}

func TestTransferTableMovesOrder(t *testing.T) {
	f := newFixture(t)
	tea := f.product(t, "Tea", 1000)
	order := f.openWith(t, "Table 1", line(tea, 2))
	target := ledgertest.SeedTable(t, f.conns, "Table 2")

	moved, err := f.tables.TransferTable(f.ctx, order.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, moved.ID)
	assert.Equal(t, target.ID, moved.TableID)
	assert.Equal(t, "Table 2", moved.TableName())
	assert.Equal(t, int64(2000), moved.TotalAmount)

	vacated, err := f.core.GetOpenOrderForTable(f.ctx, order.TableID)
	require.NoError(t, err)
	assert.Nil(t, vacated)

	last, _ := f.recorder.Last()
	assert.Equal(t, activity.ActionTransferTable, last.Action)
	assert.Equal(t, "Table 1 -> Table 2 moved", last.Details)
}

func TestTransferToOccupiedTableFails(t *testing.T) {
	f := newFixture(t)
	tea := f.product(t, "Tea", 1000)
	source := f.openWith(t, "Table 1", line(tea, 1))
	target := f.openWith(t, "Table 2", line(tea, 3))

	_, err := f.tables.TransferTable(f.ctx, source.ID, target.TableID)
	assertKind(t, err, errorbank.KindUnprocessableEntity, "use merge instead")

	afterSource, err := f.core.GetOrderDetails(f.ctx, source.ID)
	require.NoError(t, err)
	afterTarget, err := f.core.GetOrderDetails(f.ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, source.TableID, afterSource.TableID)
	assert.Equal(t, source.TotalAmount, afterSource.TotalAmount)
	assert.Equal(t, target.TableID, afterTarget.TableID)
	assert.Equal(t, target.TotalAmount, afterTarget.TotalAmount)
}

func TestTransferToUnknownTable(t *testing.T) {
	f := newFixture(t)
	order := f.openWith(t, "Table 1")
	_, err := f.tables.TransferTable(f.ctx, order.ID, "missing")
	assertKind(t, err, errorbank.KindNotFound, "target table not found")
}

func TestMergeTablesConservesTotalsAndPayments(t *testing.T) {
	f := newFixture(t)
	tea := f.product(t, "Tea", 1000)
	cake := f.product(t, "Cake", 2500)
	source := f.openWith(t, "Table 1", line(tea, 2), line(cake, 1))
	target := f.openWith(t, "Table 2", line(tea, 1))

	_, err := f.payments.ProcessPayment(f.ctx, PaymentInput{OrderID: source.ID, Amount: 500, Method: entity.PaymentMethodCash})
	require.NoError(t, err)

	merged, err := f.tables.MergeTables(f.ctx, source.ID, target.ID)
	require.NoError(t, err)

	assert.Equal(t, target.ID, merged.ID)
	assert.Equal(t, source.TotalAmount+target.TotalAmount, merged.TotalAmount)
	assert.Equal(t, int64(5500), merged.TotalAmount)
	assert.False(t, ledgertest.OrderExists(t, f.conns, source.ID))
	assert.Len(t, merged.Items, 2)
	assert.Equal(t, int64(3), itemFor(t, merged, tea.ID, false).Quantity)
	assert.Equal(t, int64(1), itemFor(t, merged, cake.ID, false).Quantity)
	require.Len(t, merged.Payments, 1)
	assert.Equal(t, int64(500), merged.Payments[0].Amount)
	f.assertTotalMatchesItems(t, merged.ID)

	last, _ := f.recorder.Last()
	assert.Equal(t, activity.ActionMergeTables, last.Action)
	assert.Equal(t, "Table 2", last.TableName)
	assert.Equal(t, "Orders merged (total: 55.00 ₺)", last.Details)

	_, err = f.tables.MergeTables(f.ctx, source.ID, target.ID)
	assertKind(t, err, errorbank.KindNotFound, "order not found")
}

func TestMergeTablesNeverCoalescesPaidRows(t *testing.T) {
	f := newFixture(t)
	tea := f.product(t, "Tea", 1000)
	source := f.openWith(t, "Table 1", line(tea, 2))
	target := f.openWith(t, "Table 2", line(tea, 1))

	_, err := f.payments.MarkItemsPaid(f.ctx, []ItemPayment{{ItemID: source.Items[0].ID, Quantity: 2}}, nil)
	require.NoError(t, err)

	merged, err := f.tables.MergeTables(f.ctx, source.ID, target.ID)
	require.NoError(t, err)
	assert.Len(t, merged.Items, 2)
	assert.Equal(t, int64(2), itemFor(t, merged, tea.ID, true).Quantity)
	assert.Equal(t, int64(1), itemFor(t, merged, tea.ID, false).Quantity)
	assert.Equal(t, int64(3000), merged.TotalAmount)
}

func TestMergeTablesRejections(t *testing.T) {
	f := newFixture(t)
	tea := f.product(t, "Tea", 1000)
	empty := f.openWith(t, "Table 1")
	target := f.openWith(t, "Table 2", line(tea, 1))

	_, err := f.tables.MergeTables(f.ctx, empty.ID, target.ID)
	assertKind(t, err, errorbank.KindUnprocessableEntity, "no items")
	assert.True(t, ledgertest.OrderExists(t, f.conns, empty.ID))

	_, err = f.tables.MergeTables(f.ctx, target.ID, target.ID)
	assertKind(t, err, errorbank.KindBadRequest, "itself")
}
