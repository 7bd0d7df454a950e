package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/tabline/internal/activity"
	"github.com/Additional-Code/tabline/internal/dto"
	"github.com/Additional-Code/tabline/internal/entity"
	"github.com/Additional-Code/tabline/internal/repository/ledger/ledgertest"
	"github.com/Additional-Code/tabline/pkg/errorbank"
)

func itemFor(t *testing.T, order *dto.Order, productID string, paid bool) dto.Item {
	t.Helper()
	for _, it := range order.Items {
		if it.ProductID == productID && it.IsPaid == paid {
			return it
		}
	}
	t.Fatalf("no item for product %s (paid=%v)", productID, paid)
	return dto.Item{}
}

func TestProcessPaymentValidation(t *testing.T) {
	f := newFixture(t)
	order := f.openWith(t, "Table 1")

	_, err := f.payments.ProcessPayment(f.ctx, PaymentInput{OrderID: order.ID, Amount: 0, Method: entity.PaymentMethodCash})
	assertKind(t, err, errorbank.KindBadRequest, "greater than zero")

	_, err = f.payments.ProcessPayment(f.ctx, PaymentInput{OrderID: order.ID, Amount: 100, Method: "CHEQUE"})
	assertKind(t, err, errorbank.KindBadRequest, "payment method")

	_, err = f.payments.ProcessPayment(f.ctx, PaymentInput{OrderID: "missing", Amount: 100, Method: entity.PaymentMethodCash})
	assertKind(t, err, errorbank.KindNotFound, "order not found")
}

func TestCardPaymentCannotExceedRemaining(t *testing.T) {
	f := newFixture(t)
	tea := f.product(t, "Tea", 1000)
	order := f.openWith(t, "Table 1", line(tea, 1))

	_, err := f.payments.ProcessPayment(f.ctx, PaymentInput{OrderID: order.ID, Amount: 1500, Method: entity.PaymentMethodCard})
	assertKind(t, err, errorbank.KindUnprocessableEntity, "remaining balance")

	after, err := f.core.GetOrderDetails(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, after.Payments)
	assert.Equal(t, string(entity.OrderStatusOpen), after.Status)
}

func TestCashOverpaymentClosesOrder(t *testing.T) {
	f := newFixture(t)
	tea := f.product(t, "Tea", 1000)
	order := f.openWith(t, "Table 1", line(tea, 1))

	res, err := f.payments.ProcessPayment(f.ctx, PaymentInput{OrderID: order.ID, Amount: 1500, Method: entity.PaymentMethodCash})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, int64(1500), res.Order.PaidAmount())

	last, _ := f.recorder.Last()
	assert.Equal(t, activity.ActionCloseTable, last.Action)
	assert.Equal(t, "Table closed with 15.00 ₺ cash. Paid: 1x Tea", last.Details)
}

func TestPartialPaymentKeepsOrderOpen(t *testing.T) {
	f := newFixture(t)
	tea := f.product(t, "Tea", 1000)
	order := f.openWith(t, "Table 1", line(tea, 3))

	res, err := f.payments.ProcessPayment(f.ctx, PaymentInput{OrderID: order.ID, Amount: 1000, Method: entity.PaymentMethodCard})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Equal(t, string(entity.OrderStatusOpen), res.Order.Status)
	require.Len(t, res.Order.Payments, 1)
	assert.Equal(t, string(entity.PaymentMethodCard), res.Order.Payments[0].PaymentMethod)

	last, _ := f.recorder.Last()
	assert.Equal(t, activity.ActionPaymentCard, last.Action)
	assert.Equal(t, "Partial payment received: 10.00 ₺ card", last.Details)
}

func TestPaymentSkipLog(t *testing.T) {
	f := newFixture(t)
	tea := f.product(t, "Tea", 1000)
	order := f.openWith(t, "Table 1", line(tea, 3))
	before := len(f.recorder.Entries())

	_, err := f.payments.ProcessPayment(f.ctx, PaymentInput{OrderID: order.ID, Amount: 1000, Method: entity.PaymentMethodCash, SkipLog: true})
	require.NoError(t, err)
	assert.Len(t, f.recorder.Entries(), before)
}

func TestProcessPaymentSettlesNamedItems(t *testing.T) {
	f := newFixture(t)
	tea := f.product(t, "Tea", 1000)
	cake := f.product(t, "Cake", 1000)
	order := f.openWith(t, "Table 1", line(tea, 3), line(cake, 2))
	teaID := itemFor(t, order, tea.ID, false).ID

	res, err := f.payments.ProcessPayment(f.ctx, PaymentInput{
		OrderID:         order.ID,
		Amount:          1000,
		Method:          entity.PaymentMethodCash,
		ItemsToMarkPaid: []ItemPayment{{ItemID: teaID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Equal(t, int64(2), itemFor(t, res.Order, tea.ID, false).Quantity)
	assert.Equal(t, int64(1), itemFor(t, res.Order, tea.ID, true).Quantity)
	assert.Equal(t, int64(5000), res.Order.TotalAmount)

	last, _ := f.recorder.Last()
	assert.Equal(t, activity.ActionPaymentCash, last.Action)
	assert.Contains(t, last.Details, "(paid: 1x Tea)")
}

func TestMarkItemsPaidSplitsPartialQuantity(t *testing.T) {
	f := newFixture(t)
	tea := f.product(t, "Tea", 1000)
	cake := f.product(t, "Cake", 1000)
	order := f.openWith(t, "Table 1", line(tea, 3), line(cake, 2))
	require.Equal(t, int64(5000), order.TotalAmount)
	teaID := itemFor(t, order, tea.ID, false).ID

	order, err := f.payments.MarkItemsPaid(f.ctx, []ItemPayment{{ItemID: teaID, Quantity: 1}}, nil)
	require.NoError(t, err)

	residual := itemFor(t, order, tea.ID, false)
	fragment := itemFor(t, order, tea.ID, true)
	assert.Equal(t, teaID, residual.ID)
	assert.Equal(t, int64(2), residual.Quantity)
	assert.Equal(t, int64(1), fragment.Quantity)
	assert.Equal(t, int64(1000), fragment.UnitPrice)
	assert.Equal(t, int64(5000), order.TotalAmount)
	assert.Empty(t, order.Payments)
	f.assertTotalMatchesItems(t, order.ID)

	var teaQty int64
	for _, it := range ledgertest.Items(t, f.conns, order.ID) {
		if it.ProductID == tea.ID {
			teaQty += it.Quantity
		}
	}
	assert.Equal(t, int64(3), teaQty)

	last, _ := f.recorder.Last()
	assert.Equal(t, activity.ActionItemsPaid, last.Action)
	assert.Equal(t, "Items paid: 1x Tea", last.Details)
}

func TestMarkItemsPaidFullRowsAndMissingItems(t *testing.T) {
	f := newFixture(t)
	tea := f.product(t, "Tea", 1000)
	cake := f.product(t, "Cake", 2500)
	order := f.openWith(t, "Table 1", line(tea, 2), line(cake, 1))
	teaID := itemFor(t, order, tea.ID, false).ID
	cakeID := itemFor(t, order, cake.ID, false).ID

	order, err := f.payments.MarkItemsPaid(f.ctx, []ItemPayment{
		{ItemID: teaID, Quantity: 1},
		{ItemID: "gone", Quantity: 1},
		{ItemID: cakeID, Quantity: 5},
		{ItemID: teaID, Quantity: 1},
	}, &PaymentDetails{Amount: 4500, Method: entity.PaymentMethodCard})
	require.NoError(t, err)

	assert.Len(t, order.Items, 2)
	for _, it := range order.Items {
		assert.True(t, it.IsPaid)
	}
	assert.Equal(t, string(entity.OrderStatusOpen), order.Status)

	last, _ := f.recorder.Last()
	assert.Equal(t, "Items paid with 45.00 ₺ card: 2x Tea, 1x Cake", last.Details)
}

func TestMarkItemsPaidRejectsItemsFromAnotherOrder(t *testing.T) {
	f := newFixture(t)
	tea := f.product(t, "Tea", 1000)
	first := f.openWith(t, "Table 1", line(tea, 1))
	second := f.openWith(t, "Table 2", line(tea, 1))

	_, err := f.payments.MarkItemsPaid(f.ctx, []ItemPayment{
		{ItemID: first.Items[0].ID, Quantity: 1},
		{ItemID: second.Items[0].ID, Quantity: 1},
	}, nil)
	assertKind(t, err, errorbank.KindBadRequest, "does not belong")

	after, err := f.core.GetOrderDetails(f.ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, after.Items[0].IsPaid)
}

func TestProcessPaymentRollsBackWhenItemSettlementFails(t *testing.T) {
	f := newFixture(t)
	tea := f.product(t, "Tea", 1000)
	first := f.openWith(t, "Table 1", line(tea, 2))
	second := f.openWith(t, "Table 2", line(tea, 1))
	before := f.recorder.Entries()

	_, err := f.payments.ProcessPayment(f.ctx, PaymentInput{
		OrderID:         first.ID,
		Amount:          500,
		Method:          entity.PaymentMethodCash,
		ItemsToMarkPaid: []ItemPayment{{ItemID: second.Items[0].ID, Quantity: 1}},
	})
	assertKind(t, err, errorbank.KindBadRequest, "does not belong")

	after, err := f.core.GetOrderDetails(f.ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, after.Payments)
	assert.Equal(t, string(entity.OrderStatusOpen), after.Status)
	require.Len(t, after.Items, 1)
	assert.False(t, after.Items[0].IsPaid)
	assert.Equal(t, int64(2), after.Items[0].Quantity)

	other, err := f.core.GetOrderDetails(f.ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, other.Items[0].IsPaid)
	assert.Len(t, f.recorder.Entries(), len(before))
}

func TestMarkItemsPaidEmptyInput(t *testing.T) {
	f := newFixture(t)
	order, err := f.payments.MarkItemsPaid(f.ctx, nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, order)
}
