package orders_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-wholesale-orders/internal/orders"
)

// acceptedRequest returns an accepted request for 120 units at wholesale 8, total 960.
func acceptedRequest(t *testing.T, svc *orders.Service) orders.Request {
	t.Helper()
	ctx := context.Background()
	a := addProduct(t, svc, "A", 150, "10", "8")
	r, err := svc.CreateRequest(ctx, "u1", []orders.LineItem{{ProductID: a.ID, Qty: 120}})
	require.NoError(t, err)
	r, err = svc.AcceptRequest(ctx, r.OrderID)
	require.NoError(t, err)
	return r
}

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t)
	r := acceptedRequest(t, svc)

	p, err := svc.RecordPayment(ctx, r.OrderID, dec("960.00"))
	require.NoError(t, err)
	assert.NotZero(t, p.PaymentID)
	assert.Equal(t, r.OrderID, p.OrderID)
	assert.Nil(t, p.DeliveryDate)

	got, err := svc.GetRequest(ctx, r.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)

	stored, err := svc.GetPayment(ctx, p.PaymentID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(dec("960")))
	assert.Contains(t, rec.types(), orders.EventPaymentRecorded)

	_, err = svc.RecordPayment(ctx, r.OrderID, dec("960"))
	assert.ErrorIs(t, err, orders.ErrConflict, "a paid request cannot be paid again")

	all, err := svc.ListPayments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRecordPayment_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown order", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.RecordPayment(ctx, 404, dec("10"))
		assert.ErrorIs(t, err, orders.ErrNotFound)

		all, err := svc.ListPayments(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("pending order", func(t *testing.T) {
		svc, _ := newService(t)
		a := addProduct(t, svc, "A", 10, "2", "1")
		r, err := svc.CreateRequest(ctx, "u", []orders.LineItem{{ProductID: a.ID, Qty: 1}})
		require.NoError(t, err)

		_, err = svc.RecordPayment(ctx, r.OrderID, dec("2"))
		assert.ErrorIs(t, err, orders.ErrConflict)

		got, err := svc.GetRequest(ctx, r.OrderID)
		require.NoError(t, err)
		assert.Equal(t, orders.StatusPending, got.Status)
	})

	t.Run("amount mismatch", func(t *testing.T) {
		svc, _ := newService(t)
		r := acceptedRequest(t, svc)

		_, err := svc.RecordPayment(ctx, r.OrderID, dec("1200"))
		var ce *orders.ConflictError
		require.ErrorAs(t, err, &ce)
		assert.Contains(t, ce.Reason, "960")

		got, err := svc.GetRequest(ctx, r.OrderID)
		require.NoError(t, err)
		assert.Equal(t, orders.StatusAccepted, got.Status)
		all, err := svc.ListPayments(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestSetDeliveryDate_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	r := acceptedRequest(t, svc)
	p, err := svc.RecordPayment(ctx, r.OrderID, dec("960"))
	require.NoError(t, err)

	when := time.Date(2024, 3, 14, 15, 30, 0, 0, time.UTC)
	first, err := svc.SetDeliveryDate(ctx, p.PaymentID, when)
	require.NoError(t, err)
	require.NotNil(t, first.DeliveryDate)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), *first.DeliveryDate)

	second, err := svc.SetDeliveryDate(ctx, p.PaymentID, when.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	moved, err := svc.SetDeliveryDate(ctx, p.PaymentID, when.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 15, moved.DeliveryDate.Day())
}

func TestPaymentsInRange(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	r := acceptedRequest(t, svc)
	p, err := svc.RecordPayment(ctx, r.OrderID, dec("960"))
	require.NoError(t, err)

	jan := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

	_, err = svc.PaymentsInRange(ctx, jan(1), jan(31))
	assert.ErrorIs(t, err, orders.ErrNotFound, "payments without a delivery date never match")

	_, err = svc.SetDeliveryDate(ctx, p.PaymentID, jan(10))
	require.NoError(t, err)

	got, err := svc.PaymentsInRange(ctx, jan(10).Add(18*time.Hour), jan(10).Add(19*time.Hour))
	require.NoError(t, err, "bounds compare by calendar day")
	require.Len(t, got, 1)
	assert.Equal(t, p.PaymentID, got[0].PaymentID)

	_, err = svc.PaymentsInRange(ctx, jan(11), jan(31))
	assert.ErrorIs(t, err, orders.ErrNotFound)
}
