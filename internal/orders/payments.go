package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RecordPayment captures a simulated payment for an accepted request and
// marks it paid. The amount must equal the request's current priced total.
func (s *Service) RecordPayment(ctx context.Context, orderID int64, amount decimal.Decimal) (p Payment, err error) {
	ctx, span := tracer.Start(ctx, "RecordPayment")
	span.SetAttributes(attribute.Int64("order_id", orderID))
	defer func() { endSpan(span, err) }()

	if err := validOrderID(orderID); err != nil {
		return Payment{}, err
	}
	if !amount.IsPositive() {
		return Payment{}, invalid("total_amount", "must be a positive number")
	}

	p = Payment{OrderID: orderID, TotalAmount: amount, CreatedAt: time.Now().UTC()}
	err = s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := getRequest(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if !CanTransition(r.Status, StatusPaid) {
			return &ConflictError{Reason: fmt.Sprintf("request %d is %s, only accepted requests can be paid", orderID, r.Status)}
		}
		priced, err := priceRequest(ctx, tx, r)
		if err != nil {
			return err
		}
		if !amount.Equal(priced.TotalAmount) {
			return &ConflictError{Reason: fmt.Sprintf("payment amount %s does not match order total %s", amount, priced.TotalAmount)}
		}
		if p.PaymentID, err = tx.InsertPayment(ctx, p); err != nil {
			return err
		}
		return tx.SetRequestStatus(ctx, orderID, StatusPaid)
	})
	if err != nil {
		return Payment{}, wrapStorage("record payment", err)
	}

	s.logger().Info("payment recorded", zap.Int64("payment_id", p.PaymentID), zap.Int64("order_id", orderID), zap.String("amount", amount.String()))
	s.emit(ctx, TopicPaymentRecorded, EventPaymentRecorded, orderID, PaymentRecordedPayload{PaymentID: p.PaymentID, OrderID: orderID, TotalAmount: amount})
	return p, nil
}

func (s *Service) GetPayment(ctx context.Context, paymentID int64) (p Payment, err error) {
	if paymentID <= 0 {
		return Payment{}, invalid("payment_id", "must be a positive integer")
	}
	err = s.Store.ReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		p, err = tx.GetPayment(ctx, paymentID)
		if errors.Is(err, ErrNotFound) {
			return notFound("payment", paymentID)
		}
		return err
	})
	return p, wrapStorage("get payment", err)
}

func (s *Service) ListPayments(ctx context.Context) (ps []Payment, err error) {
	err = s.Store.ReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		ps, err = tx.ListPayments(ctx)
		return err
	})
	return ps, wrapStorage("list payments", err)
}

// SetDeliveryDate overwrites the payment's delivery date. Only the calendar
// day is kept, so repeating the call with the same date changes nothing.
func (s *Service) SetDeliveryDate(ctx context.Context, paymentID int64, date time.Time) (p Payment, err error) {
	ctx, span := tracer.Start(ctx, "SetDeliveryDate")
	span.SetAttributes(attribute.Int64("payment_id", paymentID))
	defer func() { endSpan(span, err) }()

	if paymentID <= 0 {
		return Payment{}, invalid("payment_id", "must be a positive integer")
	}
	if date.IsZero() {
		return Payment{}, invalid("delivery_date", "required")
	}
	day := Day(date)
	err = s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.SetDeliveryDate(ctx, paymentID, day); err != nil {
			if errors.Is(err, ErrNotFound) {
				return notFound("payment", paymentID)
			}
			return err
		}
		var err error
		p, err = tx.GetPayment(ctx, paymentID)
		return err
	})
	if err != nil {
		return Payment{}, wrapStorage("set delivery date", err)
	}

	s.logger().Info("delivery date set", zap.Int64("payment_id", paymentID), zap.Time("delivery_date", day))
	s.emit(ctx, TopicDeliveryScheduled, EventDeliveryScheduled, p.OrderID, DeliveryScheduledPayload{PaymentID: paymentID, DeliveryDate: day})
	return p, nil
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
