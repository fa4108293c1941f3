package orders

import (
	"context"
	"time"
)

func validRange(start, end time.Time) error {
	if start.IsZero() {
		return invalid("startDate", "required")
	}
	if end.IsZero() {
		return invalid("endDate", "required")
	}
	if end.Before(start) {
		return invalid("endDate", "must not be before startDate")
	}
	return nil
}

// PaymentsInRange lists payments whose delivery date falls within
// [start, end], compared by calendar day. Payments without a delivery date
// never match.
func (s *Service) PaymentsInRange(ctx context.Context, start, end time.Time) (ps []Payment, err error) {
	if err := validRange(start, end); err != nil {
		return nil, err
	}
	err = s.Store.ReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		ps, err = tx.PaymentsByDeliveryDate(ctx, Day(start), Day(end))
		return err
	})
	if err != nil {
		return nil, wrapStorage("payments in range", err)
	}
	if len(ps) == 0 {
		return nil, &NotFoundError{Entity: "payments in range"}
	}
	return ps, nil
}

// OutlaysInRange lists outlay entries with start <= entry date <= end.
func (s *Service) OutlaysInRange(ctx context.Context, start, end time.Time) (out []Outlay, err error) {
	if err := validRange(start, end); err != nil {
		return nil, err
	}
	err = s.Store.ReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.OutlaysBetween(ctx, start, end)
		return err
	})
	if err != nil {
		return nil, wrapStorage("outlays in range", err)
	}
	if len(out) == 0 {
		return nil, &NotFoundError{Entity: "outlays in range"}
	}
	return out, nil
}
