package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CreateRequest stores a pending request with all of its items in one
// transaction. Stock is not checked here.
func (s *Service) CreateRequest(ctx context.Context, user string, items []LineItem) (r Request, err error) {
	ctx, span := tracer.Start(ctx, "CreateRequest")
	defer func() { endSpan(span, err) }()

	user = strings.TrimSpace(user)
	if user == "" {
		return Request{}, invalid("user", "required")
	}
	if len(items) == 0 {
		return Request{}, invalid("products", "must be a non-empty list")
	}
	if err := validateItems(items); err != nil {
		return Request{}, err
	}

	r = Request{
		Status:    StatusPending,
		User:      user,
		Items:     append([]LineItem(nil), items...),
		CreatedAt: time.Now().UTC(),
	}
	err = s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		id, err := tx.InsertRequest(ctx, r)
		r.OrderID = id
		return err
	})
	if err != nil {
		return Request{}, wrapStorage("create request", err)
	}

	s.logger().Info("request created", zap.Int64("order_id", r.OrderID), zap.String("user", user), zap.Int("items", len(items)))
	s.emit(ctx, TopicRequestCreated, EventRequestCreated, r.OrderID, RequestCreatedPayload{OrderID: r.OrderID, User: user, Items: r.Items})
	return r, nil
}

func getRequest(ctx context.Context, tx Tx, orderID int64, lock bool) (Request, error) {
	r, err := tx.GetRequest(ctx, orderID, lock)
	if errors.Is(err, ErrNotFound) {
		return Request{}, notFound("request", orderID)
	}
	return r, err
}

func validOrderID(orderID int64) error {
	if orderID <= 0 {
		return invalid("order_id", "must be a positive integer")
	}
	return nil
}

func (s *Service) GetRequest(ctx context.Context, orderID int64) (r Request, err error) {
	if err := validOrderID(orderID); err != nil {
		return Request{}, err
	}
	err = s.Store.ReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		r, err = getRequest(ctx, tx, orderID, false)
		return err
	})
	return r, wrapStorage("get request", err)
}

// GetRequestPriced prices the request against current product prices. Prices
// are never snapshotted, so the total follows price changes until payment.
func (s *Service) GetRequestPriced(ctx context.Context, orderID int64) (pr PricedRequest, err error) {
	ctx, span := tracer.Start(ctx, "GetRequestPriced")
	span.SetAttributes(attribute.Int64("order_id", orderID))
	defer func() { endSpan(span, err) }()

	if err := validOrderID(orderID); err != nil {
		return PricedRequest{}, err
	}
	err = s.Store.ReadTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := getRequest(ctx, tx, orderID, false)
		if err != nil {
			return err
		}
		pr, err = priceRequest(ctx, tx, r)
		return err
	})
	return pr, wrapStorage("price request", err)
}

func priceRequest(ctx context.Context, tx Tx, r Request) (PricedRequest, error) {
	ids, _ := demand(r.Items)
	products, err := tx.ProductsByID(ctx, ids, false)
	if err != nil {
		return PricedRequest{}, err
	}
	items, total := PriceItems(r.Items, products)
	return PricedRequest{OrderID: r.OrderID, Status: r.Status, Items: items, TotalAmount: total}, nil
}

// VerifyAvailability checks the request's items against current stock.
func (s *Service) VerifyAvailability(ctx context.Context, orderID int64) (ok bool, shortages []Shortage, err error) {
	ctx, span := tracer.Start(ctx, "VerifyAvailability")
	span.SetAttributes(attribute.Int64("order_id", orderID))
	defer func() { endSpan(span, err) }()

	if err := validOrderID(orderID); err != nil {
		return false, nil, err
	}
	err = s.Store.ReadTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := getRequest(ctx, tx, orderID, false)
		if err != nil {
			return err
		}
		if len(r.Items) == 0 {
			return &NotFoundError{Entity: "items for request", ID: fmt.Sprint(orderID)}
		}
		shortages, err = checkAvailability(ctx, tx, r.Items, false)
		return err
	})
	if err != nil {
		return false, nil, wrapStorage("verify availability", err)
	}
	return len(shortages) == 0, shortages, nil
}

// AcceptRequest commits a pending request against inventory: stock for every
// item is decremented and the status moves to accepted, or nothing changes.
func (s *Service) AcceptRequest(ctx context.Context, orderID int64) (r Request, err error) {
	ctx, span := tracer.Start(ctx, "AcceptRequest")
	span.SetAttributes(attribute.Int64("order_id", orderID))
	defer func() { endSpan(span, err) }()

	if err := validOrderID(orderID); err != nil {
		return Request{}, err
	}
	err = s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		r, err = getRequest(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if !CanTransition(r.Status, StatusAccepted) {
			return &ConflictError{Reason: fmt.Sprintf("request %d is %s, only pending requests can be accepted", orderID, r.Status)}
		}
		if len(r.Items) == 0 {
			return &NotFoundError{Entity: "items for request", ID: fmt.Sprint(orderID)}
		}
		if err := decrementForAcceptance(ctx, tx, r.Items); err != nil {
			return err
		}
		r.Status = StatusAccepted
		return tx.SetRequestStatus(ctx, orderID, StatusAccepted)
	})
	if err != nil {
		var ce *ConflictError
		if errors.As(err, &ce) {
			s.logger().Warn("request not accepted", zap.Int64("order_id", orderID), zap.String("reason", ce.Reason), zap.Int("shortages", len(ce.Shortages)))
		}
		return Request{}, wrapStorage("accept request", err)
	}

	s.logger().Info("request accepted", zap.Int64("order_id", orderID))
	s.emit(ctx, TopicRequestAccepted, EventRequestAccepted, orderID, RequestAcceptedPayload{OrderID: orderID, Items: r.Items})
	return r, nil
}

func (s *Service) ListAll(ctx context.Context) (rs []Request, err error) {
	err = s.Store.ReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		rs, err = tx.ListRequests(ctx, "")
		return err
	})
	return rs, wrapStorage("list requests", err)
}

// ListByUser returns a NotFoundError when the user has no requests.
func (s *Service) ListByUser(ctx context.Context, user string) (rs []Request, err error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, invalid("user", "required")
	}
	err = s.Store.ReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		rs, err = tx.ListRequests(ctx, user)
		return err
	})
	if err != nil {
		return nil, wrapStorage("list requests by user", err)
	}
	if len(rs) == 0 {
		return nil, &NotFoundError{Entity: "requests for user", ID: user}
	}
	return rs, nil
}
