package orders

import (
	"context"
	"time"
)

// Store hands out transactional sessions. Implementations acquire a
// connection per call and release it on every exit path; a non-nil error
// from fn rolls the whole transaction back.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ReadTx runs fn against a single consistent read-only snapshot.
	ReadTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of row operations available inside a transaction. Lookups of
// a missing row return ErrNotFound.
type Tx interface {
	InsertProduct(ctx context.Context, p Product) (int64, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	// ProductsByID returns the products that exist among ids. With lock set the
	// rows stay locked until the transaction ends; they are locked in
	// ascending id order.
	ProductsByID(ctx context.Context, ids []int64, lock bool) (map[int64]Product, error)
	AddStock(ctx context.Context, id int64, delta int) error
	InsertOutlay(ctx context.Context, o Outlay) (int64, error)
	OutlaysBetween(ctx context.Context, start, end time.Time) ([]Outlay, error)

	InsertRequest(ctx context.Context, r Request) (int64, error)
	GetRequest(ctx context.Context, orderID int64, lock bool) (Request, error)
	// ListRequests lists every request, or only user's when user is not empty.
	ListRequests(ctx context.Context, user string) ([]Request, error)
	SetRequestStatus(ctx context.Context, orderID int64, s Status) error

	InsertPayment(ctx context.Context, p Payment) (int64, error)
	GetPayment(ctx context.Context, id int64) (Payment, error)
	ListPayments(ctx context.Context) ([]Payment, error)
	SetDeliveryDate(ctx context.Context, id int64, date time.Time) error
	PaymentsByDeliveryDate(ctx context.Context, start, end time.Time) ([]Payment, error)
}
