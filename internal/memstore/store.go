// Package memstore is an in-process orders.Store. Transactions are fully
// serialized and work on a private copy of the data that replaces the shared
// copy only when fn succeeds, so a failed transaction leaves nothing behind.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-wholesale-orders/internal/orders"
)

var errReadOnly = errors.New("write in read-only transaction")

var _ orders.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) ReadTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &tx{st: s.st, readOnly: true})
}

type state struct {
	products map[int64]orders.Product
	requests map[int64]orders.Request
	payments map[int64]orders.Payment
	outlays  []orders.Outlay

	lastProduct, lastRequest, lastPayment, lastOutlay int64
}

func newState() *state {
	return &state{
		products: map[int64]orders.Product{},
		requests: map[int64]orders.Request{},
		payments: map[int64]orders.Payment{},
	}
}

func (s *state) clone() *state {
	c := &state{
		products:    make(map[int64]orders.Product, len(s.products)),
		requests:    make(map[int64]orders.Request, len(s.requests)),
		payments:    make(map[int64]orders.Payment, len(s.payments)),
		outlays:     append([]orders.Outlay(nil), s.outlays...),
		lastProduct: s.lastProduct,
		lastRequest: s.lastRequest,
		lastPayment: s.lastPayment,
		lastOutlay:  s.lastOutlay,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = copyRequest(v)
	}
	for k, v := range s.payments {
		c.payments[k] = copyPayment(v)
	}
	return c
}

func copyRequest(r orders.Request) orders.Request {
	r.Items = append([]orders.LineItem(nil), r.Items...)
	return r
}

func copyPayment(p orders.Payment) orders.Payment {
	if p.DeliveryDate != nil {
		d := *p.DeliveryDate
		p.DeliveryDate = &d
	}
	return p
}

type tx struct {
	st       *state
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *tx) InsertProduct(_ context.Context, p orders.Product) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	t.st.lastProduct++
	p.ID = t.st.lastProduct
	t.st.products[p.ID] = p
	return p.ID, nil
}

func (t *tx) GetProduct(_ context.Context, id int64) (orders.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return orders.Product{}, orders.ErrNotFound
	}
	return p, nil
}

func (t *tx) ListProducts(context.Context) ([]orders.Product, error) {
	out := make([]orders.Product, 0, len(t.st.products))
	for _, p := range t.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ProductsByID ignores lock: the whole transaction already holds the store lock.
func (t *tx) ProductsByID(_ context.Context, ids []int64, _ bool) (map[int64]orders.Product, error) {
	out := make(map[int64]orders.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.st.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *tx) AddStock(_ context.Context, id int64, delta int) error {
	if err := t.writable(); err != nil {
		return err
	}
	p, ok := t.st.products[id]
	if !ok {
		return orders.ErrNotFound
	}
	if p.Qty+delta < 0 {
		return fmt.Errorf("product %d: qty cannot go below zero", id)
	}
	if p.Qty+delta > orders.MaxQty {
		return fmt.Errorf("%w: product %d: qty would exceed %d", orders.ErrConflict, id, orders.MaxQty)
	}
	p.Qty += delta
	t.st.products[id] = p
	return nil
}

func (t *tx) InsertOutlay(_ context.Context, o orders.Outlay) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	t.st.lastOutlay++
	o.ID = t.st.lastOutlay
	t.st.outlays = append(t.st.outlays, o)
	return o.ID, nil
}

func (t *tx) OutlaysBetween(_ context.Context, start, end time.Time) ([]orders.Outlay, error) {
	var out []orders.Outlay
	for _, o := range t.st.outlays {
		if !o.EntryDate.Before(start) && !o.EntryDate.After(end) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (t *tx) InsertRequest(_ context.Context, r orders.Request) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	t.st.lastRequest++
	r.OrderID = t.st.lastRequest
	t.st.requests[r.OrderID] = copyRequest(r)
	return r.OrderID, nil
}

func (t *tx) GetRequest(_ context.Context, orderID int64, _ bool) (orders.Request, error) {
	r, ok := t.st.requests[orderID]
	if !ok {
		return orders.Request{}, orders.ErrNotFound
	}
	return copyRequest(r), nil
}

func (t *tx) ListRequests(_ context.Context, user string) ([]orders.Request, error) {
	out := make([]orders.Request, 0)
	for _, r := range t.st.requests {
		if user == "" || r.User == user {
			out = append(out, copyRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

func (t *tx) SetRequestStatus(_ context.Context, orderID int64, s orders.Status) error {
	if err := t.writable(); err != nil {
		return err
	}
	r, ok := t.st.requests[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	r.Status = s
	t.st.requests[orderID] = r
	return nil
}

func (t *tx) InsertPayment(_ context.Context, p orders.Payment) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	for _, existing := range t.st.payments {
		if existing.OrderID == p.OrderID {
			return 0, fmt.Errorf("%w: order %d already has payment %d", orders.ErrConflict, p.OrderID, existing.PaymentID)
		}
	}
	t.st.lastPayment++
	p.PaymentID = t.st.lastPayment
	t.st.payments[p.PaymentID] = copyPayment(p)
	return p.PaymentID, nil
}

func (t *tx) GetPayment(_ context.Context, id int64) (orders.Payment, error) {
	p, ok := t.st.payments[id]
	if !ok {
		return orders.Payment{}, orders.ErrNotFound
	}
	return copyPayment(p), nil
}

func (t *tx) ListPayments(context.Context) ([]orders.Payment, error) {
	return t.paymentsWhere(func(orders.Payment) bool { return true }), nil
}

func (t *tx) SetDeliveryDate(_ context.Context, id int64, date time.Time) error {
	if err := t.writable(); err != nil {
		return err
	}
	p, ok := t.st.payments[id]
	if !ok {
		return orders.ErrNotFound
	}
	p.DeliveryDate = &date
	t.st.payments[id] = p
	return nil
}

func (t *tx) PaymentsByDeliveryDate(_ context.Context, start, end time.Time) ([]orders.Payment, error) {
	return t.paymentsWhere(func(p orders.Payment) bool {
		return p.DeliveryDate != nil && !p.DeliveryDate.Before(start) && !p.DeliveryDate.After(end)
	}), nil
}

func (t *tx) paymentsWhere(keep func(orders.Payment) bool) []orders.Payment {
	out := make([]orders.Payment, 0)
	for _, p := range t.st.payments {
		if keep(p) {
			out = append(out, copyPayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentID < out[j].PaymentID })
	return out
}
