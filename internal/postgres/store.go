package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-wholesale-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Store implements orders.Store on a pgx pool. Each call acquires its own
// connection and releases it when fn returns.
type Store struct {
	Pool *pgxpool.Pool
	// LockTimeout bounds how long a statement waits for a row lock.
	LockTimeout time.Duration
}

var _ orders.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (s *Store) ReadTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx orders.Tx) error) error {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return classify(errors.Wrap(err, "acquire connection"))
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		return classify(errors.Wrap(err, "begin"))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if s.LockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", s.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
			return classify(errors.Wrap(err, "set lock_timeout"))
		}
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return classify(err)
	}
	return classify(errors.Wrap(tx.Commit(ctx), "commit"))
}

// classify tags Postgres errors with the orders error kinds they stand for.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03", "57014":
		return fmt.Errorf("%w: %w", orders.ErrRetryable, err)
	case "23505", "23514", "22003":
		return fmt.Errorf("%w: %w", orders.ErrConflict, err)
	}
	return err
}

type pgTx struct {
	tx pgx.Tx
}

const productCols = `id, name, qty, unit_price, wholesale_price, retail_price`

func scanProduct(row pgx.Row) (orders.Product, error) {
	var p orders.Product
	err := row.Scan(&p.ID, &p.Name, &p.Qty, &p.UnitPrice, &p.WholesalePrice, &p.RetailPrice)
	return p, err
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.ErrNotFound
	}
	return errors.Wrap(err, op)
}

func (t *pgTx) InsertProduct(ctx context.Context, p orders.Product) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO products(name, qty, unit_price, wholesale_price, retail_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		p.Name, p.Qty, p.UnitPrice, p.WholesalePrice, p.RetailPrice,
	).Scan(&id)
	return id, errors.Wrap(err, "insert product")
}

func (t *pgTx) GetProduct(ctx context.Context, id int64) (orders.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
	if err != nil {
		return orders.Product{}, notFoundOr(err, "get product")
	}
	return p, nil
}

func (t *pgTx) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()

	out := make([]orders.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "list products")
}

// ProductsByID with lock takes FOR UPDATE row locks in id order, so two
// acceptances touching the same products queue instead of deadlocking.
func (t *pgTx) ProductsByID(ctx context.Context, ids []int64, lock bool) (map[int64]orders.Product, error) {
	q := `SELECT ` + productCols + ` FROM products WHERE id = ANY($1) ORDER BY id`
	if lock {
		q += ` FOR UPDATE`
	}
	rows, err := t.tx.Query(ctx, q, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select products")
	}
	defer rows.Close()

	out := make(map[int64]orders.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		out[p.ID] = p
	}
	return out, errors.Wrap(rows.Err(), "select products")
}

func (t *pgTx) AddStock(ctx context.Context, id int64, delta int) error {
	ct, err := t.tx.Exec(ctx, `UPDATE products SET qty = qty + $2 WHERE id=$1`, id, delta)
	if err != nil {
		return errors.Wrap(err, "update stock")
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertOutlay(ctx context.Context, o orders.Outlay) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO outlays(product_id, qty, amount, entry_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		o.ProductID, o.Qty, o.Amount, o.EntryDate,
	).Scan(&id)
	return id, errors.Wrap(err, "insert outlay")
}

func (t *pgTx) OutlaysBetween(ctx context.Context, start, end time.Time) ([]orders.Outlay, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, product_id, qty, amount, entry_date
		FROM outlays
		WHERE entry_date BETWEEN $1 AND $2
		ORDER BY entry_date, id`, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "select outlays")
	}
	defer rows.Close()

	var out []orders.Outlay
	for rows.Next() {
		var o orders.Outlay
		if err := rows.Scan(&o.ID, &o.ProductID, &o.Qty, &o.Amount, &o.EntryDate); err != nil {
			return nil, errors.Wrap(err, "scan outlay")
		}
		out = append(out, o)
	}
	return out, errors.Wrap(rows.Err(), "select outlays")
}

func (t *pgTx) InsertRequest(ctx context.Context, r orders.Request) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO requests(status, username, created_at)
		VALUES ($1, $2, $3)
		RETURNING order_id`,
		string(r.Status), r.User, r.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "insert request")
	}

	rows := make([][]any, 0, len(r.Items))
	for i, it := range r.Items {
		rows = append(rows, []any{id, i, it.ProductID, it.Qty})
	}
	_, err = t.tx.CopyFrom(ctx,
		pgx.Identifier{"request_items"},
		[]string{"order_id", "position", "product_id", "qty"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, errors.Wrap(err, "insert request items")
	}
	return id, nil
}

const requestCols = `order_id, status, username, created_at`

func scanRequest(row pgx.Row) (orders.Request, error) {
	var (
		r      orders.Request
		status string
	)
	if err := row.Scan(&r.OrderID, &status, &r.User, &r.CreatedAt); err != nil {
		return orders.Request{}, err
	}
	r.Status = orders.Status(status)
	if !r.Status.Valid() {
		return orders.Request{}, errors.Errorf("request %d: unknown status %q", r.OrderID, status)
	}
	return r, nil
}

func (t *pgTx) GetRequest(ctx context.Context, orderID int64, lock bool) (orders.Request, error) {
	q := `SELECT ` + requestCols + ` FROM requests WHERE order_id=$1`
	if lock {
		q += ` FOR UPDATE`
	}
	r, err := scanRequest(t.tx.QueryRow(ctx, q, orderID))
	if err != nil {
		return orders.Request{}, notFoundOr(err, "get request")
	}
	items, err := t.itemsFor(ctx, []int64{orderID})
	if err != nil {
		return orders.Request{}, err
	}
	r.Items = items[orderID]
	return r, nil
}

func (t *pgTx) ListRequests(ctx context.Context, user string) ([]orders.Request, error) {
	q := `SELECT ` + requestCols + ` FROM requests`
	var args []any
	if user != "" {
		q += ` WHERE username=$1`
		args = append(args, user)
	}
	q += ` ORDER BY order_id`

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list requests")
	}
	out := make([]orders.Request, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan request")
		}
		out = append(out, r)
		ids = append(ids, r.OrderID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list requests")
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := t.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].OrderID]
	}
	return out, nil
}

func (t *pgTx) itemsFor(ctx context.Context, orderIDs []int64) (map[int64][]orders.LineItem, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT order_id, product_id, qty
		FROM request_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, errors.Wrap(err, "select request items")
	}
	defer rows.Close()

	out := make(map[int64][]orders.LineItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID int64
			it      orders.LineItem
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Qty); err != nil {
			return nil, errors.Wrap(err, "scan request item")
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, errors.Wrap(rows.Err(), "select request items")
}

func (t *pgTx) SetRequestStatus(ctx context.Context, orderID int64, s orders.Status) error {
	ct, err := t.tx.Exec(ctx, `UPDATE requests SET status=$2 WHERE order_id=$1`, orderID, string(s))
	if err != nil {
		return errors.Wrap(err, "update request status")
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertPayment(ctx context.Context, p orders.Payment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO payments(order_id, total_amount, delivery_date, created_at)
		VALUES ($1, $2, NULL, $3)
		RETURNING payment_id`,
		p.OrderID, p.TotalAmount, p.CreatedAt,
	).Scan(&id)
	return id, errors.Wrap(err, "insert payment")
}

const paymentCols = `payment_id, order_id, total_amount, delivery_date, created_at`

func scanPayment(row pgx.Row) (orders.Payment, error) {
	var p orders.Payment
	err := row.Scan(&p.PaymentID, &p.OrderID, &p.TotalAmount, &p.DeliveryDate, &p.CreatedAt)
	return p, err
}

func (t *pgTx) GetPayment(ctx context.Context, id int64) (orders.Payment, error) {
	p, err := scanPayment(t.tx.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE payment_id=$1`, id))
	if err != nil {
		return orders.Payment{}, notFoundOr(err, "get payment")
	}
	return p, nil
}

func (t *pgTx) ListPayments(ctx context.Context) ([]orders.Payment, error) {
	return t.queryPayments(ctx, `SELECT `+paymentCols+` FROM payments ORDER BY payment_id`)
}

func (t *pgTx) SetDeliveryDate(ctx context.Context, id int64, date time.Time) error {
	ct, err := t.tx.Exec(ctx, `UPDATE payments SET delivery_date=$2 WHERE payment_id=$1`, id, date)
	if err != nil {
		return errors.Wrap(err, "update delivery date")
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound
	}
	return nil
}

func (t *pgTx) PaymentsByDeliveryDate(ctx context.Context, start, end time.Time) ([]orders.Payment, error) {
	return t.queryPayments(ctx, `
		SELECT `+paymentCols+`
		FROM payments
		WHERE delivery_date BETWEEN $1::date AND $2::date
		ORDER BY delivery_date, payment_id`, start, end)
}

func (t *pgTx) queryPayments(ctx context.Context, q string, args ...any) ([]orders.Payment, error) {
	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select payments")
	}
	defer rows.Close()

	out := make([]orders.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan payment")
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "select payments")
}
