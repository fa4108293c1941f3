package orders

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type NewProduct struct {
	Name           string
	Qty            int
	UnitPrice      decimal.Decimal
	WholesalePrice decimal.Decimal
	RetailPrice    decimal.Decimal
}

func (in NewProduct) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "required")
	}
	if in.Qty < 0 {
		return invalid("qty", "must be a non-negative integer")
	}
	if in.Qty > MaxQty {
		return invalid("qty", "must not exceed "+strconv.Itoa(MaxQty))
	}
	prices := []struct {
		field string
		value decimal.Decimal
	}{
		{"unit_price", in.UnitPrice},
		{"wholesale_price", in.WholesalePrice},
		{"retail_price", in.RetailPrice},
	}
	for _, pr := range prices {
		if pr.value.IsNegative() {
			return invalid(pr.field, "must be non-negative")
		}
	}
	return nil
}

func (s *Service) RegisterProduct(ctx context.Context, in NewProduct) (p Product, err error) {
	ctx, span := tracer.Start(ctx, "RegisterProduct")
	defer func() { endSpan(span, err) }()

	if err := in.validate(); err != nil {
		return Product{}, err
	}
	p = Product{
		Name:           strings.TrimSpace(in.Name),
		Qty:            in.Qty,
		UnitPrice:      in.UnitPrice,
		WholesalePrice: in.WholesalePrice,
		RetailPrice:    in.RetailPrice,
	}
	err = s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		id, err := tx.InsertProduct(ctx, p)
		p.ID = id
		return err
	})
	if err != nil {
		return Product{}, wrapStorage("register product", err)
	}

	s.logger().Info("product registered", zap.Int64("product_id", p.ID), zap.Int("qty", p.Qty))
	s.emit(ctx, TopicProductRegistered, EventProductRegistered, p.ID, ProductRegisteredPayload{Product: p})
	return p, nil
}

// ReceiveStock adds qty to the product and appends the outlay entry in the
// same transaction.
func (s *Service) ReceiveStock(ctx context.Context, productID int64, qty int, amount decimal.Decimal) (o Outlay, err error) {
	ctx, span := tracer.Start(ctx, "ReceiveStock")
	span.SetAttributes(attribute.Int64("product_id", productID), attribute.Int("qty", qty))
	defer func() { endSpan(span, err) }()

	if productID <= 0 {
		return Outlay{}, invalid("product_id", "required")
	}
	if qty <= 0 {
		return Outlay{}, invalid("qty", "must be positive")
	}
	if qty > MaxQty {
		return Outlay{}, invalid("qty", "must not exceed "+strconv.Itoa(MaxQty))
	}
	if !amount.IsPositive() {
		return Outlay{}, invalid("amount", "must be positive")
	}

	o = Outlay{ProductID: productID, Qty: qty, Amount: amount, EntryDate: time.Now().UTC()}
	err = s.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.AddStock(ctx, productID, qty); err != nil {
			if errors.Is(err, ErrNotFound) {
				return notFound("product", productID)
			}
			return err
		}
		id, err := tx.InsertOutlay(ctx, o)
		o.ID = id
		return err
	})
	if err != nil {
		return Outlay{}, wrapStorage("receive stock", err)
	}

	s.logger().Info("stock received", zap.Int64("product_id", productID), zap.Int("qty", qty), zap.String("amount", amount.String()))
	s.emit(ctx, TopicStockReceived, EventStockReceived, productID, StockReceivedPayload{ProductID: productID, Qty: qty, Amount: amount})
	return o, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (p Product, err error) {
	if id <= 0 {
		return Product{}, invalid("id", "must be a positive integer")
	}
	err = s.Store.ReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		p, err = tx.GetProduct(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return notFound("product", id)
		}
		return err
	})
	return p, wrapStorage("get product", err)
}

func (s *Service) ListProducts(ctx context.Context) (ps []Product, err error) {
	err = s.Store.ReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		ps, err = tx.ListProducts(ctx)
		return err
	})
	return ps, wrapStorage("list products", err)
}

// CheckAvailability reports every item that cannot be served from current
// stock. The answer is advisory: only AcceptRequest decides.
func (s *Service) CheckAvailability(ctx context.Context, items []LineItem) (sh []Shortage, err error) {
	ctx, span := tracer.Start(ctx, "CheckAvailability")
	defer func() { endSpan(span, err) }()

	if len(items) == 0 {
		return nil, invalid("items", "must not be empty")
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}
	err = s.Store.ReadTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		sh, err = checkAvailability(ctx, tx, items, false)
		return err
	})
	return sh, wrapStorage("check availability", err)
}

func validateItems(items []LineItem) error {
	for i, it := range items {
		if it.ProductID <= 0 {
			return invalid("items["+strconv.Itoa(i)+"].product_id", "must be a positive integer")
		}
		if it.Qty <= 0 {
			return invalid("items["+strconv.Itoa(i)+"].qty", "must be a positive integer")
		}
		if it.Qty > MaxQty {
			return invalid("items["+strconv.Itoa(i)+"].qty", "must not exceed "+strconv.Itoa(MaxQty))
		}
	}
	return nil
}

// demand folds items into per-product quantities, keeping first-seen order.
// A sum that would overflow saturates at math.MaxInt, which no stock level
// can satisfy.
func demand(items []LineItem) ([]int64, map[int64]int) {
	ids := make([]int64, 0, len(items))
	want := make(map[int64]int, len(items))
	for _, it := range items {
		cur, seen := want[it.ProductID]
		if !seen {
			ids = append(ids, it.ProductID)
		}
		if it.Qty > math.MaxInt-cur {
			want[it.ProductID] = math.MaxInt
			continue
		}
		want[it.ProductID] = cur + it.Qty
	}
	return ids, want
}

func checkAvailability(ctx context.Context, tx Tx, items []LineItem, lock bool) ([]Shortage, error) {
	ids, want := demand(items)
	products, err := tx.ProductsByID(ctx, ids, lock)
	if err != nil {
		return nil, err
	}
	var out []Shortage
	for _, id := range ids {
		p, ok := products[id]
		switch {
		case !ok:
			out = append(out, Shortage{ProductID: id, Kind: ShortageNotFound, Requested: want[id]})
		case p.Qty < want[id]:
			out = append(out, Shortage{ProductID: id, Kind: ShortageInsufficient, Name: p.Name, Requested: want[id], Available: p.Qty})
		}
	}
	return out, nil
}

// decrementForAcceptance locks the products, re-verifies every item and
// subtracts the requested quantities. Any shortage aborts with a ConflictError
// before a single row is changed.
func decrementForAcceptance(ctx context.Context, tx Tx, items []LineItem) error {
	shortages, err := checkAvailability(ctx, tx, items, true)
	if err != nil {
		return err
	}
	if len(shortages) > 0 {
		return &ConflictError{Reason: "insufficient inventory", Shortages: shortages}
	}
	ids, want := demand(items)
	for _, id := range ids {
		if err := tx.AddStock(ctx, id, -want[id]); err != nil {
			return err
		}
	}
	return nil
}
