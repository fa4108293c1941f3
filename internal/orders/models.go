package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Qty            int             `json:"qty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
}

type LineItem struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

type Request struct {
	OrderID   int64      `json:"order_id"`
	Status    Status     `json:"status"`
	User      string     `json:"user"`
	Items     []LineItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
}

type PricedItem struct {
	ProductID    int64           `json:"product_id"`
	Name         string          `json:"name"`
	Qty          int             `json:"qty"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}

type PricedRequest struct {
	OrderID     int64           `json:"order_id"`
	Status      Status          `json:"status"`
	Items       []PricedItem    `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Payment.DeliveryDate stays nil until a delivery date is confirmed.
type Payment struct {
	PaymentID    int64           `json:"payment_id"`
	OrderID      int64           `json:"order_id"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	DeliveryDate *time.Time      `json:"delivery_date"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Outlay is one inventory receipt. Append-only.
type Outlay struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Qty       int             `json:"qty"`
	Amount    decimal.Decimal `json:"amount"`
	EntryDate time.Time       `json:"entry_date"`
}

type ShortageKind string

const (
	ShortageNotFound     ShortageKind = "not_found"
	ShortageInsufficient ShortageKind = "insufficient"
)

type Shortage struct {
	ProductID int64        `json:"product_id"`
	Kind      ShortageKind `json:"kind"`
	Name      string       `json:"name,omitempty"`
	Requested int          `json:"requested_qty"`
	Available int          `json:"available_qty"`
}
