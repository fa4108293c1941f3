package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventProductRegistered = "ProductRegistered"
	EventStockReceived     = "StockReceived"
	EventRequestCreated    = "RequestCreated"
	EventRequestAccepted   = "RequestAccepted"
	EventPaymentRecorded   = "PaymentRecorded"
	EventDeliveryScheduled = "DeliveryScheduled"
	EventRequestVerified   = "RequestVerified"
	EventShortageDetected  = "ShortageDetected"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Publisher delivers envelopes to a topic. Implemented by kafka.Producer.
type Publisher interface {
	Publish(topic string, key []byte, env Envelope)
}

func NewEnvelope(eventType, producer, traceID, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// ---- payloads ----

type ProductRegisteredPayload struct {
	Product Product `json:"product"`
}

type StockReceivedPayload struct {
	ProductID int64           `json:"product_id"`
	Qty       int             `json:"qty"`
	Amount    decimal.Decimal `json:"amount"`
}

type RequestCreatedPayload struct {
	OrderID int64      `json:"order_id"`
	User    string     `json:"user"`
	Items   []LineItem `json:"items"`
}

type RequestAcceptedPayload struct {
	OrderID int64      `json:"order_id"`
	Items   []LineItem `json:"items"`
}

type PaymentRecordedPayload struct {
	PaymentID   int64           `json:"payment_id"`
	OrderID     int64           `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type DeliveryScheduledPayload struct {
	PaymentID    int64     `json:"payment_id"`
	DeliveryDate time.Time `json:"delivery_date"`
}

type RequestVerifiedPayload struct {
	OrderID int64 `json:"order_id"`
}

type ShortageDetectedPayload struct {
	OrderID   int64      `json:"order_id"`
	Reason    string     `json:"reason"` // OUT_OF_STOCK
	Shortages []Shortage `json:"shortages"`
}
