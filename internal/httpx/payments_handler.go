package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-wholesale-orders/internal/orders"
	"github.com/shopspring/decimal"
)

type RecordPaymentReq struct {
	OrderID     int64           `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type UpdateDeliveryReq struct {
	PaymentID    int64  `json:"payment_id"`
	DeliveryDate string `json:"delivery_date"` // 2006-01-02
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	p, err := h.Orders.RecordPayment(ctx, req.OrderID, req.TotalAmount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheStatus(ctx, req.OrderID, orders.StatusPaid)
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) updateDelivery(w http.ResponseWriter, r *http.Request) {
	var req UpdateDeliveryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.DeliveryDate == "" {
		h.fail(w, r, &orders.ValidationError{Field: "delivery_date", Reason: "required"})
		return
	}
	date, err := parseDate(req.DeliveryDate)
	if err != nil {
		h.fail(w, r, &orders.ValidationError{Field: "delivery_date", Reason: "must be a date (YYYY-MM-DD)"})
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	p, err := h.Orders.SetDeliveryDate(ctx, req.PaymentID, date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	ps, err := h.Orders.ListPayments(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	p, err := h.Orders.GetPayment(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
