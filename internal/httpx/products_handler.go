package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-wholesale-orders/internal/orders"
	"github.com/shopspring/decimal"
)

type RegisterProductReq struct {
	Name           string           `json:"name"`
	Qty            *int             `json:"qty"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	WholesalePrice *decimal.Decimal `json:"wholesale_price"`
	RetailPrice    *decimal.Decimal `json:"retail_price"`
}

type ReceiveStockReq struct {
	ProductID int64           `json:"product_id"`
	Qty       int             `json:"qty"`
	Amount    decimal.Decimal `json:"amount"`
}

func (h *Handler) registerProduct(w http.ResponseWriter, r *http.Request) {
	var req RegisterProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.Qty == nil || req.UnitPrice == nil || req.WholesalePrice == nil || req.RetailPrice == nil {
		badRequest(w, `"name", "qty", "unit_price", "wholesale_price" and "retail_price" are required`)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	p, err := h.Orders.RegisterProduct(ctx, orders.NewProduct{
		Name:           req.Name,
		Qty:            *req.Qty,
		UnitPrice:      *req.UnitPrice,
		WholesalePrice: *req.WholesalePrice,
		RetailPrice:    *req.RetailPrice,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	ps, err := h.Orders.ListProducts(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) receiveStock(w http.ResponseWriter, r *http.Request) {
	var req ReceiveStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	o, err := h.Orders.ReceiveStock(ctx, req.ProductID, req.Qty, req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	p, err := h.Orders.GetProduct(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
