package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-wholesale-orders/internal/orders"
	"github.com/ariefcatur/go-wholesale-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CreateRequestReq struct {
	Products []orders.LineItem `json:"products"`
	User     string            `json:"user"`
}

type CreateRequestResp struct {
	User       string        `json:"user"`
	OrderID    int64         `json:"order_id"`
	Status     orders.Status `json:"status"`
	Idempotent bool          `json:"idempotent"`
}

type VerifyResp struct {
	OrderID              int64             `json:"order_id"`
	Message              string            `json:"message"`
	InsufficientProducts []orders.Shortage `json:"insufficient_products,omitempty"`
}

type AcceptResp struct {
	OrderID int64         `json:"order_id"`
	Status  orders.Status `json:"status"`
	Message string        `json:"message"`
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateRequestReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	// Claim the idempotency key before creating so concurrent replays cannot
	// both create; the store stays the source of truth.
	idemKey := r.Header.Get("Idempotency-Key")
	claimed, orderID, err := h.Cache.ClaimRequest(ctx, idemKey)
	switch {
	case errors.Is(err, redisx.ErrInFlight):
		writeJSON(w, http.StatusConflict, errorResp{Error: "a request with this Idempotency-Key is still being created", Kind: "conflict"})
		return
	case err != nil:
		h.log().Warn("idempotency claim", zap.Error(err))
	case !claimed:
		existing, err := h.Orders.GetRequest(ctx, orderID)
		if err == nil {
			writeJSON(w, http.StatusOK, CreateRequestResp{User: existing.User, OrderID: existing.OrderID, Status: existing.Status, Idempotent: true})
			return
		}
		if !errors.Is(err, orders.ErrNotFound) {
			h.fail(w, r, err)
			return
		}
	}

	created, err := h.Orders.CreateRequest(ctx, req.User, req.Products)
	if err != nil {
		if claimed {
			if rerr := h.Cache.ReleaseRequest(ctx, idemKey); rerr != nil {
				h.log().Warn("release idempotency key", zap.Error(rerr))
			}
		}
		h.fail(w, r, err)
		return
	}

	if err := h.Cache.RememberRequest(ctx, idemKey, created.OrderID); err != nil {
		h.log().Warn("remember idempotency key", zap.Int64("order_id", created.OrderID), zap.Error(err))
	}
	h.cacheStatus(ctx, created.OrderID, created.Status)

	writeJSON(w, http.StatusCreated, CreateRequestResp{User: created.User, OrderID: created.OrderID, Status: created.Status})
}

func (h *Handler) getRequestPriced(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "order_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	pr, err := h.Orders.GetRequestPriced(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

func (h *Handler) getRequestStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "order_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	// 1) cache
	if e, ok, err := h.Cache.Status(ctx, id); err == nil && ok {
		writeJSON(w, http.StatusOK, e)
		return
	}

	// 2) fallback to the store
	req, err := h.Orders.GetRequest(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheStatus(ctx, id, req.Status)
	writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "status": req.Status})
}

func (h *Handler) verifyRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "order_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	ok, shortages, err := h.Orders.VerifyAvailability(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusBadRequest, VerifyResp{
			OrderID:              id,
			Message:              "not enough inventory to fill the request",
			InsufficientProducts: shortages,
		})
		return
	}
	writeJSON(w, http.StatusOK, VerifyResp{OrderID: id, Message: "the request can proceed, inventory is sufficient"})
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	rs, err := h.Orders.ListAll(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (h *Handler) listRequestsByUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	rs, err := h.Orders.ListByUser(ctx, chi.URLParam(r, "user"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (h *Handler) acceptRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "order_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	req, err := h.Orders.AcceptRequest(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheStatus(ctx, id, req.Status)
	writeJSON(w, http.StatusOK, AcceptResp{
		OrderID: id,
		Status:  req.Status,
		Message: "request accepted and inventory decremented",
	})
}
