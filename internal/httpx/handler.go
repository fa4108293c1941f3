package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-wholesale-orders/internal/orders"
	"github.com/ariefcatur/go-wholesale-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Orders  *orders.Service
	Cache   *redisx.Cache // nil disables caching and idempotency keys
	Log     *zap.Logger
	Timeout time.Duration
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/products/add", h.registerProduct)
	r.Get("/products", h.listProducts)
	r.Put("/products/add-qty", h.receiveStock)
	r.Get("/product/{id}", h.getProduct)

	r.Post("/request", h.createRequest)
	r.Get("/request/{order_id}", h.getRequestPriced)
	r.Get("/request/{order_id}/status", h.getRequestStatus)
	r.Get("/request/check/{order_id}", h.verifyRequest)
	r.Get("/requests-all", h.listRequests)
	r.Get("/requests/{user}", h.listRequestsByUser)
	r.Post("/accept-request/{order_id}", h.acceptRequest)

	r.Post("/payment", h.recordPayment)
	r.Put("/payment/update-delivery", h.updateDelivery)
	r.Get("/payments", h.listPayments)
	r.Get("/payment/{id}", h.getPayment)

	r.Get("/report", h.paymentsReport)
	r.Get("/outlays", h.outlaysReport)
}

func (h *Handler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), timeout)
}

func (h *Handler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// cacheStatus refreshes the status cache; cache failures never fail the request.
func (h *Handler) cacheStatus(ctx context.Context, orderID int64, s orders.Status) {
	if err := h.Cache.SetStatus(ctx, orderID, s); err != nil {
		h.log().Warn("cache status", zap.Int64("order_id", orderID), zap.Error(err))
	}
}
