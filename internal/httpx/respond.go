package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-wholesale-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type errorResp struct {
	Error                string            `json:"error"`
	Kind                 string            `json:"kind"`
	Field                string            `json:"field,omitempty"`
	InsufficientProducts []orders.Shortage `json:"insufficient_products,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResp{Error: msg, Kind: "validation"})
}

// fail maps orders error kinds to status codes. Shortage conflicts answer 400
// with the shortage list, other conflicts 409.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *orders.ValidationError
		ce *orders.ConflictError
		se *orders.StorageError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error(), Kind: "validation", Field: ve.Field})
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResp{Error: err.Error(), Kind: "not_found"})
	case errors.As(err, &ce) && len(ce.Shortages) > 0:
		writeJSON(w, http.StatusBadRequest, errorResp{Error: ce.Reason, Kind: "conflict", InsufficientProducts: ce.Shortages})
	case errors.Is(err, orders.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResp{Error: err.Error(), Kind: "conflict"})
	default:
		h.log().Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		code := http.StatusInternalServerError
		if (errors.As(err, &se) && se.Retryable) || errors.Is(err, context.DeadlineExceeded) {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, errorResp{Error: http.StatusText(code), Kind: "storage"})
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &orders.ValidationError{Field: name, Reason: "must be a positive integer"}
	}
	return id, nil
}
