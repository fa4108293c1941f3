package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-wholesale-orders/internal/orders"
)

const dateLayout = "2006-01-02"

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// rangeParams reads startDate/endDate. A date-only endDate covers the whole day.
func rangeParams(r *http.Request) (start, end time.Time, err error) {
	rawStart, rawEnd := r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate")
	if rawStart == "" {
		return start, end, &orders.ValidationError{Field: "startDate", Reason: "required"}
	}
	if rawEnd == "" {
		return start, end, &orders.ValidationError{Field: "endDate", Reason: "required"}
	}
	if start, err = parseDate(rawStart); err != nil {
		return start, end, &orders.ValidationError{Field: "startDate", Reason: "must be a date (YYYY-MM-DD)"}
	}
	if end, err = parseDate(rawEnd); err != nil {
		return start, end, &orders.ValidationError{Field: "endDate", Reason: "must be a date (YYYY-MM-DD)"}
	}
	if _, dateOnly := time.Parse(dateLayout, rawEnd); dateOnly == nil {
		end = end.AddDate(0, 0, 1).Add(-time.Microsecond)
	}
	return start, end, nil
}

func (h *Handler) paymentsReport(w http.ResponseWriter, r *http.Request) {
	start, end, err := rangeParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	ps, err := h.Orders.PaymentsInRange(ctx, start, end)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) outlaysReport(w http.ResponseWriter, r *http.Request) {
	start, end, err := rangeParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	out, err := h.Orders.OutlaysInRange(ctx, start, end)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
