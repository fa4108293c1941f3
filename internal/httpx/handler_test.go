package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ariefcatur/go-wholesale-orders/internal/memstore"
	"github.com/ariefcatur/go-wholesale-orders/internal/orders"
	"github.com/ariefcatur/go-wholesale-orders/internal/redisx"
)

const testKey = "secret"

type api struct {
	t      *testing.T
	router http.Handler
	svc    *orders.Service
	cache  *redisx.Cache
	mr     *miniredis.Miniredis
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := zaptest.NewLogger(t)
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })

	svc := &orders.Service{Store: memstore.New(), Log: log}
	cache := &redisx.Cache{RDB: rdb}
	h := &Handler{Orders: svc, Cache: cache, Log: log, Timeout: 2 * time.Second}

	r := NewRouter(log)
	r.Group(func(r chi.Router) {
		r.Use(RequireAPIKey(testKey))
		h.Register(r)
	})
	return &api{t: t, router: r, svc: svc, cache: cache, mr: mr}
}

func (a *api) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testKey)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *api) product(name string, qty int, unit, wholesale string) orders.Product {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/products/add", map[string]any{
		"name": name, "qty": qty, "unit_price": unit, "wholesale_price": wholesale, "retail_price": unit,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[orders.Product](a.t, rec)
}

func (a *api) request(user string, items ...orders.LineItem) CreateRequestResp {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/request", CreateRequestReq{User: user, Products: items})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[CreateRequestResp](a.t, rec)
}

func TestFulfillmentFlow(t *testing.T) {
	a := newAPI(t)
	p := a.product("A", 150, "10", "8")

	created := a.request("u1", orders.LineItem{ProductID: p.ID, Qty: 120})
	assert.Equal(t, orders.StatusPending, created.Status)
	assert.False(t, created.Idempotent)

	rec := a.do(http.MethodGet, "/request/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	priced := decode[orders.PricedRequest](t, rec)
	assert.True(t, priced.TotalAmount.Equal(decimal.NewFromInt(960)))

	rec = a.do(http.MethodGet, "/request/check/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodPost, "/accept-request/1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, orders.StatusAccepted, decode[AcceptResp](t, rec).Status)

	rec = a.do(http.MethodPost, "/accept-request/1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decode[errorResp](t, rec).Kind)

	rec = a.do(http.MethodGet, "/product/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, decode[orders.Product](t, rec).Qty)

	rec = a.do(http.MethodPost, "/payment", map[string]any{"order_id": 1, "total_amount": 950})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/payment", map[string]any{"order_id": 1, "total_amount": 960})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pay := decode[orders.Payment](t, rec)

	rec = a.do(http.MethodPut, "/payment/update-delivery", UpdateDeliveryReq{PaymentID: pay.PaymentID, DeliveryDate: "2024-06-01"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, "/report?startDate=2024-06-01&endDate=2024-06-01", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]orders.Payment](t, rec), 1)

	rec = a.do(http.MethodGet, "/request/1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusPaid, decode[redisx.StatusEntry](t, rec).Status)
}

func TestVerifyAndAccept_Shortage(t *testing.T) {
	a := newAPI(t)
	p := a.product("B", 10, "5", "4")
	a.request("u2", orders.LineItem{ProductID: p.ID, Qty: 50})

	rec := a.do(http.MethodGet, "/request/check/1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	v := decode[VerifyResp](t, rec)
	require.Len(t, v.InsufficientProducts, 1)
	assert.Equal(t, 50, v.InsufficientProducts[0].Requested)
	assert.Equal(t, 10, v.InsufficientProducts[0].Available)

	rec = a.do(http.MethodPost, "/accept-request/1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	e := decode[errorResp](t, rec)
	assert.Equal(t, "conflict", e.Kind)
	assert.Len(t, e.InsufficientProducts, 1)
}

func TestCreateRequest_IdempotencyKey(t *testing.T) {
	a := newAPI(t)
	p := a.product("A", 10, "1", "1")
	body := CreateRequestReq{User: "u1", Products: []orders.LineItem{{ProductID: p.ID, Qty: 1}}}

	first := a.do(http.MethodPost, "/request", body, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, first.Code)
	second := a.do(http.MethodPost, "/request", body, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusOK, second.Code)

	resp := decode[CreateRequestResp](t, second)
	assert.True(t, resp.Idempotent)
	assert.Equal(t, decode[CreateRequestResp](t, first).OrderID, resp.OrderID)

	all, err := a.svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRequestStatus_FallsBackToStore(t *testing.T) {
	a := newAPI(t)
	p := a.product("A", 10, "1", "1")
	a.request("u1", orders.LineItem{ProductID: p.ID, Qty: 1})
	a.mr.FlushAll()

	rec := a.do(http.MethodGet, "/request/1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusPending, decode[redisx.StatusEntry](t, rec).Status)

	_, ok, err := a.cache.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok, "a store read refills the cache")

	rec = a.do(http.MethodGet, "/request/99/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	a := newAPI(t)
	a.product("A", 10, "1", "1")

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
		field  string
	}{
		{"missing product fields", http.MethodPost, "/products/add", map[string]any{"name": "x"}, http.StatusBadRequest, ""},
		{"negative price", http.MethodPost, "/products/add", map[string]any{"name": "x", "qty": 1, "unit_price": -1, "wholesale_price": 1, "retail_price": 1}, http.StatusBadRequest, "unit_price"},
		{"huge product qty", http.MethodPost, "/products/add", map[string]any{"name": "x", "qty": 4294967301, "unit_price": 1, "wholesale_price": 1, "retail_price": 1}, http.StatusBadRequest, "qty"},
		{"huge received qty", http.MethodPut, "/products/add-qty", map[string]any{"product_id": 1, "qty": 4294967301, "amount": 5}, http.StatusBadRequest, "qty"},
		{"huge line qty", http.MethodPost, "/request", map[string]any{"user": "u", "products": []map[string]any{{"product_id": 1, "qty": 4294967301}}}, http.StatusBadRequest, "items[0].qty"},
		{"empty request", http.MethodPost, "/request", map[string]any{"user": "u"}, http.StatusBadRequest, "products"},
		{"non-numeric id", http.MethodGet, "/product/abc", nil, http.StatusBadRequest, "id"},
		{"unknown product", http.MethodGet, "/product/9", nil, http.StatusNotFound, ""},
		{"stock for unknown product", http.MethodPut, "/products/add-qty", map[string]any{"product_id": 9, "qty": 1, "amount": 5}, http.StatusNotFound, ""},
		{"unknown request", http.MethodPost, "/accept-request/9", nil, http.StatusNotFound, ""},
		{"user without requests", http.MethodGet, "/requests/nobody", nil, http.StatusNotFound, ""},
		{"payment for unknown order", http.MethodPost, "/payment", map[string]any{"order_id": 9, "total_amount": 5}, http.StatusNotFound, ""},
		{"bad delivery date", http.MethodPut, "/payment/update-delivery", map[string]any{"payment_id": 1, "delivery_date": "tomorrow"}, http.StatusBadRequest, "delivery_date"},
		{"missing report bound", http.MethodGet, "/report?startDate=2024-01-01", nil, http.StatusBadRequest, "endDate"},
		{"empty outlay range", http.MethodGet, "/outlays?startDate=2000-01-01&endDate=2000-01-02", nil, http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := a.do(tc.method, tc.path, tc.body)
			require.Equal(t, tc.code, rec.Code, rec.Body.String())
			assert.Equal(t, tc.field, decode[errorResp](t, rec).Field)
		})
	}
}

func TestListings(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/requests-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]orders.Request](t, rec))

	p := a.product("A", 10, "1", "1")
	a.request("ann", orders.LineItem{ProductID: p.ID, Qty: 1})
	a.request("bob", orders.LineItem{ProductID: p.ID, Qty: 2})

	rec = a.do(http.MethodGet, "/requests/ann", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	anns := decode[[]orders.Request](t, rec)
	require.Len(t, anns, 1)
	assert.Equal(t, "ann", anns[0].User)

	rec = a.do(http.MethodGet, "/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]orders.Product](t, rec), 1)

	rec = a.do(http.MethodPut, "/products/add-qty", ReceiveStockReq{ProductID: p.ID, Qty: 5, Amount: decimal.NewFromInt(40)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	today := time.Now().UTC().Format(dateLayout)
	rec = a.do(http.MethodGet, "/outlays?startDate="+today+"&endDate="+today, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]orders.Outlay](t, rec), 1)
}

func TestRequireAPIKey(t *testing.T) {
	a := newAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "health stays open")
}

func TestRangeParams_DateOnlyEndCoversDay(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/outlays?startDate=2024-01-01&endDate=2024-01-02", nil)
	start, end, err := rangeParams(req)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.True(t, end.After(time.Date(2024, 1, 2, 23, 59, 59, 0, time.UTC)))
	assert.True(t, end.Before(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)))

	req = httptest.NewRequest(http.MethodGet, "/outlays?startDate=2024-01-01&endDate=2024-01-02T10:00:00Z", nil)
	_, end, err = rangeParams(req)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), end)
}

func TestCreateRequest_ConcurrentSameKeyCreatesOnce(t *testing.T) {
	a := newAPI(t)
	p := a.product("A", 10, "1", "1")
	body := CreateRequestReq{User: "u1", Products: []orders.LineItem{{ProductID: p.ID, Qty: 1}}}

	const n = 8
	codes := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var buf bytes.Buffer
			_ = json.NewEncoder(&buf).Encode(body)
			req := httptest.NewRequest(http.MethodPost, "/request", &buf)
			req.Header.Set("X-API-Key", testKey)
			req.Header.Set("Idempotency-Key", "same")
			rec := httptest.NewRecorder()
			a.router.ServeHTTP(rec, req)
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)

	created := 0
	for code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusOK, http.StatusConflict:
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	assert.Equal(t, 1, created)

	all, err := a.svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateRequest_KeyInFlightAndReleasedOnFailure(t *testing.T) {
	a := newAPI(t)
	p := a.product("A", 10, "1", "1")
	ctx := context.Background()

	claimed, _, err := a.cache.ClaimRequest(ctx, "busy")
	require.NoError(t, err)
	require.True(t, claimed)
	rec := a.do(http.MethodPost, "/request", CreateRequestReq{User: "u1", Products: []orders.LineItem{{ProductID: p.ID, Qty: 1}}}, "Idempotency-Key", "busy")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/request", CreateRequestReq{User: "u1"}, "Idempotency-Key", "retry")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(http.MethodPost, "/request", CreateRequestReq{User: "u1", Products: []orders.LineItem{{ProductID: p.ID, Qty: 1}}}, "Idempotency-Key", "retry")
	assert.Equal(t, http.StatusCreated, rec.Code, "a failed create frees its key")
}

func TestCORS(t *testing.T) {
	a := newAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/products/add-qty", nil)
	req.Header.Set("Origin", "http://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	req.Header.Set("Access-Control-Request-Headers", "X-API-Key")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300, "preflight needs no api key")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://shop.example")
	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
