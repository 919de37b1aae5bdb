package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/payment-notification-core/internal/domain"
	"github.com/Priya8975/payment-notification-core/internal/engine"
	"github.com/Priya8975/payment-notification-core/internal/notify"
	"github.com/Priya8975/payment-notification-core/internal/signature"
	"github.com/Priya8975/payment-notification-core/internal/store"
	"github.com/Priya8975/payment-notification-core/internal/worker"
)

// denyAfter admits limit triggers per merchant and reports a fixed reset.
type denyAfter struct {
	mu    sync.Mutex
	seen  map[string]int
	reset time.Duration
}

func (d *denyAfter) Reserve(_ context.Context, merchantID string, limit int) engine.RateDecision {
	if limit <= 0 {
		return engine.RateDecision{Allowed: true}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[merchantID]++
	n := d.seen[merchantID]
	return engine.RateDecision{
		Allowed:    n <= limit,
		Limit:      limit,
		Remaining:  max(limit-n, 0),
		ResetAfter: d.reset,
	}
}

func setupTestRouter(t *testing.T, opts RouterOptions) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	mem := store.NewMemory()
	registry := engine.NewRegistry(mem, nil, nil, logger)
	dispatcher := worker.NewDispatcher(registry, mem, mem, logger, worker.Options{Timeout: 2 * time.Second})
	core := notify.New(registry, mem, dispatcher, nil, logger)
	return NewRouter(core, logger, opts)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_SubscribeTriggerVerifyFlow(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{})

	received := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	merchant := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		received <- r
		bodies <- b
	}))
	defer merchant.Close()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/webhooks/subscribe", map[string]any{
		"merchant_id":  "M1",
		"callback_url": merchant.URL,
		"events":       []string{"payment.completed"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sub domain.SubscribeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	require.NotEmpty(t, sub.SecretKey)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/webhooks/trigger", map[string]any{
		"merchant_id": "M1",
		"payment_id":  "pay-1",
		"type":        "payment.completed",
		"amount":      "10.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var receipt domain.Receipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.True(t, receipt.WebhookSent)
	assert.Equal(t, "completed", receipt.Event.Status)

	r := <-received
	body := <-bodies

	verify := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/verify", bytes.NewReader(body))
	verify.Header.Set(worker.HeaderSignature, r.Header.Get(worker.HeaderSignature))
	verify.Header.Set(HeaderSecret, sub.SecretKey)
	vrec := httptest.NewRecorder()
	router.ServeHTTP(vrec, verify)
	require.Equal(t, http.StatusOK, vrec.Code)
	assert.JSONEq(t, `{"valid":true}`, vrec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/v1/webhooks/subscriptions/M1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), sub.SecretKey, "secret must never be returned again")
}

func TestRouter_TriggerValidation(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{})

	tests := []struct {
		name string
		body any
		want int
	}{
		{"malformed json", "{", http.StatusBadRequest},
		{"missing merchant", map[string]string{"payment_id": "p", "type": "payment.created"}, http.StatusBadRequest},
		{"unknown type", map[string]string{"merchant_id": "M1", "payment_id": "p", "type": "payment.lost"}, http.StatusBadRequest},
		{"bad amount", map[string]string{"merchant_id": "M1", "payment_id": "p", "type": "payment.created", "amount": "ten"}, http.StatusBadRequest},
		{"no subscription", map[string]string{"merchant_id": "M1", "payment_id": "p", "type": "payment.created"}, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/v1/webhooks/trigger", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/webhooks/events/M1", nil)
	var list domain.EventListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total, "only the valid trigger is logged")
}

func TestRouter_SubscriptionNotFoundAndToggle(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/webhooks/subscriptions/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/api/v1/webhooks/subscriptions/ghost", map[string]bool{"active": false})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/webhooks/subscribe", map[string]any{
		"merchant_id": "M1", "callback_url": "https://shop.example.com/hook",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/api/v1/webhooks/subscriptions/M1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/api/v1/webhooks/subscriptions/M1", map[string]bool{"active": false})
	require.Equal(t, http.StatusOK, rec.Code)
	var sub domain.Subscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.False(t, sub.Active)
}

func TestRouter_SubscribeRejectsBadCallback(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/webhooks/subscribe", map[string]any{
		"merchant_id": "M1", "callback_url": "not a url",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}

func TestRouter_VerifyRequiresHeaders(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{})
	body := []byte(`{"id":"evt_1"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/verify", bytes.NewReader(body))
	req.Header.Set(HeaderSecret, "whsec_x")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/verify", bytes.NewReader(body))
	req.Header.Set(worker.HeaderSignature, signature.Sign(body, "whsec_x"))
	req.Header.Set(HeaderSecret, "whsec_y")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"valid":false}`, rec.Body.String())
}

func TestRouter_TriggerRateLimit(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{
		Limiter:      &denyAfter{seen: map[string]int{}, reset: 1500 * time.Millisecond},
		TriggerLimit: 2,
	})

	triggerRec := func(merchant string) *httptest.ResponseRecorder {
		return doJSON(t, router, http.MethodPost, "/api/v1/webhooks/trigger", map[string]string{
			"merchant_id": merchant, "payment_id": "p", "type": "payment.created",
		})
	}
	trigger := func(merchant string) int { return triggerRec(merchant).Code }

	first := triggerRec("M3")
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, first.Header().Get("Retry-After"))

	triggerRec("M3")
	denied := triggerRec("M3")
	assert.Equal(t, http.StatusTooManyRequests, denied.Code)
	assert.Equal(t, "2", denied.Header().Get("Retry-After"), "1.5s rounds up")
	assert.Equal(t, "0", denied.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusCreated, trigger("M1"))
	assert.Equal(t, http.StatusCreated, trigger("M1"))
	assert.Equal(t, http.StatusTooManyRequests, trigger("M1"))
	assert.Equal(t, http.StatusCreated, trigger("M2"), "limits are per merchant")

	rec := doJSON(t, router, http.MethodGet, "/api/v1/webhooks/events/M1", nil)
	var list domain.EventListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total, "rejected triggers are not logged")
}

func TestRouter_NoRateLimitHeadersWithoutLimit(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{Limiter: &denyAfter{seen: map[string]int{}}})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/webhooks/trigger", map[string]string{
		"merchant_id": "M1", "payment_id": "p", "type": "payment.created",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestCeilSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 1},
		{time.Millisecond, 1},
		{time.Second, 1},
		{1001 * time.Millisecond, 2},
		{3 * time.Second, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ceilSeconds(tt.in), tt.in.String())
	}
}

func TestRouter_DeliveriesAndStats(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{})

	merchant := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer merchant.Close()

	doJSON(t, router, http.MethodPost, "/api/v1/webhooks/subscribe", map[string]any{
		"merchant_id": "M1", "callback_url": merchant.URL,
	})
	for i := 0; i < 3; i++ {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/webhooks/trigger", map[string]string{
			"merchant_id": "M1", "payment_id": "p", "type": "payment.failed",
		})
		require.Equal(t, http.StatusCreated, rec.Code, "delivery failures still succeed")
	}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/webhooks/deliveries/M1?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var outcomes []domain.DeliveryOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcomes))
	assert.Len(t, outcomes, 2)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/webhooks/deliveries/M1?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/webhooks/stats/M1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats domain.DeliveryStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.TotalDeliveries)
	assert.Equal(t, 3, stats.Failed)
	assert.Equal(t, 0.0, stats.SuccessRate)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/webhooks/health/M1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"healthy"`, "without health tracking endpoints report healthy")
}

func TestRouter_StatusAndHealth(t *testing.T) {
	router := setupTestRouter(t, RouterOptions{})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/webhooks/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, domain.SupportedEvents, status.SupportedEvents)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = doJSON(t, router, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
