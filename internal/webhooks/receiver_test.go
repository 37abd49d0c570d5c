package webhooks

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"appgate/pkg/logger"
	"appgate/pkg/metrics"
	"appgate/pkg/middleware"
	"appgate/pkg/session"
	"appgate/pkg/tenants"
)

const (
	secret = "whsec"
	shop   = "demo.myshopify.com"
)

func delivery(t *testing.T, topic, id string, body []byte, sig string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks", bytes.NewReader(body))
	req.Header.Set(HeaderTopic, topic)
	req.Header.Set(HeaderShopDomain, shop)
	req.Header.Set(HeaderWebhookID, id)
	req.Header.Set(HeaderHMAC, sig)
	return req
}

func signed(t *testing.T, topic, id string, body []byte) *http.Request {
	return delivery(t, topic, id, body, SignatureHeader(body, secret))
}

type setup struct {
	store   tenants.Store
	disp    *Dispatcher
	recv    *Receiver
	metrics *metrics.Metrics
}

func newSetup(t *testing.T) *setup {
	t.Helper()
	store := tenants.NewMemoryStore(logger.Nop())
	_, err := store.Upsert(context.Background(), shop, "shpat_1", []string{"read_products"})
	require.NoError(t, err)
	d := NewDispatcher(logger.Nop())
	RegisterDefaults(d, store, logger.Nop())
	m := metrics.New(prometheus.NewRegistry())
	return &setup{store: store, disp: d, recv: NewReceiver(secret, d, NewMemoryLedger(time.Hour), logger.Nop(), m), metrics: m}
}

func (s *setup) serve(req *http.Request) int {
	rr := httptest.NewRecorder()
	s.recv.ServeHTTP(rr, req)
	return rr.Code
}

func TestUninstallWebhook(t *testing.T) {
	s := newSetup(t)
	require.Equal(t, http.StatusOK, s.serve(signed(t, TopicAppUninstalled, "d1", []byte(`{}`))))

	got, err := s.store.Get(context.Background(), shop)
	require.NoError(t, err)
	require.Equal(t, tenants.StatusUninstalled, got.Status)

	// A fresh delivery of the same event (new id) is still a no-op.
	require.Equal(t, http.StatusOK, s.serve(signed(t, TopicAppUninstalled, "d2", []byte(`{}`))))
	again, err := s.store.Get(context.Background(), shop)
	require.NoError(t, err)
	require.Equal(t, got, again)
}

func TestUninstallPayloadMustNameHeaderShop(t *testing.T) {
	s := newSetup(t)
	// A validly signed body captured from another shop, replayed under this shop's header.
	foreign := []byte(`{"id":2,"domain":"other.example","myshopify_domain":"other.myshopify.com"}`)
	require.Equal(t, http.StatusOK, s.serve(signed(t, TopicAppUninstalled, "d-x", foreign)))
	got, err := s.store.Get(context.Background(), shop)
	require.NoError(t, err)
	require.True(t, got.Active())

	own := []byte(`{"id":1,"domain":"shop.example","myshopify_domain":"demo.myshopify.com"}`)
	require.Equal(t, http.StatusOK, s.serve(signed(t, TopicAppUninstalled, "d-y", own)))
	got, err = s.store.Get(context.Background(), shop)
	require.NoError(t, err)
	require.Equal(t, tenants.StatusUninstalled, got.Status)
}

func TestTamperedPayloadRejectedStoreUnchanged(t *testing.T) {
	s := newSetup(t)
	body := []byte(`{"current":["read_products"]}`)
	sig := SignatureHeader(body, secret)
	tampered := []byte(`{"current":["write_orders"]}`)

	require.Equal(t, http.StatusUnauthorized, s.serve(delivery(t, TopicAppUninstalled, "d1", tampered, sig)))
	got, err := s.store.Get(context.Background(), shop)
	require.NoError(t, err)
	require.True(t, got.Active())
	require.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Webhooks.WithLabelValues("unverified", "invalid_signature")))
}

func TestDuplicateDeliveryDispatchedOnce(t *testing.T) {
	s := newSetup(t)
	var calls atomic.Int32
	s.disp.Register("orders/create", HandlerFunc(func(context.Context, Event) error {
		calls.Add(1)
		return nil
	}))
	body := []byte(`{"id":7}`)
	require.Equal(t, http.StatusOK, s.serve(signed(t, "orders/create", "d-7", body)))
	require.Equal(t, http.StatusOK, s.serve(signed(t, "orders/create", "d-7", body)))
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Webhooks.WithLabelValues("orders/create", "duplicate")))
}

func TestHandlerFailureIsRetryable(t *testing.T) {
	s := newSetup(t)
	var calls atomic.Int32
	s.disp.Register("orders/create", HandlerFunc(func(context.Context, Event) error {
		if calls.Add(1) == 1 {
			return errors.New("downstream unavailable")
		}
		return nil
	}))
	body := []byte(`{"id":8}`)
	require.Equal(t, http.StatusInternalServerError, s.serve(signed(t, "orders/create", "d-8", body)))
	require.Equal(t, http.StatusOK, s.serve(signed(t, "orders/create", "d-8", body)))
	require.Equal(t, int32(2), calls.Load())
}

func TestUnknownTopicAcknowledged(t *testing.T) {
	s := newSetup(t)
	require.Equal(t, http.StatusOK, s.serve(signed(t, "carts/update", "d-9", []byte(`{}`))))
	require.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Webhooks.WithLabelValues("carts/update", "unhandled")))
}

func TestMissingTopicIsBadRequest(t *testing.T) {
	s := newSetup(t)
	require.Equal(t, http.StatusBadRequest, s.serve(signed(t, "", "d-10", []byte(`{}`))))
}

func TestOversizedBody(t *testing.T) {
	s := newSetup(t)
	body := bytes.Repeat([]byte("a"), MaxBodyBytes+1)
	require.Equal(t, http.StatusRequestEntityTooLarge, s.serve(signed(t, TopicAppUninstalled, "d-11", body)))
}

func TestScopesUpdateWebhook(t *testing.T) {
	s := newSetup(t)
	body := []byte(`{"id":1,"previous":["read_products"],"current":["write_products","read_orders"]}`)
	require.Equal(t, http.StatusOK, s.serve(signed(t, TopicAppScopesUpdate, "d-12", body)))
	got, err := s.store.Get(context.Background(), shop)
	require.NoError(t, err)
	require.Equal(t, []string{"read_orders", "write_products"}, got.Scope)

	require.Equal(t, http.StatusInternalServerError, s.serve(signed(t, TopicAppScopesUpdate, "d-13", []byte(`{"id":1}`))))
}

func TestPrivacyTopicsAcknowledged(t *testing.T) {
	s := newSetup(t)
	for i, topic := range []string{TopicCustomersDataRequest, TopicCustomersRedact, TopicShopRedact} {
		require.Equal(t, http.StatusOK, s.serve(signed(t, topic, "p-"+string(rune('a'+i)), []byte(`{"shop_domain":"demo.myshopify.com"}`))))
	}
	require.Equal(t, []string{"app/scopes_update", "app/uninstalled", "customers/data_request", "customers/redact", "shop/redact"}, s.disp.Topics())
}

func TestUninstallThenProtectedCallRejected(t *testing.T) {
	s := newSetup(t)
	tokens := session.New(session.Config{APIKey: "key", APISecret: "app-secret"})
	gate := middleware.NewGate(s.store, tokens, "/api/auth", logger.Nop(), s.metrics)
	protected := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	raw, err := tokens.Mint(shop)
	require.NoError(t, err)
	call := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/products/count", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusOK, call())
	require.Equal(t, http.StatusOK, s.serve(signed(t, TopicAppUninstalled, "d-u", []byte(`{}`))))
	require.Equal(t, http.StatusUnauthorized, call())
}

func TestMemoryLedgerExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLedger(time.Minute)
	l.Now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, "d1"))
	seen, err := l.Seen(ctx, "d1")
	require.NoError(t, err)
	require.True(t, seen)

	now = now.Add(2 * time.Minute)
	seen, err = l.Seen(ctx, "d1")
	require.NoError(t, err)
	require.False(t, seen)
}

func TestDispatchUnknownTopicIsNil(t *testing.T) {
	d := NewDispatcher(nil)
	require.NoError(t, d.Dispatch(context.Background(), Event{Topic: "nope"}))
	require.False(t, d.Handles("nope"))
}
