package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"appgate/pkg/logger"
	"appgate/pkg/middleware"
	"appgate/pkg/session"
	"appgate/pkg/shopify"
	"appgate/pkg/tenants"
)

type env struct {
	router  http.Handler
	tokens  *session.Tokens
	store   tenants.Store
	creates atomic.Int32
}

// newEnv wires the gate and API against a fake Admin GraphQL endpoint. userErr, when set, is
// returned from every productCreate.
func newEnv(t *testing.T, userErr string) *env {
	t.Helper()
	e := &env{}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Shopify-Access-Token") != "shpat_ok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch {
		case strings.Contains(body.Query, "productsCount"):
			_, _ = w.Write([]byte(`{"data":{"productsCount":{"count":42}}}`))
		case strings.Contains(body.Query, "productCreate"):
			e.creates.Add(1)
			errs := `[]`
			if userErr != "" {
				errs = `[{"field":["title"],"message":"` + userErr + `"}]`
			}
			_, _ = w.Write([]byte(`{"data":{"productCreate":{"product":{"id":"gid://shopify/Product/1","title":"x"},"userErrors":` + errs + `}}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(upstream.Close)

	client := shopify.NewClient("2024-07", time.Second, logger.Nop())
	client.Endpoint = func(string, string) string { return upstream.URL }

	e.store = tenants.NewMemoryStore(logger.Nop())
	e.tokens = session.New(session.Config{APIKey: "key", APISecret: "secret"})
	gate := middleware.NewGate(e.store, e.tokens, "/api/auth", logger.Nop(), nil)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(gate.Middleware)
		New(client, logger.Nop()).Routes(r)
	})
	e.router = r
	return e
}

func (e *env) install(t *testing.T, shop, token string, scope ...string) string {
	t.Helper()
	_, err := e.store.Upsert(context.Background(), shop, token, scope)
	require.NoError(t, err)
	raw, err := e.tokens.Mint(shop)
	require.NoError(t, err)
	return raw
}

func (e *env) do(method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func TestProductCount(t *testing.T) {
	e := newEnv(t, "")
	raw := e.install(t, "demo.myshopify.com", "shpat_ok", "read_products")

	rr := e.do(http.MethodGet, "/api/products/count", raw)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"count":42}`, rr.Body.String())
}

func TestProductCountRequiresSession(t *testing.T) {
	e := newEnv(t, "")
	require.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/products/count", "").Code)
}

func TestProductCountStaleToken(t *testing.T) {
	e := newEnv(t, "")
	raw := e.install(t, "demo.myshopify.com", "shpat_revoked", "read_products")
	require.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/products/count", raw).Code)
}

func TestCreateProducts(t *testing.T) {
	e := newEnv(t, "")
	raw := e.install(t, "demo.myshopify.com", "shpat_ok", "write_products")

	rr := e.do(http.MethodPost, "/api/products", raw)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"success":true,"error":null}`, rr.Body.String())
	require.Equal(t, int32(5), e.creates.Load())
}

func TestCreateProductsUserError(t *testing.T) {
	e := newEnv(t, "Title can't be blank")
	raw := e.install(t, "demo.myshopify.com", "shpat_ok", "write_products")

	rr := e.do(http.MethodPost, "/api/products", raw)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Contains(t, body.Error, "Title can't be blank")
	require.Equal(t, int32(1), e.creates.Load())
}

func TestCreateProductsNeedsWriteScope(t *testing.T) {
	e := newEnv(t, "")
	raw := e.install(t, "demo.myshopify.com", "shpat_ok", "read_products")
	require.Equal(t, http.StatusForbidden, e.do(http.MethodPost, "/api/products", raw).Code)
	require.Zero(t, e.creates.Load())
}

func TestSessionEndpoint(t *testing.T) {
	e := newEnv(t, "")
	raw := e.install(t, "demo.myshopify.com", "shpat_ok", "read_products", "write_orders")
	rr := e.do(http.MethodGet, "/api/session", raw)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"shop":"demo.myshopify.com","scope":["read_products","write_orders"]}`, rr.Body.String())
}
