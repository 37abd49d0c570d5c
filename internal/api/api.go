// Package api holds the tenant-scoped routes. Every handler here runs behind the auth gate.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"appgate/pkg/logger"
	"appgate/pkg/middleware"
	"appgate/pkg/problems"
	"appgate/pkg/shopify"
)

type Handler struct {
	client *shopify.Client
	log    *zap.SugaredLogger
	// ProductBatch is how many products POST /api/products creates.
	ProductBatch int
}

func New(client *shopify.Client, log *zap.SugaredLogger) *Handler {
	return &Handler{client: client, log: logger.OrNop(log), ProductBatch: 5}
}

// Routes mounts the API on a router that already carries the gate middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/session", h.session)
	r.Get("/api/products/count", h.productCount)
	r.With(middleware.RequireScope("write_products")).Post("/api/products", h.createProducts)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sessionOf(r *http.Request) (shopify.Session, middleware.TenantContext, bool) {
	tc, ok := middleware.TenantFrom(r.Context())
	return shopify.Session{Shop: tc.TenantID, AccessToken: tc.AccessToken}, tc, ok
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	_, tc, ok := sessionOf(r)
	if !ok {
		problems.Unauthorized(w, "missing-session", "")
		return
	}
	scope := tc.Scope
	if scope == nil {
		scope = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"shop": tc.TenantID, "scope": scope})
}

// upstreamProblem maps Admin API failures. A rejected token means the stored credential is
// stale, so the client is told to reauthorize like any other auth failure.
func (h *Handler) upstreamProblem(w http.ResponseWriter, shop string, err error) {
	if errors.Is(err, shopify.ErrUnauthorized) {
		h.log.Warnw("admin api rejected stored token", "shop", shop)
		problems.Unauthorized(w, "upstream-unauthorized", "stored access token was rejected")
		return
	}
	h.log.Errorw("admin api call failed", "shop", shop, "err", err)
	problems.Write(w, http.StatusBadGateway, "upstream-failed", "Bad Gateway", "business data service unavailable")
}
