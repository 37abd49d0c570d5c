// pkg/middleware/auth.go
package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"appgate/pkg/logger"
	"appgate/pkg/metrics"
	"appgate/pkg/problems"
	"appgate/pkg/session"
	"appgate/pkg/tenants"
)

// Rejection reasons, also used as metric labels and problem type slugs.
const (
	ReasonMissingSession   = "missing-session"
	ReasonInvalidSession   = "invalid-session"
	ReasonUnknownTenant    = "unknown-tenant"
	ReasonUninstalled      = "tenant-uninstalled"
	ReasonStoreUnavailable = "store-unavailable"
)

// Rejection is the gate's negative outcome. Status is 401 for every authentication failure.
type Rejection struct {
	Status int
	Reason string
	Detail string
	Shop   string // set when the session named a shop, used for the reauthorize hint
}

// Gate validates a session indicator and loads the tenant it names. It only ever reads the store.
type Gate struct {
	store    tenants.Store
	tokens   *session.Tokens
	authPath string
	log      *zap.SugaredLogger
	metrics  *metrics.Metrics
}

func NewGate(store tenants.Store, tokens *session.Tokens, authPath string, log *zap.SugaredLogger, m *metrics.Metrics) *Gate {
	return &Gate{store: store, tokens: tokens, authPath: authPath, log: logger.OrNop(log), metrics: metrics.OrDiscard(m)}
}

// Authorize resolves the request to an active tenant, or explains why it cannot.
func (g *Gate) Authorize(r *http.Request) (TenantContext, *Rejection) {
	raw := sessionIndicator(r)
	if raw == "" {
		return TenantContext{}, &Rejection{Status: http.StatusUnauthorized, Reason: ReasonMissingSession, Detail: "no session token or cookie"}
	}
	shop, err := g.tokens.Verify(raw)
	if err != nil {
		return TenantContext{}, &Rejection{Status: http.StatusUnauthorized, Reason: ReasonInvalidSession, Detail: "session token is not valid"}
	}
	t, err := g.store.Get(r.Context(), shop)
	switch {
	case errors.Is(err, tenants.ErrNotFound):
		return TenantContext{}, &Rejection{Status: http.StatusUnauthorized, Reason: ReasonUnknownTenant, Detail: "shop is not installed", Shop: shop}
	case err != nil:
		g.log.Errorw("auth gate store read", "shop", shop, "err", err)
		return TenantContext{}, &Rejection{Status: http.StatusServiceUnavailable, Reason: ReasonStoreUnavailable, Detail: "tenant store unavailable"}
	case !t.Active():
		return TenantContext{}, &Rejection{Status: http.StatusUnauthorized, Reason: ReasonUninstalled, Detail: "shop has uninstalled the app", Shop: shop}
	}
	return tenantContextOf(t), nil
}

// Middleware attaches the TenantContext or writes the rejection.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		tc, rej := g.Authorize(r)
		if rej != nil {
			g.metrics.AuthRejections.WithLabelValues(rej.Reason).Inc()
			if rej.Shop != "" && g.authPath != "" {
				// Embedded frontends watch these headers and restart the install flow.
				w.Header().Set("X-Shopify-API-Request-Failure-Reauthorize", "1")
				w.Header().Set("X-Shopify-API-Request-Failure-Reauthorize-Url", g.authPath+"?shop="+url.QueryEscape(rej.Shop))
			}
			if rej.Status == http.StatusUnauthorized {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				problems.Unauthorized(w, rej.Reason, rej.Detail)
				return
			}
			problems.Write(w, rej.Status, rej.Reason, http.StatusText(rej.Status), rej.Detail)
			return
		}
		next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), tc)))
	})
}

// sessionIndicator prefers the bearer session token over the cookie.
func sessionIndicator(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		if tok := strings.TrimSpace(authz[len("Bearer "):]); tok != "" {
			return tok
		}
	}
	if c, err := r.Cookie(session.CookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
