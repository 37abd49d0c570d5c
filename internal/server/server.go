// Package server assembles the app's HTTP surface: public install and webhook routes, and
// the tenant-scoped /api group behind the auth gate.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"appgate/internal/install"
	"appgate/pkg/middleware"
)

const welcomePage = `<!doctype html><html><head><title>appgate</title></head><body><h1>Welcome to Your Shopify App</h1></body></html>`

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID(), chimw.RealIP, middleware.Recover(a.log), middleware.AccessLog(a.log), middleware.Tracing(a.log, "appgate"))
	// Preflights never reach route handlers, so CORS sits on the root router.
	r.Use(middleware.CORS(a.cfg.CORSOrigins))
	r.Use(middleware.FrameAncestors(func(raw string) (string, error) {
		return install.NormalizeShop(raw, a.cfg.ShopDomainSuffix)
	}))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(welcomePage))
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	r.Get("/.well-known/openapi.json", a.docs.ServeHandler("appgate", "1.0.0"))

	// Public: the install handshake and webhooks authenticate themselves.
	a.install.Routes(r, a.cfg.AuthPath, a.cfg.CallbackPath, a.tokens)
	r.Method(http.MethodPost, a.cfg.WebhookPath, a.receiver)

	r.Group(func(pr chi.Router) {
		pr.Use(a.gate.Middleware)
		a.api.Routes(pr)
	})
	return r
}
