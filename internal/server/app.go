package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"appgate/internal/api"
	"appgate/internal/install"
	"appgate/internal/webhooks"
	"appgate/pkg/config"
	"appgate/pkg/logger"
	"appgate/pkg/metrics"
	"appgate/pkg/middleware"
	"appgate/pkg/openapi"
	"appgate/pkg/session"
	"appgate/pkg/shopify"
	"appgate/pkg/tenants"
)

// Deps are the stateful collaborators chosen by main (memory or Postgres/Redis backed).
type Deps struct {
	Store    tenants.Store
	States   install.StateStore
	Ledger   webhooks.Ledger
	Shopify  *shopify.Client
	Registry *prometheus.Registry
	// ProviderEndpoint overrides the per-shop OAuth endpoints.
	ProviderEndpoint func(shop string) oauth2.Endpoint
}

// App is the server container: shared deps and config only, request work goes through context.
type App struct {
	cfg        config.Config
	log        *zap.SugaredLogger
	registry   *prometheus.Registry
	tokens     *session.Tokens
	install    *install.Controller
	dispatcher *webhooks.Dispatcher
	receiver   *webhooks.Receiver
	gate       *middleware.Gate
	api        *api.Handler
	docs       *openapi.Registry
}

func New(cfg config.Config, log *zap.SugaredLogger, d Deps) *App {
	log = logger.OrNop(log)
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	if d.States == nil {
		d.States = install.NewMemoryStateStore(cfg.StateTTL)
	}
	if d.Ledger == nil {
		d.Ledger = webhooks.NewMemoryLedger(cfg.DeliveryTTL)
	}
	if d.Shopify == nil {
		d.Shopify = shopify.NewClient(cfg.APIVersion, 0, log)
	}
	m := metrics.New(d.Registry)

	tokens := session.New(session.Config{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		TTL:       cfg.SessionTTL,
		Skew:      cfg.SessionSkew,
		Secure:    cfg.Env == "prod",
	})
	ctrl := install.NewController(install.Options{
		APIKey:              cfg.APIKey,
		APISecret:           cfg.APISecret,
		Scopes:              cfg.Scopes,
		CallbackURL:         cfg.CallbackURL(),
		PostInstallRedirect: cfg.PostInstallRedirect,
		ShopDomainSuffix:    cfg.ShopDomainSuffix,
		RequireCallbackHMAC: cfg.RequireCallbackHMAC,
		ExchangeTimeout:     cfg.ExchangeTimeout,
		Endpoint:            d.ProviderEndpoint,
	}, d.Store, d.States, log.Named("install"), m)

	disp := webhooks.NewDispatcher(log.Named("webhooks"))
	webhooks.RegisterDefaults(disp, d.Store, log.Named("webhooks"))
	for _, topic := range cfg.AckTopics {
		if !disp.Handles(topic) {
			disp.Register(topic, webhooks.AckHandler(log.Named("webhooks")))
		}
	}

	return &App{
		cfg:        cfg,
		log:        log,
		registry:   d.Registry,
		tokens:     tokens,
		install:    ctrl,
		dispatcher: disp,
		receiver:   webhooks.NewReceiver(cfg.APISecret, disp, d.Ledger, log.Named("webhooks"), m),
		gate:       middleware.NewGate(d.Store, tokens, cfg.AuthPath, log.Named("gate"), m),
		api:        api.New(d.Shopify, log.Named("api")),
		docs:       openapi.Default(openapi.Paths{Auth: cfg.AuthPath, Callback: cfg.CallbackPath, Webhook: cfg.WebhookPath}),
	}
}
