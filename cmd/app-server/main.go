// cmd/app-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"appgate/internal/install"
	"appgate/internal/server"
	"appgate/internal/webhooks"
	"appgate/pkg/config"
	"appgate/pkg/db"
	"appgate/pkg/logger"
	"appgate/pkg/shopify"
	"appgate/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var store tenants.Store
	if pool != nil {
		if err := tenants.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		store = tenants.NewPostgresStore(pool, log.Named("tenants"), tenants.NewSealer(cfg.EncryptionKey))
	} else {
		store = tenants.NewMemoryStore(log.Named("tenants"))
	}
	if n, err := tenants.SeedFromEnv(context.Background(), store, os.Getenv("TENANT_SEED_JSON")); err != nil {
		log.Warnw("seed", "err", err)
	} else if n > 0 {
		log.Infow("seeded tenants", "count", n)
	}

	deps := server.Deps{
		Store:   store,
		Shopify: shopify.NewClient(cfg.APIVersion, 15*time.Second, log.Named("shopify")),
	}
	if rdb != nil {
		deps.States = install.NewRedisStateStore(rdb, cfg.StateTTL)
		deps.Ledger = webhooks.NewRedisLedger(rdb, cfg.DeliveryTTL)
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps.Registry = reg

	app := server.New(cfg, log, deps)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: app.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("app-server listening", "addr", cfg.HTTPAddr, "app_url", cfg.AppURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	if rdb != nil {
		_ = rdb.Close()
	}
	if pool != nil {
		pool.Close()
	}
	fmt.Println("app-server stopped")
}
