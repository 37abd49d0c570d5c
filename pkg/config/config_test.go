package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_URL", "https://app.example.com/")
	t.Setenv("SCOPES", "read_products, write_products,")
	t.Setenv("EXCHANGE_TIMEOUT_SEC", "3")

	cfg := Load()
	require.Equal(t, "https://app.example.com", cfg.AppURL)
	require.Equal(t, []string{"read_products", "write_products"}, cfg.Scopes)
	require.Equal(t, 3*time.Second, cfg.ExchangeTimeout)
	require.Equal(t, "https://app.example.com/api/auth/callback", cfg.CallbackURL())
	require.Equal(t, "https://app.example.com/", cfg.PostInstallRedirect)
	require.True(t, cfg.RequireCallbackHMAC)
}

func TestApplyFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scopes: [read_products, write_products]
post_install_redirect: https://partner.example.com
api_version: "2025-01"
ack_topics: [orders/create]
`), 0o600))

	cfg := Config{Scopes: []string{"read_products"}, APIVersion: "2024-07", ShopDomainSuffix: ".myshopify.com"}
	require.NoError(t, cfg.ApplyFile(path))
	require.Equal(t, []string{"read_products", "write_products"}, cfg.Scopes)
	require.Equal(t, "https://partner.example.com", cfg.PostInstallRedirect)
	require.Equal(t, "2025-01", cfg.APIVersion)
	require.Equal(t, ".myshopify.com", cfg.ShopDomainSuffix)
	require.Equal(t, []string{"orders/create"}, cfg.AckTopics)
}

func TestApplyFileMissing(t *testing.T) {
	cfg := Config{}
	require.Error(t, cfg.ApplyFile(filepath.Join(t.TempDir(), "nope.yaml")))
}
