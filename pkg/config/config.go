// pkg/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Public URL of this app; install callbacks are built from it.
	AppURL string

	// Provider app credentials
	APIKey    string
	APISecret string
	Scopes    []string

	// Where the client lands after a successful install (shop is appended as ?shop=).
	PostInstallRedirect string

	AuthPath     string
	CallbackPath string
	WebhookPath  string

	ShopDomainSuffix    string
	APIVersion          string
	RequireCallbackHMAC bool

	ExchangeTimeout time.Duration
	StateTTL        time.Duration
	SessionTTL      time.Duration
	SessionSkew     time.Duration
	DeliveryTTL     time.Duration

	// Origins allowed to call /api cross-origin; empty disables CORS headers.
	CORSOrigins []string
	// Extra webhook topics acknowledged without side effects.
	AckTopics []string

	// Redis & Postgres
	RedisURL      string
	DatabaseURL   string
	EncryptionKey string
}

// fileOverlay is the optional YAML document named by APP_CONFIG_FILE.
type fileOverlay struct {
	Scopes              []string `yaml:"scopes"`
	PostInstallRedirect string   `yaml:"post_install_redirect"`
	APIVersion          string   `yaml:"api_version"`
	ShopDomainSuffix    string   `yaml:"shop_domain_suffix"`
	AckTopics           []string `yaml:"ack_topics"`
}

func Load() Config {
	_ = godotenv.Load()
	appURL := strings.TrimRight(env("APP_URL", "http://localhost:5000"), "/")
	cfg := Config{
		Env:                 env("APPGATE_ENV", "dev"),
		HTTPAddr:            env("APPGATE_HTTP_ADDR", ":"+env("PORT", "5000")),
		AppURL:              appURL,
		APIKey:              env("SHOPIFY_API_KEY", ""),
		APISecret:           env("SHOPIFY_API_SECRET", ""),
		Scopes:              splitList(env("SCOPES", "read_products")),
		PostInstallRedirect: env("POST_INSTALL_REDIRECT_URL", appURL+"/"),
		AuthPath:            env("AUTH_PATH", "/api/auth"),
		CallbackPath:        env("AUTH_CALLBACK_PATH", "/api/auth/callback"),
		WebhookPath:         env("WEBHOOK_PATH", "/api/webhooks"),
		ShopDomainSuffix:    env("SHOP_DOMAIN_SUFFIX", ".myshopify.com"),
		APIVersion:          env("SHOPIFY_API_VERSION", "2024-07"),
		RequireCallbackHMAC: envBool("REQUIRE_CALLBACK_HMAC", true),
		ExchangeTimeout:     envDur("EXCHANGE_TIMEOUT_SEC", 5) * time.Second,
		StateTTL:            envDur("OAUTH_STATE_TTL_SEC", 600) * time.Second,
		SessionTTL:          envDur("SESSION_TTL_SEC", 86400) * time.Second,
		SessionSkew:         envDur("SESSION_CLOCK_SKEW_SEC", 10) * time.Second,
		DeliveryTTL:         envDur("WEBHOOK_DELIVERY_TTL_SEC", 86400) * time.Second,
		CORSOrigins:         splitList(env("CORS_ORIGINS", "")),
		AckTopics:           splitList(env("WEBHOOK_ACK_TOPICS", "")),
		RedisURL:            env("REDIS_URL", ""),
		DatabaseURL:         env("DATABASE_URL", ""),
		EncryptionKey:       env("ENCRYPTION_KEY", ""),
	}
	if path := os.Getenv("APP_CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			log.Printf("[WARN] config file %s ignored: %v", path, err)
		}
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set; using in-memory tenant store for dev")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		log.Println("[WARN] SHOPIFY_API_KEY/SHOPIFY_API_SECRET not set; installs and webhooks will be rejected")
	}
	return cfg
}

// ApplyFile overlays non-empty values from a YAML file onto cfg.
func (c *Config) ApplyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f fileOverlay
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("yaml parse: %w", err)
	}
	if len(f.Scopes) > 0 {
		c.Scopes = splitList(strings.Join(f.Scopes, ","))
	}
	if f.PostInstallRedirect != "" {
		c.PostInstallRedirect = f.PostInstallRedirect
	}
	if f.APIVersion != "" {
		c.APIVersion = f.APIVersion
	}
	if f.ShopDomainSuffix != "" {
		c.ShopDomainSuffix = f.ShopDomainSuffix
	}
	if len(f.AckTopics) > 0 {
		c.AckTopics = append(c.AckTopics, f.AckTopics...)
	}
	return nil
}

// CallbackURL is the redirect_uri registered with the provider.
func (c Config) CallbackURL() string { return c.AppURL + c.CallbackPath }

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, _ := strconv.ParseBool(v)
		return b
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
