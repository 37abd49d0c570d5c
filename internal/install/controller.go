// Package install runs the OAuth install handshake: begin redirects the shop to the provider,
// complete authenticates the callback, exchanges the code and persists the tenant.
package install

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"appgate/pkg/logger"
	"appgate/pkg/metrics"
	"appgate/pkg/tenants"
)

type Options struct {
	APIKey              string
	APISecret           string
	Scopes              []string
	CallbackURL         string
	PostInstallRedirect string
	ShopDomainSuffix    string
	RequireCallbackHMAC bool
	ExchangeTimeout     time.Duration
	RetryInterval       time.Duration
	// Endpoint resolves the provider endpoints for a shop. Defaults to https://{shop}/admin/oauth/*.
	Endpoint   func(shop string) oauth2.Endpoint
	HTTPClient *http.Client
}

// CallbackParams is what the provider sends back to the callback URL.
type CallbackParams struct {
	Shop  string
	Code  string
	State string
	// Query is the full callback query, needed for signature verification.
	Query url.Values
}

type Controller struct {
	opts    Options
	store   tenants.Store
	states  StateStore
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewController(opts Options, store tenants.Store, states StateStore, log *zap.SugaredLogger, m *metrics.Metrics) *Controller {
	if opts.ExchangeTimeout <= 0 {
		opts.ExchangeTimeout = 5 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 200 * time.Millisecond
	}
	if opts.Endpoint == nil {
		opts.Endpoint = ShopEndpoint
	}
	return &Controller{opts: opts, store: store, states: states, log: logger.OrNop(log), metrics: metrics.OrDiscard(m)}
}

// ShopEndpoint is the provider's per-shop authorize and token URLs.
func ShopEndpoint(shop string) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   "https://" + shop + "/admin/oauth/authorize",
		TokenURL:  "https://" + shop + "/admin/oauth/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func (c *Controller) oauthConfig(shop string) *oauth2.Config {
	ep := c.opts.Endpoint(shop)
	ep.AuthStyle = oauth2.AuthStyleInParams
	cfg := &oauth2.Config{
		ClientID:     c.opts.APIKey,
		ClientSecret: c.opts.APISecret,
		Endpoint:     ep,
		RedirectURL:  c.opts.CallbackURL,
	}
	// The provider wants one comma separated scope parameter, not the space separated OAuth form.
	if len(c.opts.Scopes) > 0 {
		cfg.Scopes = []string{strings.Join(c.opts.Scopes, ",")}
	}
	return cfg
}

// Begin starts an install for rawShop and returns the provider authorize URL to redirect to.
func (c *Controller) Begin(ctx context.Context, rawShop string) (string, error) {
	shop, err := NormalizeShop(rawShop, c.opts.ShopDomainSuffix)
	if err != nil {
		return "", err
	}
	state, err := generateState()
	if err != nil {
		return "", err
	}
	if err := c.states.Save(ctx, StateRecord{State: state, Shop: shop}); err != nil {
		return "", err
	}
	c.log.Infow("install begin", "shop", shop)
	return c.oauthConfig(shop).AuthCodeURL(state), nil
}

// Complete authenticates the callback, exchanges the code and upserts the tenant. On any
// error no tenant record has been written.
func (c *Controller) Complete(ctx context.Context, p CallbackParams) (string, tenants.Tenant, error) {
	redirect, t, err := c.complete(ctx, p)
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidShop), errors.Is(err, ErrMissingCode):
		result = "bad_request"
	case errors.Is(err, ErrInvalidCallbackSignature):
		result = "invalid_signature"
	case errors.Is(err, ErrInvalidState):
		result = "invalid_state"
	case errors.Is(err, ErrExchangeTransient), errors.Is(err, ErrExchangeRejected):
		result = "exchange_failed"
	case errors.Is(err, ErrPersist):
		result = "persist_failed"
	default:
		result = "error"
	}
	c.metrics.Installs.WithLabelValues(result).Inc()
	if err != nil {
		c.log.Warnw("install callback failed", "shop", p.Shop, "result", result, "err", err)
	}
	return redirect, t, err
}

func (c *Controller) complete(ctx context.Context, p CallbackParams) (string, tenants.Tenant, error) {
	shop, err := NormalizeShop(p.Shop, c.opts.ShopDomainSuffix)
	if err != nil {
		return "", tenants.Tenant{}, err
	}

	// 1. authenticate
	if p.Query.Get("hmac") != "" || c.opts.RequireCallbackHMAC {
		if !VerifyCallbackQuery(p.Query, c.opts.APISecret) {
			return "", tenants.Tenant{}, ErrInvalidCallbackSignature
		}
	}
	rec, err := c.states.Consume(ctx, p.State)
	if err != nil {
		return "", tenants.Tenant{}, err
	}
	if rec.Shop != shop {
		return "", tenants.Tenant{}, fmt.Errorf("%w: issued for another shop", ErrInvalidState)
	}
	if p.Code == "" {
		return "", tenants.Tenant{}, ErrMissingCode
	}

	// 2. exchange
	tok, err := c.exchange(ctx, shop, p.Code)
	if err != nil {
		return "", tenants.Tenant{}, err
	}
	scope := c.opts.Scopes
	if granted, _ := tok.Extra("scope").(string); granted != "" {
		scope = tenants.ParseScope(granted)
	}

	// 3. persist
	t, err := c.store.Upsert(ctx, shop, tok.AccessToken, scope)
	if err != nil {
		return "", tenants.Tenant{}, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	c.log.Infow("install complete", "shop", shop, "scope", tenants.JoinScope(t.Scope))

	// 4. respond
	return c.postInstallURL(shop), t, nil
}

// exchange trades code for an access token. Each attempt has its own deadline and a transient
// failure is retried exactly once.
func (c *Controller) exchange(ctx context.Context, shop, code string) (*oauth2.Token, error) {
	cfg := c.oauthConfig(shop)
	var tok *oauth2.Token
	attempt := 0
	op := func() error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, c.opts.ExchangeTimeout)
		defer cancel()
		if c.opts.HTTPClient != nil {
			actx = context.WithValue(actx, oauth2.HTTPClient, c.opts.HTTPClient)
		}
		t, err := cfg.Exchange(actx, code)
		if err == nil {
			tok = t
			return nil
		}
		if ctx.Err() == nil && transient(err) {
			c.log.Warnw("token exchange attempt failed", "shop", shop, "attempt", attempt, "err", err)
			return fmt.Errorf("%w: %v", ErrExchangeTransient, err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrExchangeTransient, ctx.Err()))
		}
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrExchangeRejected, err))
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.opts.RetryInterval), 1), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrExchangeRejected)
	}
	return tok, nil
}

func transient(err error) bool {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return re.Response != nil && re.Response.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func (c *Controller) postInstallURL(shop string) string {
	u, err := url.Parse(c.opts.PostInstallRedirect)
	if err != nil || c.opts.PostInstallRedirect == "" {
		return "/?shop=" + url.QueryEscape(shop)
	}
	q := u.Query()
	q.Set("shop", shop)
	u.RawQuery = q.Encode()
	return u.String()
}
