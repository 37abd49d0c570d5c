// Package session mints and verifies the HS256 tokens that prove a request acts for a shop.
//
// Two token shapes are accepted: the App-Bridge session token the embedded frontend sends as a
// bearer (shop in the "dest" claim), and the cookie token minted here after an install (shop in "sub").
// Both are signed with the app secret and must carry the API key as audience.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const CookieName = "appgate_session"

var (
	ErrNotConfigured = errors.New("session: api key and secret are required")
	ErrInvalidToken  = errors.New("session: invalid token")
	ErrNoShop        = errors.New("session: token does not name a shop")
)

type Config struct {
	APIKey    string
	APISecret string
	TTL       time.Duration
	Skew      time.Duration
	Secure    bool // cookie Secure + SameSite=None (embedded iframes need both)
	Now       func() time.Time
}

type Tokens struct {
	cfg Config
}

func New(cfg Config) *Tokens {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Tokens{cfg: cfg}
}

func (t *Tokens) configured() bool {
	return t != nil && t.cfg.APIKey != "" && t.cfg.APISecret != ""
}

// Mint signs a cookie token for shop.
func (t *Tokens) Mint(shop string) (string, error) {
	if !t.configured() {
		return "", ErrNotConfigured
	}
	now := t.cfg.Now()
	tok, err := jwt.NewBuilder().
		Subject(shop).
		Audience([]string{t.cfg.APIKey}).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(t.cfg.TTL)).
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(t.cfg.APISecret)))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// Verify validates signature, audience and lifetime, then returns the shop the token names.
func (t *Tokens) Verify(raw string) (string, error) {
	if !t.configured() {
		return "", ErrNotConfigured
	}
	tok, err := jwt.Parse([]byte(strings.TrimSpace(raw)),
		jwt.WithKey(jwa.HS256, []byte(t.cfg.APISecret)),
		jwt.WithValidate(true),
		jwt.WithAudience(t.cfg.APIKey),
		jwt.WithAcceptableSkew(t.cfg.Skew),
		jwt.WithClock(jwt.ClockFunc(t.cfg.Now)),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if dest, ok := tok.Get("dest"); ok {
		shop := hostOf(fmt.Sprint(dest))
		if shop == "" {
			return "", ErrNoShop
		}
		// App-Bridge tokens are issued by https://{shop}/admin.
		if iss := tok.Issuer(); iss != "" && hostOf(iss) != shop {
			return "", fmt.Errorf("%w: issuer does not match destination", ErrInvalidToken)
		}
		return shop, nil
	}
	if sub := strings.TrimSpace(tok.Subject()); sub != "" {
		return sub, nil
	}
	return "", ErrNoShop
}

// SetCookie attaches a freshly minted token for shop to the response.
func (t *Tokens) SetCookie(w http.ResponseWriter, shop string) error {
	signed, err := t.Mint(shop)
	if err != nil {
		return err
	}
	c := &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Expires:  t.cfg.Now().Add(t.cfg.TTL),
		SameSite: http.SameSiteLaxMode,
	}
	if t.cfg.Secure {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, c)
	return nil
}

func hostOf(v string) string {
	v = strings.TrimSpace(v)
	if !strings.Contains(v, "://") {
		return strings.ToLower(strings.TrimSuffix(v, "/"))
	}
	u, err := url.Parse(v)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
