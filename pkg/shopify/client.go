// Package shopify is a thin Admin GraphQL client. It knows nothing about business data:
// callers pass the query and pull values out of the response with JMESPath.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	jmes "github.com/jmespath/go-jmespath"
	"go.uber.org/zap"

	"appgate/pkg/logger"
)

const maxResponseBytes = 4 << 20

var (
	ErrUnauthorized = errors.New("shopify: access token rejected")
	ErrThrottled    = errors.New("shopify: throttled")
)

// Session is what a call needs to act for a tenant.
type Session struct {
	Shop        string
	AccessToken string
}

// UpstreamError is a non-2xx answer from the Admin API.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("shopify: upstream status %d: %s", e.Status, e.Body)
}

// GraphQLError carries the "errors" array of an otherwise successful response.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "shopify: graphql: " + strings.Join(e.Messages, "; ")
}

type Client struct {
	http       *http.Client
	apiVersion string
	log        *zap.SugaredLogger
	// Endpoint builds the GraphQL URL for a shop; tests point it at httptest servers.
	Endpoint func(shop, apiVersion string) string
	// MaxThrottleRetries bounds retries of throttled requests. Throttled calls were not executed,
	// so retrying mutations is safe.
	MaxThrottleRetries uint64
	RetryInterval      time.Duration
}

func NewClient(apiVersion string, timeout time.Duration, log *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:               &http.Client{Timeout: timeout},
		apiVersion:         apiVersion,
		log:                logger.OrNop(log),
		Endpoint:           AdminGraphQLURL,
		MaxThrottleRetries: 2,
		RetryInterval:      500 * time.Millisecond,
	}
}

func AdminGraphQLURL(shop, apiVersion string) string {
	return "https://" + shop + "/admin/api/" + apiVersion + "/graphql.json"
}

// Query posts a GraphQL document and returns the "data" member.
func (c *Client) Query(ctx context.Context, s Session, query string, vars map[string]any) (json.RawMessage, error) {
	if s.Shop == "" || s.AccessToken == "" {
		return nil, ErrUnauthorized
	}
	payload, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	if err != nil {
		return nil, err
	}
	var data json.RawMessage
	op := func() error {
		d, err := c.do(ctx, s, payload)
		if errors.Is(err, ErrThrottled) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		data = d
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.RetryInterval), c.MaxThrottleRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, s Session, payload []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(s.Shop, c.apiVersion), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", s.AccessToken)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shopify: request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("shopify: read response: %w", err)
	}
	c.log.Debugw("admin graphql", "shop", s.Shop, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrThrottled
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &UpstreamError{Status: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	var env struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message    string `json:"message"`
			Extensions struct {
				Code string `json:"code"`
			} `json:"extensions"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("shopify: decode response: %w", err)
	}
	if len(env.Errors) > 0 {
		gqlErr := &GraphQLError{}
		for _, e := range env.Errors {
			if e.Extensions.Code == "THROTTLED" {
				return nil, ErrThrottled
			}
			gqlErr.Messages = append(gqlErr.Messages, e.Message)
		}
		return nil, gqlErr
	}
	return env.Data, nil
}

// Extract evaluates a JMESPath expression against a response document.
func Extract(data json.RawMessage, expr string) (any, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("shopify: decode data: %w", err)
	}
	v, err := jmes.Search(expr, doc)
	if err != nil {
		return nil, fmt.Errorf("shopify: jmespath %q: %w", expr, err)
	}
	return v, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
