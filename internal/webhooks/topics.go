package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"appgate/pkg/logger"
	"appgate/pkg/tenants"
)

const (
	TopicAppUninstalled       = "app/uninstalled"
	TopicAppScopesUpdate      = "app/scopes_update"
	TopicCustomersDataRequest = "customers/data_request"
	TopicCustomersRedact      = "customers/redact"
	TopicShopRedact           = "shop/redact"
)

// RegisterDefaults installs the lifecycle and privacy handlers every app needs.
func RegisterDefaults(d *Dispatcher, store tenants.Store, log *zap.SugaredLogger) {
	log = logger.OrNop(log)
	d.Register(TopicAppUninstalled, UninstallHandler(store, log))
	d.Register(TopicAppScopesUpdate, ScopesUpdateHandler(store, log))
	for _, topic := range []string{TopicCustomersDataRequest, TopicCustomersRedact, TopicShopRedact} {
		d.Register(topic, AckHandler(log))
	}
}

type shopPayload struct {
	MyshopifyDomain string `json:"myshopify_domain"`
	Domain          string `json:"domain"`
}

// payloadShop returns the shop the signed body names, or "" when it names none.
// The shop-domain header is not covered by the signature, the body is.
func payloadShop(raw []byte) string {
	var p shopPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	if p.MyshopifyDomain != "" {
		return strings.ToLower(strings.TrimSpace(p.MyshopifyDomain))
	}
	return strings.ToLower(strings.TrimSpace(p.Domain))
}

// UninstallHandler marks the tenant uninstalled. Repeats and unknown tenants are no-ops, and
// a body naming a different shop than the header is ignored.
func UninstallHandler(store tenants.Store, log *zap.SugaredLogger) Handler {
	return HandlerFunc(func(ctx context.Context, ev Event) error {
		if ev.TenantID == "" {
			return errors.New("webhooks: uninstall without shop domain")
		}
		if shop := payloadShop(ev.Payload); shop != "" && shop != ev.TenantID {
			log.Warnw("uninstall payload names another shop; ignored", "shop", ev.TenantID, "payload_shop", shop, "delivery", ev.DeliveryID)
			return nil
		}
		changed, err := store.MarkUninstalled(ctx, ev.TenantID)
		switch {
		case errors.Is(err, tenants.ErrNotFound):
			log.Infow("uninstall for unknown shop ignored", "shop", ev.TenantID)
			return nil
		case err != nil:
			return fmt.Errorf("mark uninstalled: %w", err)
		}
		log.Infow("app uninstalled", "shop", ev.TenantID, "changed", changed)
		return nil
	})
}

type scopesUpdatePayload struct {
	Previous json.RawMessage `json:"previous"`
	Current  json.RawMessage `json:"current"`
}

// ScopesUpdateHandler rewrites the granted scope from the payload's "current" list.
func ScopesUpdateHandler(store tenants.Store, log *zap.SugaredLogger) Handler {
	return HandlerFunc(func(ctx context.Context, ev Event) error {
		var p scopesUpdatePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("scopes_update payload: %w", err)
		}
		scope, err := decodeScope(p.Current)
		if err != nil {
			return fmt.Errorf("scopes_update current: %w", err)
		}
		if err := store.UpdateScope(ctx, ev.TenantID, scope); err != nil {
			if errors.Is(err, tenants.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("update scope: %w", err)
		}
		log.Infow("scopes updated", "shop", ev.TenantID, "scope", tenants.JoinScope(tenants.NormalizeScope(scope)))
		return nil
	})
}

// decodeScope accepts a JSON list or a comma separated string.
func decodeScope(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, errors.New("missing")
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return tenants.NormalizeScope(list), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return tenants.ParseScope(s), nil
}

// AckHandler logs and acknowledges a delivery. Privacy topics use it: no customer data is
// stored beyond the tenant credential, so there is nothing to export or erase.
func AckHandler(log *zap.SugaredLogger) Handler {
	return HandlerFunc(func(_ context.Context, ev Event) error {
		log.Infow("webhook acknowledged", "topic", ev.Topic, "shop", ev.TenantID, "delivery", ev.DeliveryID)
		return nil
	})
}
