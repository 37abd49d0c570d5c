// pkg/middleware/tenant.go
package middleware

import (
	"context"

	"appgate/pkg/tenants"
)

// TenantContext is the request-scoped session view over an active tenant.
// Protected handlers and downstream clients read it; nothing writes it back.
type TenantContext struct {
	TenantID    string
	AccessToken string
	Scope       []string
}

type ctxTenantKey struct{}

func withTenant(ctx context.Context, tc TenantContext) context.Context {
	return context.WithValue(ctx, ctxTenantKey{}, tc)
}

// TenantFrom returns the context attached by the auth gate; ok is false on unprotected routes.
func TenantFrom(ctx context.Context) (TenantContext, bool) {
	tc, ok := ctx.Value(ctxTenantKey{}).(TenantContext)
	return tc, ok
}

func tenantContextOf(t tenants.Tenant) TenantContext {
	return TenantContext{TenantID: t.ID, AccessToken: t.AccessToken, Scope: append([]string(nil), t.Scope...)}
}
