package tenants

import (
	"context"
)

// Store is the only owner of durable tenant records. Upsert and MarkUninstalled are the
// sole mutation paths and must be safe for concurrent use on the same tenant.
type Store interface {
	// Upsert inserts or overwrites the record for tenantID and (re)activates it.
	Upsert(ctx context.Context, tenantID, accessToken string, scope []string) (Tenant, error)
	// Get returns ErrNotFound for unknown tenants. Uninstalled tenants are still returned.
	Get(ctx context.Context, tenantID string) (Tenant, error)
	// MarkUninstalled reports changed=false when the tenant was already uninstalled.
	MarkUninstalled(ctx context.Context, tenantID string) (changed bool, err error)
	// UpdateScope rewrites the scope of an active tenant; it is a no-op for uninstalled ones.
	UpdateScope(ctx context.Context, tenantID string, scope []string) error
}
