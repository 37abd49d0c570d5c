// pkg/middleware/scope.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"appgate/pkg/problems"
	"appgate/pkg/tenants"
)

// HasScope reports whether the tenant in ctx was granted every scope listed.
func HasScope(ctx context.Context, required ...string) bool {
	tc, ok := TenantFrom(ctx)
	if !ok {
		return false
	}
	return tenants.Tenant{Scope: tc.Scope}.HasScope(required...)
}

// RequireScope must sit behind the auth gate.
func RequireScope(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasScope(r.Context(), required...) {
				problems.Write(w, http.StatusForbidden, "insufficient-scope", "Forbidden", "requires scope "+strings.Join(required, ","))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
