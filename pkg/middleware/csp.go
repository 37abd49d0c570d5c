package middleware

import "net/http"

// AdminOrigin is the admin surface that embeds the app.
const AdminOrigin = "https://admin.shopify.com"

// FrameAncestors sets a Content-Security-Policy frame-ancestors directive on every response.
// Framing is allowed for the shop named by the shop query parameter and the admin origin
// when normalize accepts it, and refused otherwise.
func FrameAncestors(normalize func(string) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			policy := "frame-ancestors 'none';"
			if raw := r.URL.Query().Get("shop"); raw != "" && normalize != nil {
				if shop, err := normalize(raw); err == nil {
					policy = "frame-ancestors https://" + shop + " " + AdminOrigin + ";"
				}
			}
			w.Header().Set("Content-Security-Policy", policy)
			next.ServeHTTP(w, r)
		})
	}
}
