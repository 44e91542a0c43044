package middleware

import "net/http"

// RequireScope rejects requests whose guard claims do not carry role. It
// must run after [Guard]. onError may be nil for a plain 403.
func RequireScope(role string, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || !claims.HasScope(role) {
				if onError != nil {
					onError(w, r, ErrInsufficientScope)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
