package middleware

import (
	"net/http"

	authcore "github.com/MrEthical07/authcore"
)

// Route is the statically configured (resource, action) a protected route
// maps to. The pair is never derived from user input.
type Route struct {
	Resource string
	Action   string
}

// RouteTable maps "METHOD /path" keys to their required permission.
type RouteTable map[string]Route

// RequirePermission authorizes an already-authenticated request against a
// fixed (resource, action) pair. It must run after [RequireAuth]; a request
// without claims in context is rejected with 401, a policy deny with 403.
func RequirePermission(engine *authcore.Engine, resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !engine.CheckAccess(r.Context(), claims.Subject, claims.Domain, resource, action) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoute authorizes each request by looking up its "METHOD /path" in
// the table. Routes absent from the table are denied: protection is opt-in
// per route, never inferred.
func RequireRoute(engine *authcore.Engine, table RouteTable) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			route, ok := table[r.Method+" "+r.URL.Path]
			if !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			if !engine.CheckAccess(r.Context(), claims.Subject, claims.Domain, route.Resource, route.Action) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
