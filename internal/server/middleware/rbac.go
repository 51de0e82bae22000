package middleware

import (
	"net/http"

	"github.com/veritrail/veritrail/internal/domain"
)

// RequireRole returns middleware that checks whether the authenticated
// principal holds at least one of the allowed roles. It must be chained
// after Auth. Fine-grained per-operation checks still happen in the policy
// engine; this is a coarse route-level gate.
//
// Returns 401 when no principal is in context and 403 when the role set
// does not intersect the allowed roles.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, `{"title":"Unauthorized","status":401,"detail":"authentication required"}`, http.StatusUnauthorized)
				return
			}

			if !p.HasAnyRole(roles...) {
				http.Error(w, `{"title":"Forbidden","status":403,"detail":"insufficient permissions"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is a convenience wrapper for RequireRole(domain.RoleAdmin).
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(domain.RoleAdmin)
}
