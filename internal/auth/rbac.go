package auth

import (
	"net/http"

	"github.com/beautymarket/backend/internal/envelope"
)

// roleLevel maps roles to a numeric privilege level for hierarchical checks.
var roleLevel = map[string]int{
	RoleSuperAdmin:  60,
	RoleAdmin:       50,
	RoleShopOwner:   40,
	RoleShopManager: 30,
	RoleShopStaff:   20,
	RoleCustomer:    10,
}

// RequireAuth rejects requests that have no authenticated identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			envelope.WriteError(w, http.StatusUnauthorized, "auth_required", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns middleware that rejects requests whose identity does not
// hold one of the listed roles. Roles are checked by exact match.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil {
				envelope.WriteError(w, http.StatusUnauthorized, "auth_required", "authentication required")
				return
			}
			if _, ok := set[id.Role]; !ok {
				respondForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireMinRole returns middleware that rejects requests whose identity has a
// lower privilege level than minRole. RequireMinRole(RoleShopManager) permits
// shop_manager, shop_owner, admin, and super_admin.
func RequireMinRole(minRole string) func(http.Handler) http.Handler {
	minLevel := roleLevel[minRole]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil {
				envelope.WriteError(w, http.StatusUnauthorized, "auth_required", "authentication required")
				return
			}
			if roleLevel[id.Role] < minLevel {
				respondForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsAdmin reports whether role bypasses the Tenancy Gate's shop binding
// check (admin and super_admin see every shop).
func IsAdmin(role string) bool {
	return role == RoleAdmin || role == RoleSuperAdmin
}

func respondForbidden(w http.ResponseWriter, message string) {
	envelope.WriteError(w, http.StatusForbidden, "forbidden_cross_shop", message)
}
