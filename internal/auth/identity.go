// Package auth implements the Principal & Tenancy Resolver (C2/C3): token
// issuance/validation, password hashing, and the authentication middleware
// that re-hydrates a live Principal on every request.
package auth

import (
	"context"

	"github.com/google/uuid"
)

// Roles supported by the RBAC system, in descending privilege order.
const (
	RoleSuperAdmin  = "super_admin"
	RoleAdmin       = "admin"
	RoleShopOwner   = "shop_owner"
	RoleShopManager = "shop_manager"
	RoleShopStaff   = "shop_staff"
	RoleCustomer    = "customer"
)

// ValidRoles lists all known roles.
var ValidRoles = []string{RoleSuperAdmin, RoleAdmin, RoleShopOwner, RoleShopManager, RoleShopStaff, RoleCustomer}

// IsShopRole reports whether role carries a non-null shopId binding.
func IsShopRole(role string) bool {
	switch role {
	case RoleShopOwner, RoleShopManager, RoleShopStaff:
		return true
	default:
		return false
	}
}

// IsValidRole reports whether role is a recognised RBAC role.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Identity is the authenticated Principal attached to the request context by
// the C3 middleware: {id, role, shopId, status}.
type Identity struct {
	PrincipalID uuid.UUID
	Email       string
	Role        string
	ShopID      *uuid.UUID // non-nil iff Role is a shop_* role
	Status      string     // active | suspended | pending
}

type ctxKey string

const identityKey ctxKey = "auth_identity"

// NewContext stores the identity in the context.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the identity from the context. Returns nil if unset.
func FromContext(ctx context.Context) *Identity {
	v, _ := ctx.Value(identityKey).(*Identity)
	return v
}
