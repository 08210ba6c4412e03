// Package credential implements the Credential Store (C1): password and
// social-identity storage backing C2's token issuance.
package credential

import (
	"time"

	"github.com/google/uuid"
)

// Principal status values.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusPending   = "pending"
)

// Principal is the authenticatable account row. PasswordHash is nil for
// accounts created entirely through a social identity.
type Principal struct {
	ID           uuid.UUID
	Email        string
	PasswordHash *string
	Role         string
	ShopID       *uuid.UUID
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SocialIdentity links an external OAuth/social provider account to a
// Principal. Unique on (Provider, ProviderUserID).
type SocialIdentity struct {
	Provider       string
	ProviderUserID string
	UserID         uuid.UUID
	CreatedAt      time.Time
}
