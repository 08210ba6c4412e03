// Package shop implements the Shop and Service catalog: shop lifecycle
// (pending/active/suspended/deleted), verification status, and the service
// menu each shop exposes for booking.
package shop

import (
	"time"

	"github.com/google/uuid"
)

// Shop status values.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusDeleted   = "deleted"
)

// Shop verification values.
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// Shop is the storefront aggregate, exclusively owned by its owner principal.
type Shop struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	Name           string
	Type           string
	Status         string
	Verification   string
	CommissionRate int
	Capacity       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Bookable reports whether the shop can accept reservations: active status
// and verified identity, per spec.
func (s Shop) Bookable() bool {
	return s.Status == StatusActive && s.Verification == VerificationVerified
}

// Service is a bookable offering belonging to exactly one shop.
type Service struct {
	ID              uuid.UUID
	ShopID          uuid.UUID
	Name            string
	PriceMin        int64
	PriceMax        int64
	DurationMinutes int
	Available       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
