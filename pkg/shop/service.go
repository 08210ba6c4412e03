package shop

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/beautymarket/backend/internal/apperror"
)

// Catalog implements shop lifecycle and service-catalog management.
type Catalog struct {
	store  *Store
	logger *slog.Logger
}

// NewCatalog creates a shop Catalog.
func NewCatalog(store *Store, logger *slog.Logger) *Catalog {
	return &Catalog{store: store, logger: logger}
}

// CreateShopInput is the body of a shop application.
type CreateShopInput struct {
	OwnerID        uuid.UUID
	Name           string
	Type           string
	CommissionRate int
	Capacity       int
}

// CreateShop registers a new shop, pending admin approval.
func (c *Catalog) CreateShop(ctx context.Context, in CreateShopInput) (*Shop, error) {
	sh := &Shop{
		OwnerID:        in.OwnerID,
		Name:           in.Name,
		Type:           in.Type,
		CommissionRate: in.CommissionRate,
		Capacity:       in.Capacity,
	}
	if err := c.store.Create(ctx, sh); err != nil {
		return nil, fmt.Errorf("creating shop: %w", err)
	}
	return sh, nil
}

// GetShop loads a shop.
func (c *Catalog) GetShop(ctx context.Context, id uuid.UUID) (*Shop, error) {
	return c.store.GetByID(ctx, id)
}

// ListShopsByOwner lists the shops owned by ownerID.
func (c *Catalog) ListShopsByOwner(ctx context.Context, ownerID uuid.UUID) ([]Shop, error) {
	return c.store.ListByOwner(ctx, ownerID)
}

// ApproveShop records the admin verification outcome. Applying the same
// decision twice is a no-op: idempotent on the shop's current verification
// status.
func (c *Catalog) ApproveShop(ctx context.Context, id uuid.UUID, approved bool) (*Shop, error) {
	sh, err := c.store.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindNotFound, "shop not found", err)
	}

	verification := VerificationRejected
	if approved {
		verification = VerificationVerified
	}
	if sh.Verification == verification {
		return sh, nil
	}

	if err := c.store.UpdateVerification(ctx, id, verification); err != nil {
		return nil, fmt.Errorf("updating shop verification: %w", err)
	}
	sh.Verification = verification

	if approved && sh.Status == StatusPending {
		if err := c.store.UpdateStatus(ctx, id, StatusActive); err != nil {
			return nil, fmt.Errorf("activating shop: %w", err)
		}
		sh.Status = StatusActive
	}

	return sh, nil
}

// Suspend marks a shop suspended, closing it to booking for everyone but
// platform admins.
func (c *Catalog) Suspend(ctx context.Context, id uuid.UUID) error {
	return c.store.UpdateStatus(ctx, id, StatusSuspended)
}

// Reinstate reactivates a previously suspended shop.
func (c *Catalog) Reinstate(ctx context.Context, id uuid.UUID) error {
	return c.store.UpdateStatus(ctx, id, StatusActive)
}

// AddServiceInput is the body of a service-catalog addition.
type AddServiceInput struct {
	ShopID          uuid.UUID
	Name            string
	PriceMin        int64
	PriceMax        int64
	DurationMinutes int
}

// AddService creates a new service in a shop's catalog.
func (c *Catalog) AddService(ctx context.Context, in AddServiceInput) (*Service, error) {
	sv := &Service{
		ShopID:          in.ShopID,
		Name:            in.Name,
		PriceMin:        in.PriceMin,
		PriceMax:        in.PriceMax,
		DurationMinutes: in.DurationMinutes,
		Available:       true,
	}
	if err := c.store.CreateService(ctx, sv); err != nil {
		return nil, fmt.Errorf("creating service: %w", err)
	}
	return sv, nil
}

// ListServices lists a shop's service catalog.
func (c *Catalog) ListServices(ctx context.Context, shopID uuid.UUID) ([]Service, error) {
	return c.store.ListServices(ctx, shopID)
}

// SetServiceAvailability toggles whether a service can be booked.
func (c *Catalog) SetServiceAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	return c.store.UpdateServiceAvailability(ctx, id, available)
}

// GetCapacity implements pkg/reservation's ShopCapacity interface.
func (c *Catalog) GetCapacity(ctx context.Context, shopID uuid.UUID) (int, bool, error) {
	return c.store.GetCapacity(ctx, shopID)
}
