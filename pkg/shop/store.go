package shop

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides raw-SQL persistence for shops and their service catalogs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts a new shop in status "pending", verification "pending".
func (s *Store) Create(ctx context.Context, sh *Shop) error {
	sh.ID = uuid.New()
	now := time.Now().UTC()
	sh.CreatedAt, sh.UpdatedAt = now, now
	sh.Status = StatusPending
	sh.Verification = VerificationPending
	if sh.Capacity <= 0 {
		sh.Capacity = 1
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO shops (id, owner_id, name, type, status, verification, commission_rate, capacity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		sh.ID, sh.OwnerID, sh.Name, sh.Type, sh.Status, sh.Verification, sh.CommissionRate, sh.Capacity, sh.CreatedAt, sh.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting shop: %w", err)
	}
	return nil
}

// GetByID loads a shop by ID, excluding soft-deleted rows.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Shop, error) {
	var sh Shop
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, type, status, verification, commission_rate, capacity, created_at, updated_at
		FROM shops WHERE id = $1 AND deleted_at IS NULL`, id).
		Scan(&sh.ID, &sh.OwnerID, &sh.Name, &sh.Type, &sh.Status, &sh.Verification, &sh.CommissionRate, &sh.Capacity, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("loading shop %s: %w", id, err)
	}
	return &sh, nil
}

// UpdateStatus sets a shop's status (approve/suspend/reinstate/delete).
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE shops SET status = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating shop status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateVerification sets a shop's verification outcome.
func (s *Store) UpdateVerification(ctx context.Context, id uuid.UUID, verification string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE shops SET verification = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`,
		verification, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating shop verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListByOwner lists all non-deleted shops owned by ownerID.
func (s *Store) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Shop, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, type, status, verification, commission_rate, capacity, created_at, updated_at
		FROM shops WHERE owner_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing shops by owner: %w", err)
	}
	defer rows.Close()

	var out []Shop
	for rows.Next() {
		var sh Shop
		if err := rows.Scan(&sh.ID, &sh.OwnerID, &sh.Name, &sh.Type, &sh.Status, &sh.Verification, &sh.CommissionRate, &sh.Capacity, &sh.CreatedAt, &sh.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning shop: %w", err)
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// --- Service catalog ---

// CreateService inserts a new service for a shop.
func (s *Store) CreateService(ctx context.Context, sv *Service) error {
	sv.ID = uuid.New()
	now := time.Now().UTC()
	sv.CreatedAt, sv.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO services (id, shop_id, name, price_min, price_max, duration_minutes, available, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sv.ID, sv.ShopID, sv.Name, sv.PriceMin, sv.PriceMax, sv.DurationMinutes, sv.Available, sv.CreatedAt, sv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting service: %w", err)
	}
	return nil
}

// ListServices lists all non-deleted services for a shop.
func (s *Store) ListServices(ctx context.Context, shopID uuid.UUID) ([]Service, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, shop_id, name, price_min, price_max, duration_minutes, available, created_at, updated_at
		FROM services WHERE shop_id = $1 AND deleted_at IS NULL ORDER BY created_at`, shopID)
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var sv Service
		if err := rows.Scan(&sv.ID, &sv.ShopID, &sv.Name, &sv.PriceMin, &sv.PriceMax, &sv.DurationMinutes, &sv.Available, &sv.CreatedAt, &sv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning service: %w", err)
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

// UpdateServiceAvailability toggles whether a service can be booked.
func (s *Store) UpdateServiceAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE services SET available = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`,
		available, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating service availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetCapacity returns the shop's configured concurrent-slot capacity and
// whether it is currently bookable.
func (s *Store) GetCapacity(ctx context.Context, shopID uuid.UUID) (int, bool, error) {
	var capacity int
	var status, verification string
	err := s.pool.QueryRow(ctx, `
		SELECT capacity, status, verification FROM shops WHERE id = $1 AND deleted_at IS NULL`, shopID).
		Scan(&capacity, &status, &verification)
	if err != nil {
		return 0, false, fmt.Errorf("loading shop capacity %s: %w", shopID, err)
	}
	return capacity, status == StatusActive && verification == VerificationVerified, nil
}
