package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides raw-SQL persistence for identity verifications.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert persists a new verification in status "ready".
func (s *Store) Insert(ctx context.Context, v *Verification) error {
	v.ID = uuid.New()
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now
	v.Status = StatusReady

	_, err := s.pool.Exec(ctx, `
		INSERT INTO identity_verifications (id, user_id, status, broker_token, min_age, carrier_only, title, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		v.ID, v.UserID, v.Status, v.BrokerToken, v.MinAge, v.CarrierOnly, v.Title, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting verification: %w", err)
	}
	return nil
}

// GetByID loads a verification by ID.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Verification, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, status, ci, di, name, birth_date, gender, operator, broker_token, min_age, carrier_only, title, created_at, updated_at
		FROM identity_verifications WHERE id = $1 AND deleted_at IS NULL`, id)

	var v Verification
	if err := row.Scan(&v.ID, &v.UserID, &v.Status, &v.CI, &v.DI, &v.Name, &v.BirthDate, &v.Gender, &v.Operator,
		&v.BrokerToken, &v.MinAge, &v.CarrierOnly, &v.Title, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, fmt.Errorf("loading verification %s: %w", id, err)
	}
	return &v, nil
}

// CIHolder reports the userID already holding a verified record for ci, if
// any, for the pre-check half of duplicate prevention.
func (s *Store) CIHolder(ctx context.Context, tx pgx.Tx, ci string) (*uuid.UUID, error) {
	var userID uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT user_id FROM identity_verifications
		WHERE ci = $1 AND status = $2 AND deleted_at IS NULL AND user_id IS NOT NULL
		LIMIT 1`, ci, StatusVerified).Scan(&userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("checking ci uniqueness: %w", err)
	}
	return &userID, nil
}

// MarkVerified attaches broker-reported fields and the owning user within
// tx, relying on a partial unique index on (ci) WHERE status='verified' AND
// deleted_at IS NULL as the authoritative guard against a race with
// CIHolder's pre-check.
func (s *Store) MarkVerified(ctx context.Context, tx pgx.Tx, id uuid.UUID, userID uuid.UUID, result BrokerResult) error {
	_, err := tx.Exec(ctx, `
		UPDATE identity_verifications
		SET status = $1, user_id = $2, ci = $3, di = $4, name = $5, birth_date = $6, gender = $7, operator = $8, updated_at = $9
		WHERE id = $10`,
		StatusVerified, userID, result.CI, result.DI, result.Name, result.BirthDate, result.Gender, result.Operator,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("marking verification verified: %w", err)
	}
	return nil
}

// MarkFailed records a failed broker outcome.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE identity_verifications SET status = $1, updated_at = $2 WHERE id = $3`,
		StatusFailed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("marking verification failed: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction, committing on success.
func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing verification: %w", err)
	}
	return nil
}
