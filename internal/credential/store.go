package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides raw-SQL persistence for principals and social identities.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateWithPassword inserts a new principal with a bcrypt password hash
// already computed by the caller.
func (s *Store) CreateWithPassword(ctx context.Context, email, passwordHash, role string) (*Principal, error) {
	p := &Principal{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: &passwordHash,
		Role:         role,
		Status:       StatusActive,
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO principals (id, email, password_hash, role, shop_id, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.Email, p.PasswordHash, p.Role, pgUUID(p.ShopID), p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting principal: %w", err)
	}
	return p, nil
}

// FindByEmail loads a principal by email, for login.
func (s *Store) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	return s.scanOne(ctx, `
		SELECT id, email, password_hash, role, shop_id, status, created_at, updated_at
		FROM principals WHERE email = $1`, email)
}

// FindByID loads a principal by ID.
func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*Principal, error) {
	return s.scanOne(ctx, `
		SELECT id, email, password_hash, role, shop_id, status, created_at, updated_at
		FROM principals WHERE id = $1`, id)
}

func (s *Store) scanOne(ctx context.Context, sql string, arg any) (*Principal, error) {
	var p Principal
	var shopID pgtype.UUID
	row := s.pool.QueryRow(ctx, sql, arg)
	if err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Role, &shopID, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if shopID.Valid {
		id := uuid.UUID(shopID.Bytes)
		p.ShopID = &id
	}
	return &p, nil
}

// FindOrCreateSocialIdentity looks up a (provider, providerUserID) pair. If
// it doesn't exist, it creates a new principal with the given email and role
// and links it; returns the backing Principal either way. An empty email is
// not rejected.
func (s *Store) FindOrCreateSocialIdentity(ctx context.Context, provider, providerUserID, email, role string) (*Principal, error) {
	var userID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT user_id FROM social_identities WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID).Scan(&userID)
	if err == nil {
		return s.FindByID(ctx, userID)
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("looking up social identity: %w", err)
	}

	p := &Principal{ID: uuid.New(), Email: email, Role: role, Status: StatusActive}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO principals (id, email, password_hash, role, shop_id, status, created_at, updated_at)
		VALUES ($1,$2,NULL,$3,NULL,$4,$5,$6)`,
		p.ID, p.Email, p.Role, p.Status, p.CreatedAt, p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("inserting principal for social identity: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO social_identities (provider, provider_user_id, user_id, created_at)
		VALUES ($1,$2,$3,$4)`,
		provider, providerUserID, p.ID, now); err != nil {
		return nil, fmt.Errorf("linking social identity: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing social identity creation: %w", err)
	}
	return p, nil
}

// UpdatePassword replaces a principal's password hash.
func (s *Store) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := s.pool.Exec(ctx, `UPDATE principals SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return nil
}

func pgUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}
