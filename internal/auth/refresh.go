package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beautymarket/backend/internal/apperror"
)

// RefreshSession backs the "at most N active sessions per principal"
// invariant and refresh-token rotation. Not named as a distinct entity in
// the base spec but required to implement issue/refresh/revoke literally.
type RefreshSession struct {
	ID                uuid.UUID
	PrincipalID       uuid.UUID
	DeviceFingerprint string
	TokenHash         string
	IssuedAt          time.Time
	ExpiresAt         time.Time
	RevokedAt         *time.Time
}

// RefreshStore persists refresh sessions in Postgres.
type RefreshStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	max  int
}

// NewRefreshStore creates a RefreshStore. max bounds the number of
// simultaneously active sessions per principal; issuing beyond max revokes
// the oldest sessions first.
func NewRefreshStore(pool *pgxpool.Pool, ttl time.Duration, max int) *RefreshStore {
	return &RefreshStore{pool: pool, ttl: ttl, max: max}
}

func hashRefreshToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

func generateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Issue creates a new refresh session, enforcing the active-session cap by
// revoking the oldest non-revoked sessions beyond max-1.
func (s *RefreshStore) Issue(ctx context.Context, principalID uuid.UUID, deviceFingerprint string) (rawToken string, session *RefreshSession, err error) {
	rawToken, err = generateRefreshToken()
	if err != nil {
		return "", nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("beginning tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Enforce session cap: revoke the oldest active sessions so at most
	// max-1 remain before this new one is inserted.
	if _, err := tx.Exec(ctx, `
		UPDATE refresh_sessions SET revoked_at = now()
		WHERE id IN (
			SELECT id FROM refresh_sessions
			WHERE principal_id = $1 AND revoked_at IS NULL AND expires_at > now()
			ORDER BY issued_at DESC
			OFFSET $2
		)`, principalID, max(s.max-1, 0)); err != nil {
		return "", nil, fmt.Errorf("enforcing session cap: %w", err)
	}

	now := time.Now().UTC()
	id := uuid.New()
	expiresAt := now.Add(s.ttl)

	if _, err := tx.Exec(ctx, `
		INSERT INTO refresh_sessions (id, principal_id, device_fingerprint, token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, principalID, deviceFingerprint, hashRefreshToken(rawToken), now, expiresAt); err != nil {
		return "", nil, fmt.Errorf("inserting refresh session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", nil, fmt.Errorf("committing tx: %w", err)
	}

	return rawToken, &RefreshSession{
		ID: id, PrincipalID: principalID, DeviceFingerprint: deviceFingerprint,
		IssuedAt: now, ExpiresAt: expiresAt,
	}, nil
}

// Rotate validates rawToken, revokes it, and issues a replacement — classic
// refresh-token rotation. The revoke and the replacement's insert are
// separate writes, not one transaction: if Issue fails, the old token stays
// revoked with no replacement. Reuse of a revoked token is a signal of
// token theft (we don't chase that further here, see §9).
func (s *RefreshStore) Rotate(ctx context.Context, rawToken, deviceFingerprint string) (newRawToken string, principalID uuid.UUID, err error) {
	hash := hashRefreshToken(rawToken)

	var sess RefreshSession
	err = s.pool.QueryRow(ctx, `
		SELECT id, principal_id, expires_at, revoked_at
		FROM refresh_sessions WHERE token_hash = $1`, hash).
		Scan(&sess.ID, &sess.PrincipalID, &sess.ExpiresAt, &sess.RevokedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", uuid.Nil, apperror.New(apperror.KindAuthInvalid, "unknown refresh token")
		}
		return "", uuid.Nil, fmt.Errorf("looking up refresh session: %w", err)
	}
	if sess.RevokedAt != nil || time.Now().After(sess.ExpiresAt) {
		return "", uuid.Nil, apperror.New(apperror.KindAuthInvalid, "refresh token expired or revoked")
	}

	if _, err := s.pool.Exec(ctx, `UPDATE refresh_sessions SET revoked_at = now() WHERE id = $1`, sess.ID); err != nil {
		return "", uuid.Nil, fmt.Errorf("revoking rotated session: %w", err)
	}

	newRaw, _, err := s.Issue(ctx, sess.PrincipalID, deviceFingerprint)
	if err != nil {
		return "", uuid.Nil, err
	}
	return newRaw, sess.PrincipalID, nil
}

// RevokeAll revokes every active session for a principal — called on
// password change or role change, per the mass-revoke contract.
func (s *RefreshStore) RevokeAll(ctx context.Context, principalID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_sessions SET revoked_at = now()
		WHERE principal_id = $1 AND revoked_at IS NULL`, principalID)
	if err != nil {
		return fmt.Errorf("revoking sessions: %w", err)
	}
	return nil
}
