package tenancy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DbSession wraps a pooled connection and an open transaction with the three
// session-scoped GUCs row-level-security policies read: app.current_user_id,
// app.current_user_role, app.current_user_shop_id. Scope is transaction-
// local (SET LOCAL) by construction, so the connection can safely return to
// the pool on Commit/Rollback without leaking one request's principal into
// the next.
type DbSession struct {
	conn *pgxpool.Conn
	Tx   pgx.Tx
}

// Acquire opens a connection, begins a transaction, and sets the RLS GUCs
// for principalID/role/shopID. shopID may be nil for platform-scoped
// principals (admins, customers acting outside any shop).
func Acquire(ctx context.Context, pool *pgxpool.Pool, principalID uuid.UUID, role string, shopID *uuid.UUID) (*DbSession, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	shop := ""
	if shopID != nil {
		shop = shopID.String()
	}

	if _, err := tx.Exec(ctx, `SELECT
			set_config('app.current_user_id', $1, true),
			set_config('app.current_user_role', $2, true),
			set_config('app.current_user_shop_id', $3, true)`,
		principalID.String(), role, shop); err != nil {
		_ = tx.Rollback(ctx)
		conn.Release()
		return nil, fmt.Errorf("setting session variables: %w", err)
	}

	return &DbSession{conn: conn, Tx: tx}, nil
}

// Commit commits the transaction and releases the connection to the pool.
func (s *DbSession) Commit(ctx context.Context) error {
	defer s.conn.Release()
	if err := s.Tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Rollback rolls back the transaction and releases the connection. Safe to
// call after a failed Commit or as a deferred cleanup; rolling back an
// already-closed transaction is a no-op error that Rollback swallows.
func (s *DbSession) Rollback(ctx context.Context) {
	defer s.conn.Release()
	_ = s.Tx.Rollback(ctx)
}
