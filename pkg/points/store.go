package points

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beautymarket/backend/internal/apperror"
)

// Store provides raw-SQL persistence for the point ledger. Mutating
// operations take an explicit pgx.Tx so callers that must commit ledger
// writes atomically with a payment-status transition (C7's ordering
// guarantee) can pass their own transaction.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Balance returns the sum of all ledger rows for userID.
func (s *Store) Balance(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error) {
	q := queryer(s.pool, tx)
	var balance int64
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM point_transactions WHERE user_id = $1`, userID).
		Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("computing balance: %w", err)
	}
	return balance, nil
}

// Insert appends a ledger row within tx.
func (s *Store) Insert(ctx context.Context, tx pgx.Tx, t *Transaction) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now().UTC()

	_, err := tx.Exec(ctx, `
		INSERT INTO point_transactions (id, user_id, amount, type, payment_id, referrer_user_id, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.ID, t.UserID, t.Amount, t.Type, t.PaymentID, t.ReferrerUserID, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting point transaction: %w", err)
	}
	return nil
}

// Credit appends a positive ledger row within tx.
func (s *Store) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, typ string, paymentID, referrerUserID *uuid.UUID, expiresAt *time.Time) (*Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	t := &Transaction{UserID: userID, Amount: amount, Type: typ, PaymentID: paymentID, ReferrerUserID: referrerUserID, ExpiresAt: expiresAt}
	if err := s.Insert(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Debit appends a negative ledger row within tx, failing with
// insufficient_points if the post-debit balance would go negative.
func (s *Store) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, typ string, paymentID *uuid.UUID) (*Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	// Lock the user's ledger rows first, then recompute balance under the lock
	// so concurrent debits for the same user serialize.
	if _, err := tx.Exec(ctx, `SELECT 1 FROM point_transactions WHERE user_id = $1 FOR UPDATE`, userID); err != nil {
		return nil, fmt.Errorf("locking ledger rows: %w", err)
	}
	var balance int64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM point_transactions WHERE user_id = $1`, userID).
		Scan(&balance); err != nil {
		return nil, fmt.Errorf("computing balance under lock: %w", err)
	}

	if balance-amount < 0 {
		return nil, apperror.New(apperror.KindInsufficientPoints, "insufficient point balance")
	}

	t := &Transaction{UserID: userID, Amount: -amount, Type: typ, PaymentID: paymentID}
	if err := s.Insert(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ByPayment returns every ledger row referencing paymentID (newest write
// path only; rows predating paymentID linkage are out of scope here).
func (s *Store) ByPayment(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) ([]Transaction, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, user_id, amount, type, payment_id, referrer_user_id, expires_at, created_at
		FROM point_transactions WHERE payment_id = $1`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("listing ledger rows for payment: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// ExpiringBefore returns ledger rows with expires_at < cutoff that have not
// yet had an inverse "expired" row written.
func (s *Store) ExpiringBefore(ctx context.Context, cutoff time.Time) ([]Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, amount, type, payment_id, referrer_user_id, expires_at, created_at
		FROM point_transactions
		WHERE expires_at IS NOT NULL AND expires_at < $1 AND expired_at IS NULL AND amount > 0`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing expiring transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// MarkExpired flags the source row as having had its inverse written, within tx.
func (s *Store) MarkExpired(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE point_transactions SET expired_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("marking transaction expired: %w", err)
	}
	return nil
}

// Summary computes the per-user UI summary.
func (s *Store) Summary(ctx context.Context, userID uuid.UUID, now time.Time) (Summary, error) {
	var sum Summary
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM point_transactions WHERE user_id = $1`, userID).
		Scan(&sum.Balance); err != nil {
		return Summary{}, fmt.Errorf("computing balance: %w", err)
	}
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM point_transactions WHERE user_id = $1 AND amount > 0`, userID).
		Scan(&sum.TotalEarned); err != nil {
		return Summary{}, fmt.Errorf("computing total earned: %w", err)
	}
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(-SUM(amount), 0) FROM point_transactions WHERE user_id = $1 AND amount < 0`, userID).
		Scan(&sum.TotalSpent); err != nil {
		return Summary{}, fmt.Errorf("computing total spent: %w", err)
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM point_transactions WHERE user_id = $1 AND amount > 0 AND created_at >= $2`,
		userID, dayStart).Scan(&sum.TodayEarned); err != nil {
		return Summary{}, fmt.Errorf("computing today earned: %w", err)
	}
	return sum, nil
}

func scanTransactions(rows pgx.Rows) ([]Transaction, error) {
	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.PaymentID, &t.ReferrerUserID, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning point transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// rowQueryer is satisfied by both *pgxpool.Pool and pgx.Tx for read-only
// queries that may or may not run inside a caller's transaction.
type rowQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func queryer(pool *pgxpool.Pool, tx pgx.Tx) rowQueryer {
	if tx != nil {
		return tx
	}
	return pool
}
