package points

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service implements the C8 public operations. Credit/Debit/ReverseByPayment
// each open and commit their own transaction; a caller that writes the
// ledger inside its own transaction (e.g. pkg/payment's webhook handler)
// uses ReverseByPaymentTx or the Store() methods instead.
type Service struct {
	store  *Store
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a points Service.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{store: NewStore(pool), pool: pool, logger: logger}
}

// Store exposes the tx-scoped store for callers (pkg/payment, pkg/referral)
// that must participate in an externally-owned transaction.
func (s *Service) Store() *Store { return s.store }

// Credit appends a positive ledger row, opening its own transaction.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount int64, typ string, paymentID, referrerUserID *uuid.UUID, expiresAt *time.Time) (*Transaction, error) {
	return s.withTx(ctx, func(tx pgx.Tx) (*Transaction, error) {
		return s.store.Credit(ctx, tx, userID, amount, typ, paymentID, referrerUserID, expiresAt)
	})
}

// Debit appends a negative ledger row, opening its own transaction.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount int64, typ string, paymentID *uuid.UUID) (*Transaction, error) {
	return s.withTx(ctx, func(tx pgx.Tx) (*Transaction, error) {
		return s.store.Debit(ctx, tx, userID, amount, typ, paymentID)
	})
}

// ReverseByPayment writes inverse entries for every ledger row referencing
// paymentID, opening its own transaction.
func (s *Service) ReverseByPayment(ctx context.Context, paymentID uuid.UUID) error {
	_, err := s.withTx(ctx, func(tx pgx.Tx) (*Transaction, error) {
		return nil, s.ReverseByPaymentTx(ctx, tx, paymentID)
	})
	return err
}

// ReverseByPaymentTx writes the inverse entries within tx (used by
// pkg/payment's refund flow to stay in the same transaction as the payment
// status update).
func (s *Service) ReverseByPaymentTx(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) error {
	rows, err := s.store.ByPayment(ctx, tx, paymentID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		inverseType := TypeRefunded
		amount := -row.Amount
		if amount > 0 {
			if _, err := s.store.Credit(ctx, tx, row.UserID, amount, inverseType, row.PaymentID, row.ReferrerUserID, nil); err != nil {
				return fmt.Errorf("crediting reversal: %w", err)
			}
		} else if amount < 0 {
			if _, err := s.store.Debit(ctx, tx, row.UserID, -amount, inverseType, row.PaymentID); err != nil {
				return fmt.Errorf("debiting reversal: %w", err)
			}
		}
	}
	return nil
}

// Balance returns the current ledger balance for userID.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.Balance(ctx, nil, userID)
}

// Summary returns the current-balance / total-earned / total-spent /
// today-earned aggregate for userID.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (Summary, error) {
	return s.store.Summary(ctx, userID, time.Now().UTC())
}

// Expire is the periodic sweep: every ledger row whose expiresAt has passed
// gets an inverse "expired" row, one transaction per source row.
func (s *Service) Expire(ctx context.Context) (int, error) {
	rows, err := s.store.ExpiringBefore(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	count := 0
	for _, row := range rows {
		if err := s.expireOne(ctx, row); err != nil {
			s.logger.Error("expiring point transaction", "transaction_id", row.ID, "error", err)
			continue
		}
		count++
	}
	return count, nil
}

// expireOne writes the inverse of row and marks row as expired, atomically.
// Expiry is unconditional (unlike a user-initiated Debit, it is never
// blocked by the insufficient_points check) so it bypasses Store.Debit and
// inserts the negative row directly.
func (s *Service) expireOne(ctx context.Context, row Transaction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inverse := &Transaction{UserID: row.UserID, Amount: -row.Amount, Type: TypeExpired, PaymentID: row.PaymentID}
	if err := s.store.Insert(ctx, tx, inverse); err != nil {
		return fmt.Errorf("writing expiry entry: %w", err)
	}
	if err := s.store.MarkExpired(ctx, tx, row.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Service) withTx(ctx context.Context, fn func(tx pgx.Tx) (*Transaction, error)) (*Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := fn(tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return result, nil
}
