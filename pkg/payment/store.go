package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides raw-SQL persistence for payments and webhook delivery
// idempotency.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert persists a new payment in status "pending", within tx.
func (s *Store) Insert(ctx context.Context, tx pgx.Tx, p *Payment) error {
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.Status = StatusPending

	_, err := tx.Exec(ctx, `
		INSERT INTO payments (id, reservation_id, shop_id, user_id, amount, points_used, method, status,
			gateway_tx_id, paid_at, refund_of_id, dispute_due, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		p.ID, p.ReservationID, p.ShopID, p.UserID, p.Amount, p.PointsUsed, p.Method, p.Status,
		p.GatewayTxID, p.PaidAt, p.RefundOfID, p.DisputeDue, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting payment: %w", err)
	}
	return nil
}

// GetByID loads a payment by ID.
func (s *Store) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Payment, error) {
	row := queryRow(ctx, s.pool, tx, `
		SELECT id, reservation_id, shop_id, user_id, amount, points_used, method, status,
			gateway_tx_id, paid_at, refund_of_id, dispute_due, created_at, updated_at
		FROM payments WHERE id = $1`, id)

	var p Payment
	if err := scanPayment(row, &p); err != nil {
		return nil, fmt.Errorf("loading payment %s: %w", id, err)
	}
	return &p, nil
}

// GetByReservation loads the most recent payment for a reservation.
func (s *Store) GetByReservation(ctx context.Context, reservationID uuid.UUID) (*Payment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, reservation_id, shop_id, user_id, amount, points_used, method, status,
			gateway_tx_id, paid_at, refund_of_id, dispute_due, created_at, updated_at
		FROM payments WHERE reservation_id = $1 ORDER BY created_at DESC LIMIT 1`, reservationID)

	var p Payment
	if err := scanPayment(row, &p); err != nil {
		return nil, fmt.Errorf("loading payment for reservation %s: %w", reservationID, err)
	}
	return &p, nil
}

// UpdateStatus transitions a payment's status within tx.
func (s *Store) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, gatewayTxID *string, paidAt *time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE payments SET status = $1, gateway_tx_id = COALESCE($2, gateway_tx_id), paid_at = COALESCE($3, paid_at), updated_at = $4
		WHERE id = $5`,
		status, gatewayTxID, paidAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating payment status: %w", err)
	}
	return nil
}

// SetDisputeDue records the evidence deadline on a disputed payment.
func (s *Store) SetDisputeDue(ctx context.Context, tx pgx.Tx, id uuid.UUID, due time.Time) error {
	_, err := tx.Exec(ctx, `UPDATE payments SET dispute_due = $1, updated_at = $2 WHERE id = $3`, due, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("recording dispute deadline: %w", err)
	}
	return nil
}

// RecordDelivery inserts the webhook_deliveries idempotency row within tx.
// A unique-violation on (gateway_tx_id, event) means this delivery has
// already been processed; the caller treats it as a no-op 200.
func (s *Store) RecordDelivery(ctx context.Context, tx pgx.Tx, gatewayTxID, event string, paymentID uuid.UUID, resultStatus string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO webhook_deliveries (gateway_tx_id, event, received_at, payment_id, result_status)
		VALUES ($1,$2,$3,$4,$5)`,
		gatewayTxID, event, time.Now().UTC(), paymentID, resultStatus)
	if err != nil {
		return fmt.Errorf("recording webhook delivery: %w", err)
	}
	return nil
}

// AlreadyDelivered reports whether (gatewayTxID, event) has already been
// recorded, without starting a transaction.
func (s *Store) AlreadyDelivered(ctx context.Context, gatewayTxID, event string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM webhook_deliveries WHERE gateway_tx_id = $1 AND event = $2)`,
		gatewayTxID, event).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking webhook delivery idempotency: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func queryRow(ctx context.Context, pool *pgxpool.Pool, tx pgx.Tx, sql string, args ...any) rowScanner {
	if tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return pool.QueryRow(ctx, sql, args...)
}

func scanPayment(row rowScanner, p *Payment) error {
	return row.Scan(&p.ID, &p.ReservationID, &p.ShopID, &p.UserID, &p.Amount, &p.PointsUsed, &p.Method, &p.Status,
		&p.GatewayTxID, &p.PaidAt, &p.RefundOfID, &p.DisputeDue, &p.CreatedAt, &p.UpdatedAt)
}
