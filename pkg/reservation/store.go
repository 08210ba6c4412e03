package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides raw-SQL persistence for reservations. All operations that
// mutate state take an explicit pgx.Tx so the caller controls the advisory
// lock and transaction boundary (see Service.Create).
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// serviceRow is the slice of a shop's service catalog needed to validate and
// price a reservation.
type serviceRow struct {
	ID              uuid.UUID
	ShopID          uuid.UUID
	PriceMin        int64
	DurationMinutes int
	Available       bool
}

// LockServices fetches the given service rows FOR UPDATE so concurrent
// reservation creation against the same catalog entries serializes on the
// row lock in addition to the advisory lock on (shopId, dateBucket).
func (s *Store) LockServices(ctx context.Context, tx pgx.Tx, shopID uuid.UUID, serviceIDs []uuid.UUID) ([]serviceRow, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, shop_id, price_min, duration_minutes, available
		FROM services WHERE id = ANY($1) AND deleted_at IS NULL FOR UPDATE`, serviceIDs)
	if err != nil {
		return nil, fmt.Errorf("locking services: %w", err)
	}
	defer rows.Close()

	var out []serviceRow
	for rows.Next() {
		var sv serviceRow
		if err := rows.Scan(&sv.ID, &sv.ShopID, &sv.PriceMin, &sv.DurationMinutes, &sv.Available); err != nil {
			return nil, fmt.Errorf("scanning service: %w", err)
		}
		if sv.ShopID != shopID {
			continue
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

// AdvisoryLock acquires a transaction-scoped advisory lock keyed by
// (shopId, dateBucket), serializing slot decisions for the same shop-day.
func (s *Store) AdvisoryLock(ctx context.Context, tx pgx.Tx, shopID uuid.UUID, dateBucket string) error {
	key := shopID.String() + "|" + dateBucket
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("acquiring advisory lock: %w", err)
	}
	return nil
}

// CountOverlapping returns the number of confirmed/in_progress reservations
// at shopID whose [datetime, datetime+duration) window overlaps [start,end).
func (s *Store) CountOverlapping(ctx context.Context, tx pgx.Tx, shopID uuid.UUID, start, end time.Time) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `
		SELECT count(*) FROM reservations
		WHERE shop_id = $1
		  AND status IN ('confirmed', 'in_progress')
		  AND deleted_at IS NULL
		  AND datetime < $3
		  AND datetime + (duration_minutes || ' minutes')::interval > $2`,
		shopID, start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting overlapping reservations: %w", err)
	}
	return count, nil
}

// Insert persists a new reservation in state "requested" plus its
// service junction rows, all within tx.
func (s *Store) Insert(ctx context.Context, tx pgx.Tx, r *Reservation) error {
	r.ID = uuid.New()
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	r.Status = StatusRequested

	if _, err := tx.Exec(ctx, `
		INSERT INTO reservations (id, shop_id, customer_id, datetime, duration_minutes,
			total_amount, deposit_amount, points_used, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.ShopID, r.CustomerID, r.Datetime, r.DurationMinutes,
		r.TotalAmount, r.DepositAmount, r.PointsUsed, r.Status, r.CreatedAt, r.UpdatedAt); err != nil {
		return fmt.Errorf("inserting reservation: %w", err)
	}

	for _, svcID := range r.ServiceIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO reservation_services (reservation_id, service_id) VALUES ($1, $2)`,
			r.ID, svcID); err != nil {
			return fmt.Errorf("inserting reservation service %s: %w", svcID, err)
		}
	}

	return nil
}

// GetByID loads a reservation with its service IDs.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	var r Reservation
	err := s.pool.QueryRow(ctx, `
		SELECT id, shop_id, customer_id, datetime, duration_minutes,
			total_amount, deposit_amount, points_used, status, created_at, updated_at
		FROM reservations WHERE id = $1 AND deleted_at IS NULL`, id).
		Scan(&r.ID, &r.ShopID, &r.CustomerID, &r.Datetime, &r.DurationMinutes,
			&r.TotalAmount, &r.DepositAmount, &r.PointsUsed, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("loading reservation %s: %w", id, err)
	}

	rows, err := s.pool.Query(ctx, `SELECT service_id FROM reservation_services WHERE reservation_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("loading reservation services: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sid uuid.UUID
		if err := rows.Scan(&sid); err != nil {
			return nil, fmt.Errorf("scanning reservation service: %w", err)
		}
		r.ServiceIDs = append(r.ServiceIDs, sid)
	}

	return &r, rows.Err()
}

// UpdateStatus updates a reservation's status and logs the transition, all
// within tx.
func (s *Store) UpdateStatus(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID, from, to string, actor uuid.UUID, reason string) error {
	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
		UPDATE reservations SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4 AND deleted_at IS NULL`,
		to, now, reservationID, from)
	if err != nil {
		return fmt.Errorf("updating reservation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO reservation_status_log (id, reservation_id, "from", "to", actor, reason, at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		uuid.New(), reservationID, from, to, actor, reason, now); err != nil {
		return fmt.Errorf("logging reservation transition: %w", err)
	}

	return nil
}

// ExpiredRequested returns IDs of "requested" reservations older than cutoff.
func (s *Store) ExpiredRequested(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM reservations WHERE status = $1 AND created_at < $2 AND deleted_at IS NULL`,
		StatusRequested, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing expired-candidate reservations: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// OverdueConfirmed returns IDs of "confirmed" reservations whose start+grace
// has passed without check-in (no transition to in_progress).
func (s *Store) OverdueConfirmed(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM reservations WHERE status = $1 AND datetime < $2 AND deleted_at IS NULL`,
		StatusConfirmed, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing overdue-candidate reservations: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
