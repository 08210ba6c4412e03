package reservation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beautymarket/backend/internal/apperror"
	"github.com/beautymarket/backend/internal/audit"
)

// ShopCapacity is the narrow shop projection the engine needs: whether the
// shop is bookable and how many concurrent slots it can serve.
type ShopCapacity interface {
	GetCapacity(ctx context.Context, shopID uuid.UUID) (capacity int, bookable bool, err error)
}

// PointsBalance is the narrow points-ledger projection the engine needs to
// validate pointsToApply against the customer's available balance.
type PointsBalance interface {
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Service implements the C6 public operations: create, transition,
// autoProgress.
type Service struct {
	store    *Store
	pool     *pgxpool.Pool
	shops    ShopCapacity
	points   PointsBalance
	auditLog *audit.Writer
	logger   *slog.Logger
}

// NewService creates a reservation Service.
func NewService(pool *pgxpool.Pool, shops ShopCapacity, points PointsBalance, auditLog *audit.Writer, logger *slog.Logger) *Service {
	return &Service{store: NewStore(pool), pool: pool, shops: shops, points: points, auditLog: auditLog, logger: logger}
}

// CreateInput is the body of create(shopId, customerId, serviceIds[], datetime, depositIntent, pointsToApply).
type CreateInput struct {
	ShopID        uuid.UUID
	CustomerID    uuid.UUID
	ServiceIDs    []uuid.UUID
	Datetime      time.Time
	DepositIntent bool
	PointsToApply int64
}

// Create validates services, prices the reservation, serializes slot
// decisions per shop-day with an advisory lock, and inserts the reservation
// in state "requested".
func (s *Service) Create(ctx context.Context, in CreateInput) (*Reservation, error) {
	capacity, bookable, err := s.shops.GetCapacity(ctx, in.ShopID)
	if err != nil {
		return nil, fmt.Errorf("loading shop capacity: %w", err)
	}
	if !bookable {
		return nil, apperror.New(apperror.KindConflictState, "shop_unavailable")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	dateBucket := in.Datetime.UTC().Format("2006-01-02")
	if err := s.store.AdvisoryLock(ctx, tx, in.ShopID, dateBucket); err != nil {
		return nil, err
	}

	services, err := s.store.LockServices(ctx, tx, in.ShopID, in.ServiceIDs)
	if err != nil {
		return nil, err
	}
	if len(services) != len(in.ServiceIDs) {
		return nil, apperror.New(apperror.KindValidation, "invalid_services")
	}

	var totalAmount int64
	var totalDuration int
	for _, sv := range services {
		if !sv.Available {
			return nil, apperror.New(apperror.KindValidation, "invalid_services")
		}
		totalAmount += sv.PriceMin
		totalDuration += sv.DurationMinutes
	}

	if in.PointsToApply < 0 {
		return nil, apperror.New(apperror.KindValidation, "pointsToApply must not be negative")
	}
	if in.PointsToApply > 0 {
		balance, err := s.points.Balance(ctx, in.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("loading points balance: %w", err)
		}
		if in.PointsToApply > balance || in.PointsToApply > totalAmount {
			return nil, apperror.New(apperror.KindInsufficientPoints, "pointsToApply exceeds available balance")
		}
	}

	end := in.Datetime.Add(time.Duration(totalDuration) * time.Minute)
	overlapping, err := s.store.CountOverlapping(ctx, tx, in.ShopID, in.Datetime, end)
	if err != nil {
		return nil, err
	}
	if overlapping >= capacity {
		return nil, apperror.New(apperror.KindConflictSlot, "slot_conflict")
	}

	r := &Reservation{
		ShopID:          in.ShopID,
		CustomerID:      in.CustomerID,
		ServiceIDs:      in.ServiceIDs,
		Datetime:        in.Datetime,
		DurationMinutes: totalDuration,
		TotalAmount:     totalAmount - in.PointsToApply,
		PointsUsed:      in.PointsToApply,
	}
	if in.DepositIntent {
		r.DepositAmount = totalAmount / 10 // default 10% deposit; gateway confirms actual amount
	}

	if err := s.store.Insert(ctx, tx, r); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing reservation: %w", err)
	}

	s.auditLog.LogAudit(audit.AuditEvent{
		ActorID:      pgUUID(in.CustomerID),
		ShopID:       pgUUID(in.ShopID),
		Action:       "reservation.create",
		ResourceType: "reservation",
		ResourceID:   pgUUID(r.ID),
	})
	return r, nil
}

// Transition applies a status change, enforcing the tabular status machine
// and logging the transition.
func (s *Service) Transition(ctx context.Context, reservationID uuid.UUID, to string, actor uuid.UUID, reason string) (*Reservation, error) {
	r, err := s.store.GetByID(ctx, reservationID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindNotFound, "reservation not found", err)
	}

	if IsTerminal(r.Status) || !CanTransition(r.Status, to) {
		return nil, apperror.New(apperror.KindConflictState, "invalid_transition")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.store.UpdateStatus(ctx, tx, reservationID, r.Status, to, actor, reason); err != nil {
		return nil, fmt.Errorf("transitioning reservation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transition: %w", err)
	}

	r.Status = to
	s.auditLog.LogAudit(audit.AuditEvent{
		ActorID:      pgUUID(actor),
		ShopID:       pgUUID(r.ShopID),
		Action:       "reservation.transition",
		ResourceType: "reservation",
		ResourceID:   pgUUID(r.ID),
	})
	return r, nil
}

// TransitionTx applies a status change within an externally-owned
// transaction tx, for callers (pkg/payment's webhook handler) that must
// commit the reservation transition atomically with their own state update.
// Unlike Transition, it does not emit an audit event itself — the caller is
// expected to log the composite operation once its own transaction commits.
func (s *Service) TransitionTx(ctx context.Context, tx pgx.Tx, reservationID uuid.UUID, to string, actor uuid.UUID, reason string) error {
	r, err := s.store.GetByID(ctx, reservationID)
	if err != nil {
		return apperror.Wrap(apperror.KindNotFound, "reservation not found", err)
	}
	if IsTerminal(r.Status) || !CanTransition(r.Status, to) {
		return apperror.New(apperror.KindConflictState, "invalid_transition")
	}
	return s.store.UpdateStatus(ctx, tx, reservationID, r.Status, to, actor, reason)
}

// pgUUID converts a uuid.UUID to a pgtype.UUID, treating uuid.Nil as NULL
// (used for automated/system-actor transitions that have no principal).
func pgUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

// GetByID loads a reservation by ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	return s.store.GetByID(ctx, id)
}
