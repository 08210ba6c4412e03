package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beautymarket/backend/internal/apperror"
	"github.com/beautymarket/backend/internal/audit"
	"github.com/beautymarket/backend/pkg/notification"
	"github.com/beautymarket/backend/pkg/points"
	"github.com/beautymarket/backend/pkg/referral"
	"github.com/beautymarket/backend/pkg/reservation"
)

// Service implements the C7 public operations: initiate, webhook intake,
// refund, dispute.
type Service struct {
	store      *Store
	pool       *pgxpool.Pool
	gateway    Client
	points     *points.Service
	referral   *referral.Service
	reservations *reservation.Service
	notify     *notification.Store
	auditLog   *audit.Writer
	logger     *slog.Logger
}

// NewService creates a payment Service.
func NewService(pool *pgxpool.Pool, gateway Client, pointsSvc *points.Service, referralSvc *referral.Service, reservationSvc *reservation.Service, notifyStore *notification.Store, auditLog *audit.Writer, logger *slog.Logger) *Service {
	return &Service{
		store:        NewStore(pool),
		pool:         pool,
		gateway:      gateway,
		points:       pointsSvc,
		referral:     referralSvc,
		reservations: reservationSvc,
		notify:       notifyStore,
		auditLog:     auditLog,
		logger:       logger,
	}
}

// InitiateInput is the body of initiate(reservationId, method, amount, pointsToApply).
type InitiateInput struct {
	ReservationID uuid.UUID
	UserID        uuid.UUID
	ShopID        uuid.UUID
	Method        string
	Amount        int64
	PointsToApply int64
}

// InitiateResult is {paymentId, clientParameters}.
type InitiateResult struct {
	PaymentID         uuid.UUID
	ClientParameters  ClientParameters
}

// Initiate validates pointsToApply against the user's available balance
// (ledger balance less points already reserved by other pending payments),
// then persists a payment in "pending" with a server-generated correlation
// ID as the sole idempotency key. Points are reserved, not debited: the
// ledger "spent" row is only written on gateway confirmation.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	if in.PointsToApply < 0 {
		return nil, apperror.New(apperror.KindValidation, "pointsToApply must not be negative")
	}

	available, err := s.availablePoints(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if in.PointsToApply > available {
		return nil, apperror.New(apperror.KindInsufficientPoints, "pointsToApply exceeds available balance")
	}

	p := &Payment{
		ReservationID: in.ReservationID,
		ShopID:        in.ShopID,
		UserID:        in.UserID,
		Amount:        in.Amount,
		PointsUsed:    in.PointsToApply,
		Method:        in.Method,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.store.Insert(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing payment: %w", err)
	}

	params, err := s.gateway.Initiate(ctx, InitiateGatewayRequest{
		PaymentID: p.ID.String(),
		Amount:    in.Amount - in.PointsToApply,
		Method:    in.Method,
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindGatewayUnavailable, "payment gateway unavailable", err)
	}

	return &InitiateResult{PaymentID: p.ID, ClientParameters: params}, nil
}

// availablePoints returns the user's ledger balance less points reserved by
// their other pending payments.
func (s *Service) availablePoints(ctx context.Context, userID uuid.UUID) (int64, error) {
	balance, err := s.points.Balance(ctx, userID)
	if err != nil {
		return 0, err
	}
	reserved, err := s.sumPendingReservedPoints(ctx, userID)
	if err != nil {
		return 0, err
	}
	return balance - reserved, nil
}

func (s *Service) sumPendingReservedPoints(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(points_used), 0) FROM payments WHERE user_id = $1 AND status = $2`,
		userID, StatusPending).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("summing reserved points: %w", err)
	}
	return sum, nil
}

// ProcessWebhook handles a verified gateway event, idempotent on
// (gatewayTxId, event). A duplicate delivery is a no-op that still returns
// success, matching spec.md's "observed as no-ops" requirement.
func (s *Service) ProcessWebhook(ctx context.Context, payload WebhookPayload) error {
	delivered, err := s.store.AlreadyDelivered(ctx, payload.GatewayTxID, payload.Event)
	if err != nil {
		return err
	}
	if delivered {
		s.logger.Info("duplicate webhook delivery, no-op", "gateway_tx_id", payload.GatewayTxID, "event", payload.Event)
		return nil
	}

	paymentID, err := uuid.Parse(payload.PaymentID)
	if err != nil {
		return apperror.New(apperror.KindValidation, "malformed payment_id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := s.store.GetByID(ctx, tx, paymentID)
	if err != nil {
		return apperror.Wrap(apperror.KindNotFound, "unknown payment", err)
	}

	switch payload.Event {
	case EventApproved:
		if err := s.handleApproved(ctx, tx, p, payload); err != nil {
			return err
		}
	case EventFailed, EventCanceled:
		if err := s.handleFailedOrCancelled(ctx, tx, p, payload.Event); err != nil {
			return err
		}
	case EventRefund:
		if err := s.handleRefund(ctx, tx, p, payload); err != nil {
			return err
		}
	case EventDispute:
		if err := s.handleDispute(ctx, tx, p, payload); err != nil {
			return err
		}
	default:
		return apperror.New(apperror.KindValidation, "unrecognized webhook event")
	}

	if err := s.store.RecordDelivery(ctx, tx, payload.GatewayTxID, payload.Event, p.ID, "processed"); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			s.logger.Info("duplicate webhook delivery, no-op", "gateway_tx_id", payload.GatewayTxID, "event", payload.Event)
			return nil
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing webhook processing: %w", err)
	}

	s.auditLog.LogAudit(audit.AuditEvent{
		ShopID:       pgUUID(p.ShopID),
		Action:       "payment.webhook." + payload.Event,
		ResourceType: "payment",
		ResourceID:   pgUUID(p.ID),
	})
	return nil
}

// handleApproved transitions pending -> deposit_paid|fully_paid, commits the
// reserved points as a "spent" ledger entry, credits referral commission,
// and confirms the reservation — all within the caller's tx, per the
// ordering guarantee.
func (s *Service) handleApproved(ctx context.Context, tx pgx.Tx, p *Payment, payload WebhookPayload) error {
	status := StatusDepositPaid
	if payload.Amount >= p.Amount {
		status = StatusFullyPaid
	}

	now := time.Now().UTC()
	gatewayTxID := payload.GatewayTxID
	if err := s.store.UpdateStatus(ctx, tx, p.ID, status, &gatewayTxID, &now); err != nil {
		return err
	}

	if p.PointsUsed > 0 {
		if _, err := s.points.Store().Debit(ctx, tx, p.UserID, p.PointsUsed, points.TypeSpent, &p.ID); err != nil {
			return fmt.Errorf("committing point debit: %w", err)
		}
	}

	eligibleAmount := p.Amount - p.PointsUsed
	if _, _, err := s.referral.CreditCommissionTx(ctx, tx, p.UserID, p.ID, eligibleAmount); err != nil {
		return fmt.Errorf("crediting referral commission: %w", err)
	}

	if err := s.reservations.TransitionTx(ctx, tx, p.ReservationID, reservation.StatusConfirmed, p.UserID, "payment approved"); err != nil {
		return fmt.Errorf("confirming reservation: %w", err)
	}

	if err := s.notify.Enqueue(ctx, tx, &notification.Job{
		UserID:        p.UserID,
		TemplateID:    "payment_confirmed",
		Params:        map[string]string{"amount": fmt.Sprint(payload.Amount)},
		CorrelationID: p.ID.String() + ":payment_confirmed",
	}); err != nil {
		return fmt.Errorf("enqueuing payment confirmed notification: %w", err)
	}

	return nil
}

// handleFailedOrCancelled releases reserved points (a no-op under the
// reserve-don't-debit model: the pending payment row simply stops counting
// toward sumPendingReservedPoints once its status changes) and terminates
// the payment without advancing the reservation.
func (s *Service) handleFailedOrCancelled(ctx context.Context, tx pgx.Tx, p *Payment, event string) error {
	status := StatusFailed
	if event == EventCanceled {
		status = StatusCancelled
	}
	return s.store.UpdateStatus(ctx, tx, p.ID, status, nil, nil)
}

// handleRefund creates a refund payment record linked to the original,
// reverses point usage, and transitions the reservation to cancelled if
// still active.
func (s *Service) handleRefund(ctx context.Context, tx pgx.Tx, p *Payment, payload WebhookPayload) error {
	if err := s.store.UpdateStatus(ctx, tx, p.ID, StatusRefunded, nil, nil); err != nil {
		return err
	}

	refundRecord := &Payment{
		ReservationID: p.ReservationID,
		ShopID:        p.ShopID,
		UserID:        p.UserID,
		Amount:        -payload.Amount,
		Method:        p.Method,
		RefundOfID:    &p.ID,
	}
	if err := s.store.Insert(ctx, tx, refundRecord); err != nil {
		return err
	}
	if err := s.store.UpdateStatus(ctx, tx, refundRecord.ID, StatusRefunded, nil, nil); err != nil {
		return err
	}

	if err := s.points.ReverseByPaymentTx(ctx, tx, p.ID); err != nil {
		return fmt.Errorf("reversing point usage: %w", err)
	}

	to := reservation.StatusCancelledByUser
	if payload.Initiator == "shop" {
		to = reservation.StatusCancelledByShop
	}
	if err := s.reservations.TransitionTx(ctx, tx, p.ReservationID, to, p.UserID, "payment refunded"); err != nil {
		if !isTerminalTransitionErr(err) {
			return fmt.Errorf("cancelling reservation after refund: %w", err)
		}
	}

	if err := s.notify.Enqueue(ctx, tx, &notification.Job{
		UserID:        p.UserID,
		TemplateID:    "payment_refunded",
		Params:        map[string]string{"amount": fmt.Sprint(payload.Amount)},
		CorrelationID: refundRecord.ID.String() + ":payment_refunded",
	}); err != nil {
		return fmt.Errorf("enqueuing payment refunded notification: %w", err)
	}

	return nil
}

// handleDispute transitions a payment to disputed and records the evidence
// deadline. No automatic refund.
func (s *Service) handleDispute(ctx context.Context, tx pgx.Tx, p *Payment, payload WebhookPayload) error {
	if err := s.store.UpdateStatus(ctx, tx, p.ID, StatusDisputed, nil, nil); err != nil {
		return err
	}
	if payload.DisputeDue != nil {
		due := time.Unix(*payload.DisputeDue, 0).UTC()
		if err := s.store.SetDisputeDue(ctx, tx, p.ID, due); err != nil {
			return err
		}
	}
	return nil
}

// isTerminalTransitionErr reports whether err is a conflict_state apperror.
// TransitionTx raises that kind both when a reservation is already in a
// terminal status (a refund arriving after the reservation naturally
// completed is not itself an error condition) and when the transition is
// not permitted from the current status; both are treated alike here.
func isTerminalTransitionErr(err error) bool {
	appErr, ok := apperror.As(err)
	return ok && appErr.Kind == apperror.KindConflictState
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}
