package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/beautymarket/backend/internal/apperror"
	"github.com/beautymarket/backend/internal/audit"
)

// Service implements the C10 public operations: prepare, verify.
type Service struct {
	store    *Store
	broker   Broker
	auditLog *audit.Writer
	logger   *slog.Logger
}

// NewService creates an identity Service.
func NewService(store *Store, broker Broker, auditLog *audit.Writer, logger *slog.Logger) *Service {
	return &Service{store: store, broker: broker, auditLog: auditLog, logger: logger}
}

// Prepare persists a verification record in "ready" and returns the
// client-SDK token from the broker handshake.
func (s *Service) Prepare(ctx context.Context, in PrepareInput) (*Verification, error) {
	v := &Verification{
		MinAge:      in.MinAge,
		CarrierOnly: in.CarrierOnly,
		Title:       in.Title,
	}
	if err := s.store.Insert(ctx, v); err != nil {
		return nil, err
	}

	token, err := s.broker.Prepare(ctx, v.ID.String(), in.Customer, in.MinAge, in.CarrierOnly, in.Title)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindGatewayUnavailable, "identity broker unavailable", err)
	}
	v.BrokerToken = token
	return v, nil
}

// Verify fetches the broker's authoritative result, updates the record to
// verified or failed, re-checks the age restriction server-side, and — on
// verified — enforces CI uniqueness before attaching the record to userID.
func (s *Service) Verify(ctx context.Context, verificationID uuid.UUID, userID uuid.UUID) (*Verification, error) {
	v, err := s.store.GetByID(ctx, verificationID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindNotFound, "verification not found", err)
	}
	if v.Status != StatusReady {
		return nil, apperror.New(apperror.KindConflictState, "verification not pending")
	}

	result, err := s.broker.FetchResult(ctx, verificationID.String())
	if err != nil {
		return nil, apperror.Wrap(apperror.KindGatewayUnavailable, "identity broker unavailable", err)
	}

	if !result.Verified {
		if err := s.store.MarkFailed(ctx, verificationID); err != nil {
			return nil, err
		}
		v.Status = StatusFailed
		return v, nil
	}

	if v.MinAge > 0 {
		if ok, err := meetsMinAge(result.BirthDate, v.MinAge); err != nil {
			return nil, apperror.Wrap(apperror.KindValidation, "malformed birth date from broker", err)
		} else if !ok {
			if err := s.store.MarkFailed(ctx, verificationID); err != nil {
				return nil, err
			}
			return nil, apperror.New(apperror.KindValidation, "age_restriction_not_met")
		}
	}

	var attachErr error
	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		holder, err := s.store.CIHolder(ctx, tx, result.CI)
		if err != nil {
			return err
		}
		if holder != nil && *holder != userID {
			attachErr = apperror.New(apperror.KindDuplicateUser, "ci_already_verified")
			return attachErr
		}
		return s.store.MarkVerified(ctx, tx, verificationID, userID, result)
	})
	if attachErr != nil {
		return nil, attachErr
	}
	if err != nil {
		return nil, fmt.Errorf("attaching verification: %w", err)
	}

	v.Status = StatusVerified
	v.UserID = &userID
	ci := result.CI
	v.CI = &ci

	s.auditLog.LogAudit(audit.AuditEvent{
		ActorID:      pgUUID(userID),
		Action:       "identity.verify",
		ResourceType: "identity_verification",
		ResourceID:   pgUUID(v.ID),
	})
	return v, nil
}

// meetsMinAge parses a "YYYY-MM-DD" broker birth date and reports whether
// the subject is at least minAge years old as of now.
func meetsMinAge(birthDate string, minAge int) (bool, error) {
	dob, err := time.Parse("2006-01-02", birthDate)
	if err != nil {
		return false, err
	}
	cutoff := time.Now().UTC().AddDate(-minAge, 0, 0)
	return !dob.After(cutoff), nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}
