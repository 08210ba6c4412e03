package credential

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/beautymarket/backend/internal/apperror"
	"github.com/beautymarket/backend/internal/audit"
	"github.com/beautymarket/backend/internal/auth"
)

// Service implements the C1/C2 public operations: register, login, refresh,
// logout.
type Service struct {
	store      *Store
	tokens     *auth.TokenService
	refresh    *auth.RefreshStore
	bcryptCost int
	auditLog   *audit.Writer
	logger     *slog.Logger
}

// NewService creates a credential Service.
func NewService(store *Store, tokens *auth.TokenService, refresh *auth.RefreshStore, bcryptCost int, auditLog *audit.Writer, logger *slog.Logger) *Service {
	return &Service{store: store, tokens: tokens, refresh: refresh, bcryptCost: bcryptCost, auditLog: auditLog, logger: logger}
}

// SessionPair is the paired access/refresh tokens returned by every
// operation that establishes or renews a session.
type SessionPair struct {
	PrincipalID  uuid.UUID
	AccessToken  string
	RefreshToken string
}

// Register creates a new customer account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, password, deviceFingerprint string) (*SessionPair, error) {
	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return nil, apperror.New(apperror.KindDuplicateUser, "email already registered")
	} else if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("checking existing account: %w", err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	p, err := s.store.CreateWithPassword(ctx, email, hash, auth.RoleCustomer)
	if err != nil {
		return nil, err
	}

	return s.issueSession(ctx, p, deviceFingerprint)
}

// Login verifies email/password and issues a new session.
func (s *Service) Login(ctx context.Context, email, password, deviceFingerprint string) (*SessionPair, error) {
	p, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if err == pgx.ErrNoRows {
			s.recordAuthFailed(ctx, nil, email, "unknown_email")
			return nil, apperror.New(apperror.KindAuthInvalid, "invalid credentials")
		}
		return nil, fmt.Errorf("looking up principal: %w", err)
	}
	if p.PasswordHash == nil || !auth.VerifyPassword(*p.PasswordHash, password) {
		s.recordAuthFailed(ctx, &p.ID, email, "bad_password")
		return nil, apperror.New(apperror.KindAuthInvalid, "invalid credentials")
	}
	if p.Status != StatusActive {
		s.recordAuthFailed(ctx, &p.ID, email, "inactive_account")
		return nil, apperror.New(apperror.KindAuthInvalid, "account is not active")
	}

	return s.issueSession(ctx, p, deviceFingerprint)
}

// recordAuthFailed emits the C12 security event for a failed login attempt.
// Best-effort: a logging failure must never mask the original auth error.
func (s *Service) recordAuthFailed(ctx context.Context, principalID *uuid.UUID, email, reason string) {
	if err := s.auditLog.RecordSecurityEvent(ctx, "auth_failed", principalID, map[string]any{
		"email":  email,
		"reason": reason,
	}); err != nil {
		s.logger.Error("recording auth_failed security event", "error", err)
	}
}

// Refresh rotates a refresh token and issues a fresh access/refresh pair.
func (s *Service) Refresh(ctx context.Context, rawRefreshToken, deviceFingerprint string) (*SessionPair, error) {
	newRaw, principalID, err := s.refresh.Rotate(ctx, rawRefreshToken, deviceFingerprint)
	if err != nil {
		return nil, err
	}

	p, err := s.store.FindByID(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("loading principal for refresh: %w", err)
	}
	if p.Status != StatusActive {
		return nil, apperror.New(apperror.KindAuthInvalid, "account is not active")
	}

	access, err := s.tokens.Issue(p.ID, p.Role, p.ShopID)
	if err != nil {
		return nil, fmt.Errorf("issuing access token: %w", err)
	}
	return &SessionPair{PrincipalID: p.ID, AccessToken: access, RefreshToken: newRaw}, nil
}

// Logout revokes every active session for a principal, the mass-revoke
// contract invoked on explicit logout, password change, or role change.
func (s *Service) Logout(ctx context.Context, principalID uuid.UUID) error {
	if err := s.refresh.RevokeAll(ctx, principalID); err != nil {
		return err
	}
	s.auditLog.LogAudit(audit.AuditEvent{
		ActorID:      pgUUIDAudit(principalID),
		Action:       "credential.logout",
		ResourceType: "principal",
		ResourceID:   pgUUIDAudit(principalID),
	})
	return nil
}

func (s *Service) issueSession(ctx context.Context, p *Principal, deviceFingerprint string) (*SessionPair, error) {
	access, err := s.tokens.Issue(p.ID, p.Role, p.ShopID)
	if err != nil {
		return nil, fmt.Errorf("issuing access token: %w", err)
	}
	refreshRaw, _, err := s.refresh.Issue(ctx, p.ID, deviceFingerprint)
	if err != nil {
		return nil, fmt.Errorf("issuing refresh session: %w", err)
	}

	s.auditLog.LogAudit(audit.AuditEvent{
		ActorID:      pgUUIDAudit(p.ID),
		Action:       "credential.session_issued",
		ResourceType: "principal",
		ResourceID:   pgUUIDAudit(p.ID),
	})
	return &SessionPair{PrincipalID: p.ID, AccessToken: access, RefreshToken: refreshRaw}, nil
}

func pgUUIDAudit(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}
