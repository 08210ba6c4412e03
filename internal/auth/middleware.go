package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beautymarket/backend/internal/apperror"
	"github.com/beautymarket/backend/internal/envelope"
)

// PrincipalLookup re-hydrates the live Principal record by ID, the contract
// C3 requires: verification must always re-check the persisted role rather
// than trusting the token's claim.
type PrincipalLookup struct {
	pool *pgxpool.Pool
}

// NewPrincipalLookup creates a PrincipalLookup backed by pool.
func NewPrincipalLookup(pool *pgxpool.Pool) *PrincipalLookup {
	return &PrincipalLookup{pool: pool}
}

// Get fetches the live {id, role, shopId, status} row for principalID.
func (l *PrincipalLookup) Get(ctx context.Context, principalID string) (*Identity, error) {
	var id Identity
	var shopID pgtype.UUID
	row := l.pool.QueryRow(ctx, `
		SELECT id, email, role, shop_id, status FROM principals WHERE id = $1`, principalID)
	if err := row.Scan(&id.PrincipalID, &id.Email, &id.Role, &shopID, &id.Status); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperror.New(apperror.KindAuthInvalid, "user_not_found")
		}
		return nil, fmt.Errorf("looking up principal: %w", err)
	}
	if shopID.Valid {
		shopUUID := uuid.UUID(shopID.Bytes)
		id.ShopID = &shopUUID
	}
	return &id, nil
}

// Middleware implements the C3 Principal Resolver: extract bearer header,
// verify the access token's signature and expiry, re-hydrate the live
// principal record, and attach {id, role, shopId, status} to the request.
//
// Failure modes, all 401 unless noted: missing/malformed header
// (auth_required), bad signature/expired (auth_invalid), principal row
// missing (auth_invalid, message user_not_found), persisted role differs
// from the token's claim (role_changed), principal suspended (403,
// account_suspended), any other non-active status (auth_invalid).
func Middleware(tokens *TokenService, lookup *PrincipalLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				envelope.WriteError(w, http.StatusUnauthorized, "auth_required", "missing bearer token")
				return
			}
			rawToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

			claims, err := tokens.Verify(rawToken)
			if err != nil {
				logger.Warn("access token verification failed", "error", err)
				envelope.WriteError(w, http.StatusUnauthorized, "auth_invalid", "invalid or expired access token")
				return
			}

			live, err := lookup.Get(r.Context(), claims.PrincipalID)
			if err != nil {
				if appErr, ok := apperror.As(err); ok {
					logger.Warn("principal lookup failed", "principal_id", claims.PrincipalID, "error", appErr)
					envelope.WriteError(w, http.StatusUnauthorized, string(appErr.Kind), appErr.Message)
					return
				}
				logger.Error("principal lookup error", "error", err)
				envelope.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
				return
			}

			if live.Role != claims.Role {
				logger.Info("role changed since token issuance, rejecting",
					"principal_id", claims.PrincipalID, "token_role", claims.Role, "live_role", live.Role)
				envelope.WriteError(w, http.StatusUnauthorized, "role_changed", "role has changed, please re-authenticate")
				return
			}

			if live.Status == "suspended" {
				envelope.WriteError(w, http.StatusForbidden, "account_suspended", "account is suspended")
				return
			}

			if live.Status != "active" {
				envelope.WriteError(w, http.StatusUnauthorized, "auth_invalid", "account is not active")
				return
			}

			ctx := NewContext(r.Context(), live)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
