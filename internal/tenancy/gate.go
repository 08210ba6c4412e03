// Package tenancy implements the Tenancy Gate (C4) and DB Session Manager
// (C5): the second and third of the three redundant shop-isolation layers
// (the first being the per-query shop_id predicate handlers write
// themselves).
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beautymarket/backend/internal/auth"
	"github.com/beautymarket/backend/internal/httpserver"
)

var shopIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Shop is the minimal shop projection the gate needs.
type Shop struct {
	ID     uuid.UUID
	Status string
}

// ShopLookup resolves a shop by ID. Satisfied by pkg/shop's store.
type ShopLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Shop, error)
}

// SecurityEventRecorder is the narrow slice of C12's audit writer the gate
// needs to emit unauthorized_shop_access_attempt events.
type SecurityEventRecorder interface {
	RecordSecurityEvent(ctx context.Context, kind string, actorID *uuid.UUID, details map[string]any) error
}

type shopCtxKey struct{}

// ShopFromContext extracts the shop attached by Gate.
func ShopFromContext(ctx context.Context) *Shop {
	v, _ := ctx.Value(shopCtxKey{}).(*Shop)
	return v
}

// Gate returns middleware enforcing the C4 algorithm on routes shaped
// /shops/{shopId}/... . param is the chi URL param name (normally "shopId").
func Gate(lookup ShopLookup, events SecurityEventRecorder, logger *slog.Logger, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := chi.URLParam(r, param)

			// 1. shopId must be a well-formed identifier.
			if !shopIDPattern.MatchString(raw) {
				httpserver.RespondError(w, http.StatusBadRequest, "validation", "malformed shop id")
				return
			}
			shopID, err := uuid.Parse(raw)
			if err != nil {
				httpserver.RespondError(w, http.StatusBadRequest, "validation", "malformed shop id")
				return
			}

			// 2. Shop must exist.
			shop, err := lookup.GetByID(r.Context(), shopID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					httpserver.RespondError(w, http.StatusNotFound, "not_found", "shop not found")
					return
				}
				logger.Error("loading shop for tenancy gate", "error", err)
				httpserver.RespondError(w, http.StatusInternalServerError, "internal", "internal error")
				return
			}

			id := auth.FromContext(r.Context())
			if id == nil {
				httpserver.RespondError(w, http.StatusUnauthorized, "auth_required", "authentication required")
				return
			}

			// 3. Admins bypass the shop binding check entirely.
			// 4. Shop principals must be bound to exactly this shop.
			bound := auth.IsAdmin(id.Role) || (id.ShopID != nil && *id.ShopID == shopID)
			if !bound {
				detail := map[string]any{
					"attempted_shop_id": shopID.String(),
					"path":              r.URL.Path,
					"method":            r.Method,
				}
				if id.ShopID != nil {
					detail["principal_shop_id"] = id.ShopID.String()
				}
				if err := events.RecordSecurityEvent(r.Context(), "unauthorized_shop_access_attempt", &id.PrincipalID, detail); err != nil {
					logger.Error("recording security event", "error", err)
				}
				httpserver.RespondError(w, http.StatusForbidden, "forbidden_cross_shop", "not authorized for this shop")
				return
			}

			// 6. A suspended or deleted shop is closed to everyone but admins.
			if !auth.IsAdmin(id.Role) && (shop.Status == "suspended" || shop.Status == "deleted") {
				httpserver.RespondError(w, http.StatusForbidden, "forbidden_cross_shop", "shop is not active")
				return
			}

			ctx := context.WithValue(r.Context(), shopCtxKey{}, shop)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PgxShopLookup is the raw-SQL ShopLookup backing Gate in production.
type PgxShopLookup struct {
	Pool *pgxpool.Pool
}

func (l *PgxShopLookup) GetByID(ctx context.Context, id uuid.UUID) (*Shop, error) {
	var s Shop
	err := l.Pool.QueryRow(ctx, `SELECT id, status FROM shops WHERE id = $1 AND deleted_at IS NULL`, id).
		Scan(&s.ID, &s.Status)
	if err != nil {
		return nil, fmt.Errorf("loading shop %s: %w", id, err)
	}
	return &s, nil
}
