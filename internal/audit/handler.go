package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beautymarket/backend/internal/httpserver"
)

// Handler serves the admin-only audit/security event query surface.
type Handler struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewHandler creates an audit query Handler.
func NewHandler(pool *pgxpool.Pool, logger *slog.Logger) *Handler {
	return &Handler{pool: pool, logger: logger}
}

// Routes mounts GET /audit-events and GET /security-events. Callers are
// expected to wrap these with RequireMinRole(RoleAdmin).
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/audit-events", h.listAuditEvents)
	r.Get("/security-events", h.listSecurityEvents)
	return r
}

func (h *Handler) listAuditEvents(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseCursorParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	q := r.URL.Query()
	var (
		actorID, shopID uuid.UUID
		action          string
	)
	if v := q.Get("actor_id"); v != "" {
		actorID, _ = uuid.Parse(v)
	}
	if v := q.Get("shop_id"); v != "" {
		shopID, _ = uuid.Parse(v)
	}
	action = q.Get("action")

	after := time.Time{}
	afterID := uuid.Nil
	if params.After != nil {
		after = params.After.CreatedAt
		afterID = params.After.ID
	}

	rows, err := h.pool.Query(r.Context(), `
		SELECT id, actor_id, shop_id, action, resource_type, resource_id, before, after, ip_address, created_at
		FROM audit_events
		WHERE ($1::uuid IS NULL OR actor_id = $1)
		  AND ($2::uuid IS NULL OR shop_id = $2)
		  AND ($3::text = '' OR action = $3)
		  AND (created_at, id) > ($4, $5)
		ORDER BY created_at ASC, id ASC
		LIMIT $6`,
		nullableUUID(actorID), nullableUUID(shopID), action, after, afterID, params.Limit+1)
	if err != nil {
		h.logger.Error("listing audit events", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	defer rows.Close()

	events, err := scanAuditEvents(rows)
	if err != nil {
		h.logger.Error("scanning audit events", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	page := httpserver.NewCursorPage(events, params.Limit, func(e AuditEvent) httpserver.Cursor {
		return httpserver.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	httpserver.Respond(w, http.StatusOK, page)
}

func (h *Handler) listSecurityEvents(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseCursorParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	q := r.URL.Query()
	kind := q.Get("kind")
	var shopID uuid.UUID
	if v := q.Get("shop_id"); v != "" {
		shopID, _ = uuid.Parse(v)
	}

	after := time.Time{}
	afterID := uuid.Nil
	if params.After != nil {
		after = params.After.CreatedAt
		afterID = params.After.ID
	}

	rows, err := h.pool.Query(r.Context(), `
		SELECT id, actor_id, shop_id, kind, details, ip_address, created_at
		FROM security_events
		WHERE ($1::text = '' OR kind = $1)
		  AND ($2::uuid IS NULL OR shop_id = $2)
		  AND (created_at, id) > ($3, $4)
		ORDER BY created_at ASC, id ASC
		LIMIT $5`,
		kind, nullableUUID(shopID), after, afterID, params.Limit+1)
	if err != nil {
		h.logger.Error("listing security events", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	defer rows.Close()

	events, err := scanSecurityEvents(rows)
	if err != nil {
		h.logger.Error("scanning security events", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	page := httpserver.NewCursorPage(events, params.Limit, func(e SecurityEvent) httpserver.Cursor {
		return httpserver.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	httpserver.Respond(w, http.StatusOK, page)
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
