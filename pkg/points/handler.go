package points

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/beautymarket/backend/internal/auth"
	"github.com/beautymarket/backend/internal/httpserver"
)

// Handler serves the authenticated user's point balance/summary.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a points Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts /api/v1/points endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/balance", h.handleBalance)
	r.Get("/summary", h.handleSummary)
	return r
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_required", "authentication required")
		return
	}
	balance, err := h.svc.Balance(r.Context(), identity.PrincipalID)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_required", "authentication required")
		return
	}
	summary, err := h.svc.Summary(r.Context(), identity.PrincipalID)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, summary)
}
