package notification

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/beautymarket/backend/internal/auth"
	"github.com/beautymarket/backend/internal/httpserver"
)

// Handler serves device push-token registration.
type Handler struct {
	store  *Store
	logger *slog.Logger
}

// NewHandler creates a notification Handler.
func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Routes mounts the push-token endpoints under /api/v1/notifications.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleRegister)
	return r
}

type registerRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=ios android"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_required", "authentication required")
		return
	}

	var req registerRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.store.RegisterToken(r.Context(), identity.PrincipalID, req.Token, req.Platform); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, map[string]bool{"registered": true})
}
