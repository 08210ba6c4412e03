package referral

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/beautymarket/backend/internal/auth"
	"github.com/beautymarket/backend/internal/httpserver"
)

// Handler serves referral-code onboarding endpoints.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a referral Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts /api/v1/referrals endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/redeem", h.handleRedeem)
	return r
}

type redeemRequest struct {
	Code string `json:"code" validate:"required"`
}

func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_required", "authentication required")
		return
	}

	var req redeemRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.svc.SetReferredBy(r.Context(), identity.PrincipalID, req.Code); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]bool{"redeemed": true})
}
