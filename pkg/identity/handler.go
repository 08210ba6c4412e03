package identity

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/beautymarket/backend/internal/auth"
	"github.com/beautymarket/backend/internal/httpserver"
)

// Handler serves the identity-verification handshake endpoints.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates an identity Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the identity-verification endpoints under
// /api/v1/identity-verifications.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handlePrepare)
	r.Post("/{id}/verify", h.handleVerify)
	return r
}

type prepareRequest struct {
	CustomerName  string `json:"customer_name" validate:"required"`
	CustomerPhone string `json:"customer_phone" validate:"required"`
	MinAge        int    `json:"min_age" validate:"gte=0"`
	CarrierOnly   string `json:"carrier_only"`
	Title         string `json:"title"`
}

func (h *Handler) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var req prepareRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	v, err := h.svc.Prepare(r.Context(), PrepareInput{
		Customer:    CustomerInfo{Name: req.CustomerName, Phone: req.CustomerPhone},
		MinAge:      req.MinAge,
		CarrierOnly: req.CarrierOnly,
		Title:       req.Title,
	})
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, v)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "malformed verification id")
		return
	}

	identity := auth.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_required", "authentication required")
		return
	}

	v, err := h.svc.Verify(r.Context(), id, identity.PrincipalID)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, v)
}
