package reservation

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/beautymarket/backend/internal/auth"
	"github.com/beautymarket/backend/internal/httpserver"
)

// Handler serves the shop-scoped reservation API.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a reservation Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the reservation endpoints under /shops/{shopId}/reservations.
// Callers mount this behind the Tenancy Gate.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Patch("/{id}", h.handleTransition)
	return r
}

type createRequest struct {
	CustomerID    string   `json:"customer_id" validate:"required,uuid"`
	ServiceIDs    []string `json:"service_ids" validate:"required,min=1,dive,uuid"`
	Datetime      string   `json:"datetime" validate:"required"`
	DepositIntent bool     `json:"deposit_intent"`
	PointsToApply int64    `json:"points_to_apply" validate:"gte=0"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "shopId"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "malformed shop id")
		return
	}

	var req createRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		httpserver.RespondError(w, http.StatusUnprocessableEntity, "validation", "invalid customer_id")
		return
	}
	datetime, err := time.Parse(time.RFC3339, req.Datetime)
	if err != nil {
		httpserver.RespondError(w, http.StatusUnprocessableEntity, "validation", "datetime must be RFC 3339")
		return
	}
	if datetime.Before(time.Now()) {
		httpserver.RespondError(w, http.StatusUnprocessableEntity, "validation", "datetime must not be in the past")
		return
	}
	serviceIDs := make([]uuid.UUID, 0, len(req.ServiceIDs))
	for _, s := range req.ServiceIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			httpserver.RespondError(w, http.StatusUnprocessableEntity, "validation", "invalid service id")
			return
		}
		serviceIDs = append(serviceIDs, id)
	}

	res, err := h.svc.Create(r.Context(), CreateInput{
		ShopID:        shopID,
		CustomerID:    customerID,
		ServiceIDs:    serviceIDs,
		Datetime:      datetime,
		DepositIntent: req.DepositIntent,
		PointsToApply: req.PointsToApply,
	})
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, res)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "malformed reservation id")
		return
	}

	res, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "reservation not found")
		return
	}
	httpserver.Respond(w, http.StatusOK, res)
}

type transitionRequest struct {
	To     string `json:"to" validate:"required"`
	Reason string `json:"reason"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "malformed reservation id")
		return
	}

	var req transitionRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	identity := auth.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_required", "authentication required")
		return
	}

	res, err := h.svc.Transition(r.Context(), id, req.To, identity.PrincipalID, req.Reason)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, res)
}
