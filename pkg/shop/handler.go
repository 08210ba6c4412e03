package shop

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/beautymarket/backend/internal/auth"
	"github.com/beautymarket/backend/internal/httpserver"
)

// Handler serves shop registration, catalog management, and admin
// verification endpoints.
type Handler struct {
	catalog *Catalog
	logger  *slog.Logger
}

// NewHandler creates a shop Handler.
func NewHandler(catalog *Catalog, logger *slog.Logger) *Handler {
	return &Handler{catalog: catalog, logger: logger}
}

// Routes mounts /api/v1/shops endpoints. Admin routes are expected to be
// wrapped externally with auth.RequireMinRole(auth.RoleAdmin).
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/{shopId}", h.handleGet)
	r.Get("/{shopId}/services", h.handleListServices)
	r.Post("/{shopId}/services", h.handleAddService)
	r.Patch("/{shopId}/services/{serviceId}", h.handleSetServiceAvailability)
	return r
}

// AdminRoutes mounts /api/v1/admin/shops endpoints.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{id}/approve", h.handleApprove)
	r.Post("/{id}/reject", h.handleReject)
	r.Post("/{id}/suspend", h.handleSuspend)
	r.Post("/{id}/reinstate", h.handleReinstate)
	return r
}

type createShopRequest struct {
	Name           string `json:"name" validate:"required"`
	Type           string `json:"type" validate:"required"`
	CommissionRate int    `json:"commission_rate" validate:"min=0,max=100"`
	Capacity       int    `json:"capacity" validate:"min=0"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_required", "authentication required")
		return
	}

	var req createShopRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	sh, err := h.catalog.CreateShop(r.Context(), CreateShopInput{
		OwnerID:        identity.PrincipalID,
		Name:           req.Name,
		Type:           req.Type,
		CommissionRate: req.CommissionRate,
		Capacity:       req.Capacity,
	})
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, sh)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "shopId"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "malformed shop id")
		return
	}
	sh, err := h.catalog.GetShop(r.Context(), id)
	if err != nil {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "shop not found")
		return
	}
	httpserver.Respond(w, http.StatusOK, sh)
}

func (h *Handler) handleListServices(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "shopId"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "malformed shop id")
		return
	}
	services, err := h.catalog.ListServices(r.Context(), shopID)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, services)
}

type addServiceRequest struct {
	Name            string `json:"name" validate:"required"`
	PriceMin        int64  `json:"price_min" validate:"min=0"`
	PriceMax        int64  `json:"price_max" validate:"min=0"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=1"`
}

func (h *Handler) handleAddService(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "shopId"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "malformed shop id")
		return
	}

	var req addServiceRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	sv, err := h.catalog.AddService(r.Context(), AddServiceInput{
		ShopID:          shopID,
		Name:            req.Name,
		PriceMin:        req.PriceMin,
		PriceMax:        req.PriceMax,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, sv)
}

type setAvailabilityRequest struct {
	Available bool `json:"available"`
}

func (h *Handler) handleSetServiceAvailability(w http.ResponseWriter, r *http.Request) {
	serviceID, err := uuid.Parse(chi.URLParam(r, "serviceId"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "malformed service id")
		return
	}
	var req setAvailabilityRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	if err := h.catalog.SetServiceAvailability(r.Context(), serviceID, req.Available); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]bool{"available": req.Available})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.respondApproval(w, r, true)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.respondApproval(w, r, false)
}

func (h *Handler) respondApproval(w http.ResponseWriter, r *http.Request, approved bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "malformed shop id")
		return
	}
	sh, err := h.catalog.ApproveShop(r.Context(), id, approved)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, sh)
}

func (h *Handler) handleSuspend(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "malformed shop id")
		return
	}
	if err := h.catalog.Suspend(r.Context(), id); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": StatusSuspended})
}

func (h *Handler) handleReinstate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "malformed shop id")
		return
	}
	if err := h.catalog.Reinstate(r.Context(), id); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": StatusActive})
}
