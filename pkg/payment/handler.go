package payment

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/beautymarket/backend/internal/auth"
	"github.com/beautymarket/backend/internal/httpserver"
)

// Handler serves payment initiation and gateway webhook intake.
type Handler struct {
	svc           *Service
	webhookSecret string
	maxSkew       time.Duration
	logger        *slog.Logger
}

// NewHandler creates a payment Handler. webhookSecret/maxSkew configure the
// inbound signature check on Routes' webhook endpoint.
func NewHandler(svc *Service, webhookSecret string, maxSkew time.Duration, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, webhookSecret: webhookSecret, maxSkew: maxSkew, logger: logger}
}

// Routes mounts the shop-scoped payment endpoints under
// /shops/{shopId}/payments. Callers mount this behind the Tenancy Gate.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/initiate", h.handleInitiate)
	return r
}

// WebhookRoutes mounts the gateway-facing intake endpoint, which carries its
// own signature-based authentication and must NOT sit behind the Tenancy
// Gate or principal resolver.
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleWebhook)
	return r
}

type initiateRequest struct {
	ReservationID string `json:"reservation_id" validate:"required,uuid"`
	Method        string `json:"method" validate:"required"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	PointsToApply int64  `json:"points_to_apply" validate:"gte=0"`
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "shopId"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "malformed shop id")
		return
	}

	identity := auth.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_required", "authentication required")
		return
	}

	var req initiateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	reservationID, err := uuid.Parse(req.ReservationID)
	if err != nil {
		httpserver.RespondError(w, http.StatusUnprocessableEntity, "validation", "invalid reservation_id")
		return
	}

	result, err := h.svc.Initiate(r.Context(), InitiateInput{
		ReservationID: reservationID,
		UserID:        identity.PrincipalID,
		ShopID:        shopID,
		Method:        req.Method,
		Amount:        req.Amount,
		PointsToApply: req.PointsToApply,
	})
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, result)
}

// handleWebhook authenticates the inbound delivery via HMAC signature before
// touching the body as JSON, so a forged or replayed payload never reaches
// the orchestrator.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "unreadable body")
		return
	}

	sig := r.Header.Get("X-Gateway-Signature")
	ts := r.Header.Get("X-Gateway-Timestamp")
	if err := VerifySignature(h.webhookSecret, body, sig, ts, h.maxSkew, time.Now().UTC()); err != nil {
		h.logger.Warn("webhook signature rejected", "error", err)
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_invalid", "signature verification failed")
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "validation", "malformed webhook body")
		return
	}

	if err := h.svc.ProcessWebhook(r.Context(), payload); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]bool{"received": true})
}
