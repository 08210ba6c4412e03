package credential

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/beautymarket/backend/internal/auth"
	"github.com/beautymarket/backend/internal/httpserver"
)

// Handler serves the authentication endpoints: register, login, refresh,
// logout.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a credential Handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the unauthenticated auth endpoints under /api/v1/auth, except
// logout which requires an existing session.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/refresh", h.handleRefresh)
	r.With(auth.RequireAuth).Post("/logout", h.handleLogout)
	return r
}

type registerRequest struct {
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required,min=8"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

type loginRequest struct {
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

type refreshRequest struct {
	RefreshToken      string `json:"refresh_token" validate:"required"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

type sessionResponse struct {
	PrincipalID  string `json:"principal_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func toSessionResponse(p *SessionPair) sessionResponse {
	return sessionResponse{
		PrincipalID:  p.PrincipalID.String(),
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	pair, err := h.svc.Register(r.Context(), req.Email, req.Password, req.DeviceFingerprint)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, toSessionResponse(pair))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	pair, err := h.svc.Login(r.Context(), req.Email, req.Password, req.DeviceFingerprint)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, toSessionResponse(pair))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken, req.DeviceFingerprint)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, toSessionResponse(pair))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "auth_required", "authentication required")
		return
	}

	if err := h.svc.Logout(r.Context(), identity.PrincipalID); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]bool{"logged_out": true})
}
