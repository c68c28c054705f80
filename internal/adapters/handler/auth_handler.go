package handler

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/adapters/middleware"
	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/services"
)

type AuthHandler struct {
	authService *services.AuthService
	logger      *logrus.Logger
}

func NewAuthHandler(auth *services.AuthService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{authService: auth, logger: logger}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type DeviceTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type MeResponse struct {
	User        domain.Profile                  `json:"user"`
	RoleName    string                          `json:"role_name,omitempty"`
	Permissions map[string]domain.PermissionSet `json:"permissions"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	pair, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	pair, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

// Me returns the caller's profile and the permission table of their role.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	resp := MeResponse{User: p.User.Profile(), Permissions: map[string]domain.PermissionSet{}}
	if p.Role != nil {
		resp.RoleName = p.Role.Name
		if p.Role.IsActive {
			resp.Permissions = p.Role.Permissions.ToMap()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) RegisterDeviceToken(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var req DeviceTokenRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.authService.RegisterDeviceToken(r.Context(), user, req.Token); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Device token registered"})
}
