package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/services"
)

// RegistrationHandler serves staff and parent account administration.
type RegistrationHandler struct {
	registrationService *services.RegistrationService
	logger              *logrus.Logger
}

func NewRegistrationHandler(registration *services.RegistrationService, logger *logrus.Logger) *RegistrationHandler {
	return &RegistrationHandler{registrationService: registration, logger: logger}
}

type PasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

type StatusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterUserInput
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.registrationService.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user.Profile())
}

func (h *RegistrationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	users, err := h.registrationService.List(r.Context(), services.UserFilter{
		Role:     q.Get("role"),
		BranchID: q.Get("branch_id"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *RegistrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.registrationService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}

func (h *RegistrationHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.registrationService.SetPassword(r.Context(), mux.Vars(r)["id"], req.Password); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password updated"})
}

func (h *RegistrationHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.registrationService.SetActive(r.Context(), mux.Vars(r)["id"], *req.IsActive)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}

func (h *RegistrationHandler) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	var req services.StaffPatch
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.registrationService.UpdateStaff(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}

func (h *RegistrationHandler) DeactivateStaff(w http.ResponseWriter, r *http.Request) {
	if err := h.registrationService.DeactivateStaff(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
