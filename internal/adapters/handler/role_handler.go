package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/services"
)

type RoleHandler struct {
	roles  *services.RoleService
	logger *logrus.Logger
}

func NewRoleHandler(roles *services.RoleService, logger *logrus.Logger) *RoleHandler {
	return &RoleHandler{roles: roles, logger: logger}
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	role, err := h.roles.Get(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// Modules lists every permission module with its display name.
func (h *RoleHandler) Modules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.roles.Modules())
}

func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateRoleInput
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	role, err := h.roles.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateRoleInput
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	role, err := h.roles.Update(r.Context(), mux.Vars(r)["key"], req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}
