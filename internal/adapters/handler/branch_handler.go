package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/services"
)

type BranchHandler struct {
	branches *services.BranchService
	logger   *logrus.Logger
}

func NewBranchHandler(branches *services.BranchService, logger *logrus.Logger) *BranchHandler {
	return &BranchHandler{branches: branches, logger: logger}
}

func (h *BranchHandler) List(w http.ResponseWriter, r *http.Request) {
	branches, err := h.branches.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, branches)
}

func (h *BranchHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.branches.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BranchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.BranchInput
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	b, err := h.branches.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *BranchHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req services.BranchInput
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	b, err := h.branches.Update(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BranchHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if err := h.branches.Archive(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Branch archived"})
}
