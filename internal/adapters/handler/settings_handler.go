package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/services"
)

type SettingsHandler struct {
	settings *services.SettingsService
	logger   *logrus.Logger
}

func NewSettingsHandler(settings *services.SettingsService, logger *logrus.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: logger}
}

type ClassOptionsRequest struct {
	ClassOptions []string `json:"class_options" validate:"required,dive,required"`
}

type FeeStructuresRequest struct {
	FeeStructures []domain.FeeStructureTemplate `json:"fee_structures" validate:"required,dive"`
}

type CCTVToggleRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.settings.Get(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *SettingsHandler) SetClassOptions(w http.ResponseWriter, r *http.Request) {
	var req ClassOptionsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.respond(w, r)(h.settings.SetClassOptions(r.Context(), req.ClassOptions))
}

func (h *SettingsHandler) SetFeeStructures(w http.ResponseWriter, r *http.Request) {
	var req FeeStructuresRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.respond(w, r)(h.settings.SetFeeStructures(r.Context(), req.FeeStructures))
}

func (h *SettingsHandler) SetCCTV(w http.ResponseWriter, r *http.Request) {
	var req CCTVToggleRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.respond(w, r)(h.settings.SetCCTVEnabled(r.Context(), *req.Enabled))
}

// SetAcademicYearConfig stores the window and returns the academic year it
// makes current.
func (h *SettingsHandler) SetAcademicYearConfig(w http.ResponseWriter, r *http.Request) {
	var req domain.AcademicYearConfig
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	year, err := h.settings.SetAcademicYearConfig(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, year)
}

func (h *SettingsHandler) AddBanner(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := readUpload(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	st, err := h.settings.AddBanner(r.Context(), data, contentType)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *SettingsHandler) RemoveBanner(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: banner index must be an integer", domain.ErrValidation))
		return
	}
	h.respond(w, r)(h.settings.RemoveBanner(r.Context(), index))
}

func (h *SettingsHandler) AcademicYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.settings.ListAcademicYears(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, years)
}

func (h *SettingsHandler) CurrentAcademicYear(w http.ResponseWriter, r *http.Request) {
	year, err := h.settings.CurrentAcademicYear(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, year)
}

func (h *SettingsHandler) respond(w http.ResponseWriter, r *http.Request) func(*domain.AppSettings, error) {
	return func(st *domain.AppSettings, err error) {
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}
