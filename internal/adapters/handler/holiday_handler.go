package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/services"
)

type HolidayHandler struct {
	holidays *services.HolidayService
	logger   *logrus.Logger
}

func NewHolidayHandler(holidays *services.HolidayService, logger *logrus.Logger) *HolidayHandler {
	return &HolidayHandler{holidays: holidays, logger: logger}
}

func (h *HolidayHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	items, err := h.holidays.List(r.Context(), user, services.HolidayFilter{
		AcademicYear: q.Get("academic_year"),
		BranchID:     q.Get("branch_id"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *HolidayHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.holidays.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *HolidayHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.HolidayInput
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	item, err := h.holidays.Create(r.Context(), user, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *HolidayHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.HolidayInput
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	item, err := h.holidays.Update(r.Context(), user, mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *HolidayHandler) Archive(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.holidays.Archive(r.Context(), user, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Holiday archived"})
}
