package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/services"
)

// MobileHandler serves the parent app. Every route expects a parent caller.
type MobileHandler struct {
	mobile *services.MobileService
	cctv   *services.CCTVService
	logger *logrus.Logger
}

func NewMobileHandler(mobile *services.MobileService, cctv *services.CCTVService, logger *logrus.Logger) *MobileHandler {
	return &MobileHandler{mobile: mobile, cctv: cctv, logger: logger}
}

func (h *MobileHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	d, err := h.mobile.Dashboard(r.Context(), user, r.URL.Query().Get("student_id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *MobileHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	p, err := h.mobile.Profile(r.Context(), user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *MobileHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	month, err := queryInt(r, "month")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	year, err := queryInt(r, "year")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	logs, err := h.mobile.AttendanceHistory(r.Context(), user, mux.Vars(r)["student_id"], month, year)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *MobileHandler) Streams(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	streams, err := h.cctv.Streams(r.Context(), user, mux.Vars(r)["student_id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, streams)
}

func (h *MobileHandler) StreamURL(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	link, err := h.cctv.StreamURL(r.Context(), user, vars["student_id"], vars["stream_id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}
