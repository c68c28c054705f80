package handler

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/services"
)

type AttendanceHandler struct {
	attendance *services.AttendanceService
	logger     *logrus.Logger
}

func NewAttendanceHandler(attendance *services.AttendanceService, logger *logrus.Logger) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, logger: logger}
}

type BulkAttendanceRequest struct {
	domain.AttendanceKey
	Attendance []domain.AttendanceEntry `json:"attendance" validate:"required,dive"`
}

func keyFromQuery(r *http.Request) domain.AttendanceKey {
	q := r.URL.Query()
	return domain.AttendanceKey{BranchID: q.Get("branch_id"), ClassID: q.Get("class_id"), Date: q.Get("date")}
}

func (h *AttendanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	rec, err := h.attendance.Get(r.Context(), user, keyFromQuery(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *AttendanceHandler) MarkBulk(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var req BulkAttendanceRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	rec, err := h.attendance.MarkBulk(r.Context(), user, req.AttendanceKey, req.Attendance)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *AttendanceHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var key domain.AttendanceKey
	if err := decodeAndValidate(r, &key); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	rec, err := h.attendance.Finalize(r.Context(), user, key)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *AttendanceHandler) Classes(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	classes, err := h.attendance.Classes(r.Context(), user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, classes)
}

func (h *AttendanceHandler) Students(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	students, err := h.attendance.StudentsForClass(r.Context(), user, q.Get("branch_id"), q.Get("class_id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}
