package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/services"
)

type StudentHandler struct {
	students *services.StudentService
	logger   *logrus.Logger
}

func NewStudentHandler(students *services.StudentService, logger *logrus.Logger) *StudentHandler {
	return &StudentHandler{students: students, logger: logger}
}

type ParentAccountRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	students, err := h.students.List(r.Context(), user, services.StudentFilter{
		BranchID: q.Get("branch_id"),
		ClassID:  q.Get("class_id"),
		Search:   q.Get("search"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (h *StudentHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.StudentInput
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	student, err := h.students.Create(r.Context(), user, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, student)
}

func (h *StudentHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	student, err := h.students.Get(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (h *StudentHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.StudentInput
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	student, err := h.students.Update(r.Context(), user, mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (h *StudentHandler) Archive(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.students.Archive(r.Context(), user, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Student archived"})
}

func (h *StudentHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	data, contentType, err := readUpload(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	student, err := h.students.UploadPhoto(r.Context(), user, mux.Vars(r)["id"], data, contentType)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (h *StudentHandler) CreateParentAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var req ParentAccountRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	parent, err := h.students.CreateParentAccount(r.Context(), user, mux.Vars(r)["id"], req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, parent.Profile())
}
