package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/services"
)

type ActivityHandler struct {
	activities *services.ActivityService
	logger     *logrus.Logger
}

func NewActivityHandler(activities *services.ActivityService, logger *logrus.Logger) *ActivityHandler {
	return &ActivityHandler{activities: activities, logger: logger}
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	items, err := h.activities.List(r.Context(), user, r.URL.Query().Get("student_id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.ActivityInput
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	item, err := h.activities.Create(r.Context(), user, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *ActivityHandler) AddPhoto(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	data, contentType, err := readUpload(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	upload := services.Upload{Data: data, ContentType: contentType, Caption: r.FormValue("caption")}
	item, err := h.activities.AddPhoto(r.Context(), user, mux.Vars(r)["id"], upload)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
