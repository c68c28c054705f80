package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/services"
)

// AnnouncementHandler serves the feed for both staff and parents. Visibility
// is resolved per caller by the service.
type AnnouncementHandler struct {
	announcements *services.AnnouncementService
	logger        *logrus.Logger
}

func NewAnnouncementHandler(announcements *services.AnnouncementService, logger *logrus.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{announcements: announcements, logger: logger}
}

type TrackRequest struct {
	Event string `json:"event" validate:"required,oneof=click view"`
}

func listParams(r *http.Request) (services.ListParams, error) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return services.ListParams{}, err
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return services.ListParams{}, err
	}
	return services.ListParams{BranchID: r.URL.Query().Get("branch_id"), Limit: limit, Offset: offset}, nil
}

func (h *AnnouncementHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	params, err := listParams(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	page, err := h.announcements.List(r.Context(), user, params)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *AnnouncementHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	view, err := h.announcements.Get(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *AnnouncementHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.AnnouncementInput
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	view, err := h.announcements.Create(r.Context(), user, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *AnnouncementHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.AnnouncementPatch
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	view, err := h.announcements.Update(r.Context(), user, mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *AnnouncementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.announcements.Delete(r.Context(), user, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Announcement deleted"})
}

func (h *AnnouncementHandler) Track(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var req TrackRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.announcements.Track(r.Context(), user, mux.Vars(r)["id"], req.Event); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Tracked"})
}
