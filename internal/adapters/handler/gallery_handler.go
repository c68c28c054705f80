package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/services"
)

type GalleryHandler struct {
	gallery *services.GalleryService
	logger  *logrus.Logger
}

func NewGalleryHandler(gallery *services.GalleryService, logger *logrus.Logger) *GalleryHandler {
	return &GalleryHandler{gallery: gallery, logger: logger}
}

func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	albums, err := h.gallery.List(r.Context(), user, r.URL.Query().Get("branch_id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, albums)
}

func (h *GalleryHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	album, err := h.gallery.Get(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, album)
}

func (h *GalleryHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.AlbumInput
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	album, err := h.gallery.Create(r.Context(), user, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, album)
}

func (h *GalleryHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.AlbumInput
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	album, err := h.gallery.Update(r.Context(), user, mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, album)
}

func (h *GalleryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.gallery.Delete(r.Context(), user, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GalleryHandler) AddPhotos(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	uploads, err := readUploads(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	album, err := h.gallery.AddPhotos(r.Context(), user, mux.Vars(r)["id"], uploads)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, album)
}

func (h *GalleryHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	album, err := h.gallery.DeletePhoto(r.Context(), user, vars["id"], vars["photoID"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, album)
}
