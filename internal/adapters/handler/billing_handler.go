package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/services"
)

type BillingHandler struct {
	billing *services.BillingService
	logger  *logrus.Logger
}

func NewBillingHandler(billing *services.BillingService, logger *logrus.Logger) *BillingHandler {
	return &BillingHandler{billing: billing, logger: logger}
}

func (h *BillingHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	items, err := h.billing.List(r.Context(), user, services.BillingFilter{
		StudentID: q.Get("student_id"),
		BranchID:  q.Get("branch_id"),
		Status:    q.Get("status"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BillingHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var req services.BillingInput
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	b, err := h.billing.Create(r.Context(), user, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Pay marks a billing paid. The receipt is produced best-effort, so a
// successful response may still carry no receipt_url.
func (h *BillingHandler) Pay(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	var req domain.Payment
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	b, err := h.billing.Pay(r.Context(), user, mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BillingHandler) RegenerateReceipt(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	b, err := h.billing.RegenerateReceipt(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BillingHandler) DownloadReceipt(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	data, filename, err := h.billing.DownloadReceipt(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.WithError(err).Warn("failed to write receipt")
	}
}
