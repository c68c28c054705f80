package handler

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/services"
)

type DashboardHandler struct {
	dashboard *services.DashboardService
	logger    *logrus.Logger
}

func NewDashboardHandler(dashboard *services.DashboardService, logger *logrus.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, logger: logger}
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	stats, err := h.dashboard.Stats(r.Context(), user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
