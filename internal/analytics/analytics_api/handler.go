package analytics_api

import (
	"fmt"
	"net/http"

	"eventpilot/internal/analytics"
	"eventpilot/internal/logger"
	"eventpilot/internal/utils"

	"github.com/go-chi/chi/v5"
)

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// AdminRoutes registers the analytics routes on the admin router
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/analytics/dashboard", h.GetDashboard)
	r.Get("/sessions/{id}/analytics", h.GetSessionAnalytics)
}

// GetDashboard handles GET /analytics/dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Service.Dashboard(r.Context())
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Failed to build dashboard: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Dashboard retrieved", d)
}

// GetSessionAnalytics handles GET /sessions/{id}/analytics
func (h *Handler) GetSessionAnalytics(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	summary, err := h.Service.SessionSummary(r.Context(), sessionID)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Failed to get analytics for session %s: %v", sessionID, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Session analytics retrieved", summary)
}
