package analytics_api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ms-parking/internal/analytics"
	"ms-parking/internal/logger"
	"ms-parking/internal/models"
	"ms-parking/internal/utils"

	"github.com/go-chi/chi/v5"
)

type DashboardReader interface {
	Period(startRaw, endRaw string) (time.Time, time.Time, error)
	GetDashboard(ctx context.Context, start, end time.Time) (*analytics.Dashboard, error)
}

// Handler handles dashboard statistics endpoints
type Handler struct {
	Service DashboardReader
	Logger  *logger.Logger
}

func NewHandler(service DashboardReader, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: logger}
}

// RegisterRoutes registers the dashboard routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard/statistics", h.GetDashboardStatistics)
}

func (h *Handler) GetDashboardStatistics(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.Service.Period(r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
	if err != nil {
		h.Logger.Warn("ANALYTICS", fmt.Sprintf("Invalid dashboard period: %v", err))
		h.write(w, http.StatusBadRequest, utils.ErrorResponse("Invalid period", err.Error()))
		return
	}

	dashboard, err := h.Service.GetDashboard(r.Context(), start, end)
	if err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("Dashboard %s..%s: %v", start.Format("2006-01-02"), end.Format("2006-01-02"), err))
		status := http.StatusInternalServerError
		if models.KindOf(err) == models.KindInfrastructure {
			status = http.StatusServiceUnavailable
		}
		h.write(w, status, utils.ErrorResponse("Statistics unavailable", "internal error"))
		return
	}

	h.Logger.Debug("ANALYTICS", fmt.Sprintf("Dashboard %s..%s: %d vehicles today, %d active",
		dashboard.StartDate, dashboard.EndDate, dashboard.TotalVehiclesToday, dashboard.ActiveVehicles))
	h.write(w, http.StatusOK, utils.SuccessResponse("Dashboard statistics", dashboard))
}

func (h *Handler) write(w http.ResponseWriter, status int, resp utils.APIResponse) {
	if err := utils.WriteJSON(w, status, resp); err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("failed to encode response: %v", err))
	}
}
