package handler

import (
	"icu-bed-management/internal/service"
	"icu-bed-management/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	metricsService  *service.MetricsService
	settingsService *service.SettingsService
	logger          *zap.Logger
}

func NewDashboardHandler(metricsService *service.MetricsService, settingsService *service.SettingsService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		metricsService:  metricsService,
		settingsService: settingsService,
		logger:          logger,
	}
}

// GetDashboard returns the unit KPIs for a window
// GET /api/dashboard?period=weekly|monthly or ?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	window, err := service.ParseWindow(
		c.Query("period"),
		c.Query("from"),
		c.Query("to"),
		h.metricsService.Now(),
	)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	kpi, err := h.metricsService.ComputeMetrics(c.Request.Context(), window)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	settings, err := h.settingsService.Get(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	targets := h.metricsService.Targets()
	utils.SuccessResponse(c, gin.H{
		"unit_name": settings.UnitName,
		"kpi":       kpi,
		"targets": gin.H{
			"ventilation_days":  targets.VentilationDays,
			"mobility_rate_pct": targets.MobilityRatePct,
		},
	})
}
