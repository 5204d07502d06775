package handler

import (
	"net/http"

	"icu-bed-management/internal/service"
	"icu-bed-management/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SettingsHandler struct {
	settingsService *service.SettingsService
	rosterService   *service.RosterService
	logger          *zap.Logger
}

func NewSettingsHandler(settingsService *service.SettingsService, rosterService *service.RosterService, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
		rosterService:   rosterService,
		logger:          logger,
	}
}

type UpdateSettingsRequest struct {
	UnitName  string `json:"unit_name" binding:"required"`
	TotalBeds int    `json:"total_beds" binding:"required"`
}

// GetSettings returns the unit settings
// GET /api/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.Get(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, settings)
}

// UpdateSettings changes the unit name and bed count and returns the resized roster
// PUT /api/settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	settings, err := h.settingsService.Update(c.Request.Context(), req.UnitName, req.TotalBeds)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	beds, err := h.rosterService.EnsureRoster(c.Request.Context(), settings.TotalBeds)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"settings": settings,
		"roster":   beds,
	})
}
