package handler

import (
	"net/http"

	"icu-bed-management/pkg/utils"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the API on r
func RegisterRoutes(r *gin.Engine, beds *BedHandler, dashboard *DashboardHandler, settings *SettingsHandler, metricsHandler http.Handler) {
	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		utils.SuccessResponse(c, gin.H{
			"status":  "healthy",
			"service": "icu-bed-management",
		})
	})

	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	api := r.Group("/api")
	{
		api.GET("/beds", beds.ListBeds)
		api.GET("/beds/:bed", beds.GetBed)
		api.PATCH("/beds/:bed", beds.UpdateBed)
		api.PUT("/beds/:bed/record", beds.UpdateClinicalNote)
		api.POST("/beds/:bed/recordings", beds.UploadRecording)
		api.POST("/beds/:bed/discharge", beds.Discharge)
		api.GET("/beds/:bed/indicators", beds.GetIndicators)

		api.GET("/dashboard", dashboard.GetDashboard)

		api.GET("/settings", settings.GetSettings)
		api.PUT("/settings", settings.UpdateSettings)
	}
}
