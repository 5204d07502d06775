package handler

import (
	"context"
	"errors"
	"net/http"

	"icu-bed-management/internal/extraction"
	"icu-bed-management/internal/service"
	"icu-bed-management/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service errors onto HTTP status codes
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrBedNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "Bed not found")
	case errors.Is(err, service.ErrInvalidBedNumber),
		errors.Is(err, service.ErrInvalidWindow),
		errors.Is(err, service.ErrInvalidSettings):
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, extraction.ErrMalformedPayload):
		utils.ErrorResponse(c, http.StatusUnprocessableEntity, "Extraction returned an unusable result; bed not modified")
	case errors.Is(err, context.DeadlineExceeded):
		utils.ErrorResponse(c, http.StatusGatewayTimeout, "Extraction timed out; bed not modified")
	case errors.Is(err, extraction.ErrExtractionUnavailable):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Extraction service unavailable; bed not modified")
	default:
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
}

// bedParam reads and normalizes the :bed path parameter
func bedParam(c *gin.Context) (string, bool) {
	bedNumber, err := service.NormalizeBedNumber(c.Param("bed"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return bedNumber, true
}
