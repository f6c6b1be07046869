package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pilltick/backend/internal/service"
	"go.uber.org/zap"
)

// AdherenceHandler implements the adherence statistics endpoint
type AdherenceHandler struct {
	service *service.AdherenceService
	logger  *zap.Logger
}

// NewAdherenceHandler creates a new AdherenceHandler
func NewAdherenceHandler(service *service.AdherenceService, logger *zap.Logger) *AdherenceHandler {
	return &AdherenceHandler{
		service: service,
		logger:  logger,
	}
}

// Stats returns compliance rate and streak derived from the full history
func (h *AdherenceHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to compute adherence stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to compute adherence stats",
			Details: stringPtr(err.Error()),
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
