package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pilltick/backend/internal/service"
	"github.com/pilltick/backend/pkg/model"
	"go.uber.org/zap"
)

// DoseHandler implements the dose view and logging endpoints
type DoseHandler struct {
	reconcile *service.ReconcileService
	doseLogs  *service.DoseLogService
	logger    *zap.Logger
}

// NewDoseHandler creates a new DoseHandler
func NewDoseHandler(reconcile *service.ReconcileService, doseLogs *service.DoseLogService, logger *zap.Logger) *DoseHandler {
	return &DoseHandler{
		reconcile: reconcile,
		doseLogs:  doseLogs,
		logger:    logger,
	}
}

// TodayResponse is the reconciled dose view
type TodayResponse struct {
	Pending  []model.UpcomingDose `json:"pending"`
	Archived []model.UpcomingDose `json:"archived"`
}

// Today returns the pending and archived doses for the next 24 hours
func (h *DoseHandler) Today(c *gin.Context) {
	pending, archived, err := h.reconcile.Reconcile(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to reconcile doses", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to reconcile doses",
			Details: stringPtr(err.Error()),
		})
		return
	}

	c.JSON(http.StatusOK, TodayResponse{
		Pending:  pending,
		Archived: archived,
	})
}

// LogDoseRequest is the body for recording a dose
type LogDoseRequest struct {
	MedicationID  string    `json:"medication_id" binding:"required"`
	ScheduledTime time.Time `json:"scheduled_time" binding:"required"`
	Status        string    `json:"status" binding:"required"`
	PhotoURI      *string   `json:"photo_uri"`
	Notes         *string   `json:"notes"`
}

// Log records a taken or skipped dose
func (h *DoseHandler) Log(c *gin.Context) {
	var req LogDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	log, err := h.doseLogs.LogDose(
		c.Request.Context(),
		req.MedicationID,
		req.ScheduledTime,
		model.DoseStatus(req.Status),
		req.PhotoURI,
		req.Notes,
	)
	if err != nil {
		h.logger.Error("failed to record dose",
			zap.Error(err),
			zap.String("medication_id", req.MedicationID),
		)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Failed to record dose",
			Details: stringPtr(err.Error()),
		})
		return
	}

	c.JSON(http.StatusCreated, log)
}

// Undo deletes today's authoritative log for a medication, returning the
// dose to pending. Only skipped doses can be undone.
func (h *DoseHandler) Undo(c *gin.Context) {
	medicationID := c.Param("medicationId")

	if err := h.doseLogs.UndoToday(c.Request.Context(), medicationID); err != nil {
		switch {
		case errors.Is(err, service.ErrNoLogToday):
			c.JSON(http.StatusNotFound, ErrorResponse{
				Code:    "NOT_FOUND",
				Message: "No dose log recorded today",
			})
		case errors.Is(err, service.ErrTakenFinal):
			c.JSON(http.StatusConflict, ErrorResponse{
				Code:    "TAKEN_FINAL",
				Message: "A taken dose is final for the day",
			})
		default:
			h.logger.Error("failed to undo dose log",
				zap.Error(err),
				zap.String("medication_id", medicationID),
			)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Code:    "INTERNAL_ERROR",
				Message: "Failed to undo dose log",
				Details: stringPtr(err.Error()),
			})
		}
		return
	}

	c.Status(http.StatusNoContent)
}
