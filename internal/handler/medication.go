package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pilltick/backend/internal/repository"
	"github.com/pilltick/backend/internal/service"
	"github.com/pilltick/backend/pkg/model"
	"go.uber.org/zap"
)

// RetryHistory reads retry chain rows for the audit view
type RetryHistory interface {
	FindByMedication(ctx context.Context, medicationID string) ([]model.RetryNotification, error)
}

// MedicationHandler implements medication API endpoints
type MedicationHandler struct {
	service *service.MedicationService
	retries RetryHistory
	logger  *zap.Logger
}

// NewMedicationHandler creates a new MedicationHandler
func NewMedicationHandler(service *service.MedicationService, retries RetryHistory, logger *zap.Logger) *MedicationHandler {
	return &MedicationHandler{
		service: service,
		retries: retries,
		logger:  logger,
	}
}

// MedicationRequest is the create/update body
type MedicationRequest struct {
	Name                 string   `json:"name" binding:"required"`
	Dosage               string   `json:"dosage" binding:"required"`
	ReminderTime         string   `json:"reminder_time" binding:"required"`
	ReminderDays         []int    `json:"reminder_days"`
	NotificationTypes    []string `json:"notification_types"`
	IsActive             *bool    `json:"is_active"`
	RetryCount           int      `json:"retry_count"`
	CriticalNotification bool     `json:"critical_notification"`
	Notes                *string  `json:"notes"`
	Color                string   `json:"color"`
}

// toModel converts the request body to a medication model
func (r *MedicationRequest) toModel() *model.Medication {
	channels := make([]model.NotificationChannel, 0, len(r.NotificationTypes))
	for _, c := range r.NotificationTypes {
		channels = append(channels, model.NotificationChannel(c))
	}

	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}

	return &model.Medication{
		Name:                 r.Name,
		Dosage:               r.Dosage,
		ReminderTime:         r.ReminderTime,
		ReminderDays:         r.ReminderDays,
		NotificationTypes:    channels,
		IsActive:             active,
		RetryCount:           r.RetryCount,
		CriticalNotification: r.CriticalNotification,
		Notes:                r.Notes,
		Color:                r.Color,
	}
}

// Create adds a new medication
func (h *MedicationHandler) Create(c *gin.Context) {
	var req MedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	medication := req.toModel()
	if err := h.service.Create(c.Request.Context(), medication); err != nil {
		h.logger.Error("failed to create medication", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Failed to create medication",
			Details: stringPtr(err.Error()),
		})
		return
	}

	c.JSON(http.StatusCreated, medication)
}

// List returns all medications
func (h *MedicationHandler) List(c *gin.Context) {
	medications, err := h.service.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list medications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to list medications",
			Details: stringPtr(err.Error()),
		})
		return
	}

	if medications == nil {
		medications = []model.Medication{}
	}
	c.JSON(http.StatusOK, medications)
}

// Get returns a single medication
func (h *MedicationHandler) Get(c *gin.Context) {
	medication, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Code:    "NOT_FOUND",
				Message: "Medication not found",
			})
			return
		}
		h.logger.Error("failed to get medication", zap.Error(err), zap.String("medication_id", c.Param("id")))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to get medication",
			Details: stringPtr(err.Error()),
		})
		return
	}

	c.JSON(http.StatusOK, medication)
}

// Update edits a medication
func (h *MedicationHandler) Update(c *gin.Context) {
	var req MedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	medicationID := c.Param("id")
	medication := req.toModel()

	if err := h.service.Update(c.Request.Context(), medicationID, medication); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Code:    "NOT_FOUND",
				Message: "Medication not found",
			})
			return
		}
		h.logger.Error("failed to update medication", zap.Error(err), zap.String("medication_id", medicationID))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Failed to update medication",
			Details: stringPtr(err.Error()),
		})
		return
	}

	c.JSON(http.StatusOK, medication)
}

// Delete removes a medication and its logs, retries and bookings
func (h *MedicationHandler) Delete(c *gin.Context) {
	medicationID := c.Param("id")

	if err := h.service.Delete(c.Request.Context(), medicationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Code:    "NOT_FOUND",
				Message: "Medication not found",
			})
			return
		}
		h.logger.Error("failed to delete medication", zap.Error(err), zap.String("medication_id", medicationID))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to delete medication",
			Details: stringPtr(err.Error()),
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListRetries returns the retry chain history for a medication, including
// deactivated rows
func (h *MedicationHandler) ListRetries(c *gin.Context) {
	medicationID := c.Param("id")

	retries, err := h.retries.FindByMedication(c.Request.Context(), medicationID)
	if err != nil {
		h.logger.Error("failed to list retries", zap.Error(err), zap.String("medication_id", medicationID))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to list retry notifications",
			Details: stringPtr(err.Error()),
		})
		return
	}

	if retries == nil {
		retries = []model.RetryNotification{}
	}
	c.JSON(http.StatusOK, retries)
}
