package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pilltick/backend/internal/clock"
	"github.com/pilltick/backend/internal/events"
	"github.com/pilltick/backend/internal/notify"
	"github.com/pilltick/backend/internal/repository"
	"github.com/pilltick/backend/pkg/model"
	"go.uber.org/zap"
)

// RetryStore persists retry chain state
type RetryStore interface {
	Create(ctx context.Context, retry *model.RetryNotification) error
	DeactivateByOccurrence(ctx context.Context, medicationID string, originalTime time.Time) (int64, error)
	DeactivateByMedication(ctx context.Context, medicationID string) (int64, error)
}

// MedicationLookup resolves a medication id at delivery time
type MedicationLookup interface {
	FindByID(ctx context.Context, medicationID string) (*model.Medication, error)
}

// RetryController manages the escalation chain for one occurrence: armed
// when the original reminder is booked, resolved the moment a dose log is
// written for that occurrence, expired when the chain runs out.
type RetryController struct {
	store       RetryStore
	gateway     notify.Gateway
	medications MedicationLookup
	interval    time.Duration
	clock       clock.Clock
	logger      *zap.Logger
}

// NewRetryController creates a RetryController spacing follow-ups at the
// given interval
func NewRetryController(store RetryStore, gateway notify.Gateway, medications MedicationLookup, interval time.Duration, clk clock.Clock, logger *zap.Logger) *RetryController {
	return &RetryController{
		store:       store,
		gateway:     gateway,
		medications: medications,
		interval:    interval,
		clock:       clk,
		logger:      logger,
	}
}

// SubscribeDoseLogged resolves the matching occurrence whenever a dose log
// is written, no matter which path produced it
func (c *RetryController) SubscribeDoseLogged(bus *events.Bus[events.DoseLogged]) {
	bus.Subscribe(func(ctx context.Context, ev events.DoseLogged) {
		c.Resolve(ctx, ev.MedicationID, ev.ScheduledTime)
	})
}

// SubscribeMedicationChanged tears down every retry chain for a medication
// the moment it is deleted
func (c *RetryController) SubscribeMedicationChanged(bus *events.Bus[events.MedicationChanged]) {
	bus.Subscribe(func(ctx context.Context, ev events.MedicationChanged) {
		if ev.Deleted {
			c.ResolveMedication(ctx, ev.MedicationID)
		}
	})
}

// Arm books the retry chain for one occurrence: retryCount follow-ups at
// fixed spacing after the original. Any chain previously armed for the same
// occurrence is deactivated first, so a reschedule supersedes instead of
// accumulating duplicate active rows.
func (c *RetryController) Arm(ctx context.Context, med model.Medication, originalTime time.Time) error {
	if _, err := c.store.DeactivateByOccurrence(ctx, med.ID, originalTime); err != nil {
		c.logger.Warn("failed to supersede existing retry chain",
			zap.Error(err),
			zap.String("medication_id", med.ID),
			zap.Time("original_time", originalTime),
		)
	}

	if med.RetryCount <= 0 {
		return nil
	}

	for sequence := 1; sequence <= med.RetryCount; sequence++ {
		retry := &model.RetryNotification{
			ID:            uuid.New().String(),
			MedicationID:  med.ID,
			OriginalTime:  originalTime,
			NextRetryTime: originalTime.Add(time.Duration(sequence) * c.interval),
			Sequence:      sequence,
			IsActive:      true,
			CreatedAt:     c.clock.Now(),
		}

		if err := c.store.Create(ctx, retry); err != nil {
			return fmt.Errorf("failed to persist retry %d: %w", sequence, err)
		}

		booking := notify.Booking{
			ID:      BookingID(med.ID, originalTime, sequence),
			FireAt:  retry.NextRetryTime,
			Payload: reminderPayload(med, originalTime, sequence),
		}
		if err := c.gateway.Schedule(ctx, booking); err != nil {
			return fmt.Errorf("failed to book retry %d: %w", sequence, err)
		}
	}

	c.logger.Info("retry chain armed",
		zap.String("medication_id", med.ID),
		zap.Time("original_time", originalTime),
		zap.Int("retries", med.RetryCount),
	)

	return nil
}

// Resolve deactivates every retry row for the occurrence and cancels its
// not-yet-fired bookings, the original included. Failures are logged as
// warnings, never surfaced: a missed cancellation costs one extra
// notification, whereas failing the dose write would lose the log.
func (c *RetryController) Resolve(ctx context.Context, medicationID string, originalTime time.Time) {
	deactivated, err := c.store.DeactivateByOccurrence(ctx, medicationID, originalTime)
	if err != nil {
		c.logger.Warn("failed to deactivate retry rows",
			zap.Error(err),
			zap.String("medication_id", medicationID),
			zap.Time("original_time", originalTime),
		)
	}

	cancelled := c.cancelPending(ctx, medicationID, func(p notify.Payload) bool {
		return p.OccurrenceTime.Equal(originalTime)
	})

	c.logger.Info("occurrence resolved",
		zap.String("medication_id", medicationID),
		zap.Time("original_time", originalTime),
		zap.Int64("retries_deactivated", deactivated),
		zap.Int("bookings_cancelled", cancelled),
	)
}

// ResolveMedication deactivates every retry chain for a medication, used
// when the medication itself is deleted
func (c *RetryController) ResolveMedication(ctx context.Context, medicationID string) {
	deactivated, err := c.store.DeactivateByMedication(ctx, medicationID)
	if err != nil {
		c.logger.Warn("failed to deactivate retry rows for medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
	}

	cancelled := c.cancelPending(ctx, medicationID, func(notify.Payload) bool { return true })

	c.logger.Info("medication retries resolved",
		zap.String("medication_id", medicationID),
		zap.Int64("retries_deactivated", deactivated),
		zap.Int("bookings_cancelled", cancelled),
	)
}

// FilterDelivery wraps a delivery callback with the retry chain lifecycle:
// a retry for a medication that no longer exists is treated as an implicit
// resolve instead of firing, and delivering the final retry of a chain
// expires it.
func (c *RetryController) FilterDelivery(next notify.DeliverFunc) notify.DeliverFunc {
	return func(ctx context.Context, booking notify.Booking) {
		if booking.Payload.Sequence > 0 && booking.Payload.MedicationID != "" {
			med, err := c.medications.FindByID(ctx, booking.Payload.MedicationID)
			if errors.Is(err, repository.ErrNotFound) {
				c.logger.Warn("retry for missing medication, resolving instead of firing",
					zap.String("medication_id", booking.Payload.MedicationID),
					zap.Time("original_time", booking.Payload.OccurrenceTime),
				)
				c.Resolve(ctx, booking.Payload.MedicationID, booking.Payload.OccurrenceTime)
				return
			}

			next(ctx, booking)

			if err == nil && booking.Payload.Sequence >= med.RetryCount {
				c.expire(ctx, booking.Payload.MedicationID, booking.Payload.OccurrenceTime)
			}
			return
		}
		next(ctx, booking)
	}
}

// expire deactivates the rows of a chain whose final retry has fired with
// no dose log. No gateway bookings remain at this point; only the audit
// rows need flipping so the chain stops reading as armed.
func (c *RetryController) expire(ctx context.Context, medicationID string, originalTime time.Time) {
	deactivated, err := c.store.DeactivateByOccurrence(ctx, medicationID, originalTime)
	if err != nil {
		c.logger.Warn("failed to deactivate exhausted retry chain",
			zap.Error(err),
			zap.String("medication_id", medicationID),
			zap.Time("original_time", originalTime),
		)
		return
	}

	c.logger.Info("retry chain exhausted",
		zap.String("medication_id", medicationID),
		zap.Time("original_time", originalTime),
		zap.Int64("retries_deactivated", deactivated),
	)
}

// cancelPending cancels pending bookings for the medication that match the
// payload filter, returning how many were cancelled
func (c *RetryController) cancelPending(ctx context.Context, medicationID string, match func(notify.Payload) bool) int {
	pending, err := c.gateway.ListPending(ctx)
	if err != nil {
		c.logger.Warn("failed to list pending bookings",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		return 0
	}

	cancelled := 0
	for _, booking := range pending {
		if booking.Payload.MedicationID != medicationID || !match(booking.Payload) {
			continue
		}
		if err := c.gateway.Cancel(ctx, booking.ID); err != nil {
			c.logger.Warn("failed to cancel booking",
				zap.Error(err),
				zap.String("booking_id", booking.ID),
			)
			continue
		}
		cancelled++
	}

	return cancelled
}
