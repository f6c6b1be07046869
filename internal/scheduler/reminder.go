// Package scheduler turns recurrence occurrences into notification gateway
// bookings and manages the retry escalation chain per occurrence.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pilltick/backend/internal/clock"
	"github.com/pilltick/backend/internal/notify"
	"github.com/pilltick/backend/internal/schedule"
	"github.com/pilltick/backend/pkg/model"
	"go.uber.org/zap"
)

// BookingID derives a deterministic gateway id from an occurrence key, so
// repeated reschedules overwrite instead of duplicating. Sequence 0 is the
// original reminder, 1..n the retries.
func BookingID(medicationID string, occurrence time.Time, sequence int) string {
	key := fmt.Sprintf("%s|%s|%d", medicationID, occurrence.UTC().Format(time.RFC3339), sequence)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// ReminderScheduler books one gateway entry per upcoming occurrence of a
// medication and arms the retry chain alongside each booking.
type ReminderScheduler struct {
	gateway notify.Gateway
	retries *RetryController
	clock   clock.Clock
	window  time.Duration
	logger  *zap.Logger
}

// NewReminderScheduler creates a ReminderScheduler booking occurrences
// within the given window
func NewReminderScheduler(gateway notify.Gateway, retries *RetryController, clk clock.Clock, window time.Duration, logger *zap.Logger) *ReminderScheduler {
	return &ReminderScheduler{
		gateway: gateway,
		retries: retries,
		clock:   clk,
		window:  window,
		logger:  logger,
	}
}

// Reschedule rebuilds every booking for one medication: cancel everything
// the gateway holds for it, then book the upcoming occurrences if the
// medication is active. Returns notify.ErrPermissionDenied without touching
// gateway state when notification permission is missing.
func (s *ReminderScheduler) Reschedule(ctx context.Context, med model.Medication) error {
	if !s.gateway.Enabled(ctx) {
		s.logger.Warn("notification permission missing, reminders not scheduled",
			zap.String("medication_id", med.ID),
		)
		return notify.ErrPermissionDenied
	}

	if err := s.CancelMedication(ctx, med.ID); err != nil {
		return fmt.Errorf("failed to clear existing bookings: %w", err)
	}

	if !med.IsActive {
		s.logger.Info("medication inactive, reminders cleared",
			zap.String("medication_id", med.ID),
		)
		return nil
	}

	occurrences := schedule.OccurrencesWithin(med, s.clock.Now(), s.window)
	for _, occurrence := range occurrences {
		booking := notify.Booking{
			ID:      BookingID(med.ID, occurrence, 0),
			FireAt:  occurrence,
			Payload: reminderPayload(med, occurrence, 0),
		}

		if err := s.gateway.Schedule(ctx, booking); err != nil {
			return fmt.Errorf("failed to book reminder: %w", err)
		}

		if err := s.retries.Arm(ctx, med, occurrence); err != nil {
			return fmt.Errorf("failed to arm retries: %w", err)
		}
	}

	s.logger.Info("medication rescheduled",
		zap.String("medication_id", med.ID),
		zap.Int("occurrences", len(occurrences)),
		zap.Int("retry_count", med.RetryCount),
	)

	return nil
}

// CancelMedication cancels every pending booking whose payload references
// the medication, originals and retries alike
func (s *ReminderScheduler) CancelMedication(ctx context.Context, medicationID string) error {
	pending, err := s.gateway.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending bookings: %w", err)
	}

	cancelled := 0
	for _, booking := range pending {
		if booking.Payload.MedicationID != medicationID {
			continue
		}
		if err := s.gateway.Cancel(ctx, booking.ID); err != nil {
			return fmt.Errorf("failed to cancel booking %s: %w", booking.ID, err)
		}
		cancelled++
	}

	if cancelled > 0 {
		s.logger.Info("bookings cancelled",
			zap.String("medication_id", medicationID),
			zap.Int("count", cancelled),
		)
	}

	return nil
}

// reminderPayload builds the pass-through notification content for one
// occurrence
func reminderPayload(med model.Medication, occurrence time.Time, sequence int) notify.Payload {
	title := "Time to take " + med.Name
	if sequence > 0 {
		title = "Reminder: " + med.Name + " is still due"
	}

	channels := make([]string, 0, len(med.NotificationTypes))
	for _, c := range med.NotificationTypes {
		channels = append(channels, string(c))
	}

	return notify.Payload{
		MedicationID:   med.ID,
		OccurrenceTime: occurrence,
		Sequence:       sequence,
		Title:          title,
		Body:           med.Dosage,
		Channels:       channels,
		Critical:       med.CriticalNotification,
	}
}
