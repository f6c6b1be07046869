package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pilltick/backend/internal/clock"
	"github.com/pilltick/backend/internal/events"
	"github.com/pilltick/backend/internal/notify"
	"github.com/pilltick/backend/internal/schedule"
	"github.com/pilltick/backend/pkg/model"
	"go.uber.org/zap"
)

// MedicationStore defines the medication data access the services need
type MedicationStore interface {
	Create(ctx context.Context, med *model.Medication) error
	FindAll(ctx context.Context) ([]model.Medication, error)
	FindByID(ctx context.Context, medicationID string) (*model.Medication, error)
	Update(ctx context.Context, med *model.Medication) error
	Delete(ctx context.Context, medicationID string) error
}

// DoseLogStore defines the dose log data access the services need
type DoseLogStore interface {
	Create(ctx context.Context, log *model.DoseLog) error
	FindCreatedBetween(ctx context.Context, from, to time.Time) ([]model.DoseLog, error)
	FindAll(ctx context.Context) ([]model.DoseLog, error)
	Delete(ctx context.Context, logID string) error
	DeleteByMedication(ctx context.Context, medicationID string) (int64, error)
}

// Rescheduler rebuilds gateway bookings for one medication
type Rescheduler interface {
	Reschedule(ctx context.Context, med model.Medication) error
	CancelMedication(ctx context.Context, medicationID string) error
}

// MedicationService handles medication management business logic
type MedicationService struct {
	meds      MedicationStore
	logs      DoseLogStore
	scheduler Rescheduler
	bus       *events.Bus[events.MedicationChanged]
	clock     clock.Clock
	logger    *zap.Logger
}

// NewMedicationService creates a new MedicationService
func NewMedicationService(meds MedicationStore, logs DoseLogStore, scheduler Rescheduler, bus *events.Bus[events.MedicationChanged], clk clock.Clock, logger *zap.Logger) *MedicationService {
	return &MedicationService{
		meds:      meds,
		logs:      logs,
		scheduler: scheduler,
		bus:       bus,
		clock:     clk,
		logger:    logger,
	}
}

// Create adds a new medication and books its reminders
func (s *MedicationService) Create(ctx context.Context, med *model.Medication) error {
	if err := validateMedication(med); err != nil {
		return err
	}

	if med.ID == "" {
		med.ID = uuid.New().String()
	}

	now := s.clock.Now()
	med.CreatedAt = now
	med.UpdatedAt = now

	if err := s.meds.Create(ctx, med); err != nil {
		s.logger.Error("failed to create medication",
			zap.Error(err),
			zap.String("name", med.Name),
		)
		return fmt.Errorf("failed to create medication: %w", err)
	}

	s.reschedule(ctx, *med)
	s.bus.Publish(ctx, events.MedicationChanged{MedicationID: med.ID})

	s.logger.Info("medication created",
		zap.String("medication_id", med.ID),
		zap.String("name", med.Name),
	)

	return nil
}

// List retrieves all medications
func (s *MedicationService) List(ctx context.Context) ([]model.Medication, error) {
	medications, err := s.meds.FindAll(ctx)
	if err != nil {
		s.logger.Error("failed to list medications", zap.Error(err))
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}

	return medications, nil
}

// Get retrieves a single medication
func (s *MedicationService) Get(ctx context.Context, medicationID string) (*model.Medication, error) {
	if medicationID == "" {
		return nil, fmt.Errorf("medication ID is required")
	}

	return s.meds.FindByID(ctx, medicationID)
}

// Update edits an existing medication. A change to the reminder time, the
// weekday set, the retry count or the active flag triggers a full
// reschedule.
func (s *MedicationService) Update(ctx context.Context, medicationID string, updates *model.Medication) error {
	if medicationID == "" {
		return fmt.Errorf("medication ID is required")
	}
	if err := validateMedication(updates); err != nil {
		return err
	}

	existing, err := s.meds.FindByID(ctx, medicationID)
	if err != nil {
		s.logger.Error("failed to find medication for update",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		return fmt.Errorf("medication not found: %w", err)
	}

	updates.ID = existing.ID
	updates.CreatedAt = existing.CreatedAt
	updates.UpdatedAt = s.clock.Now()

	if err := s.meds.Update(ctx, updates); err != nil {
		s.logger.Error("failed to update medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		return fmt.Errorf("failed to update medication: %w", err)
	}

	if scheduleChanged(existing, updates) {
		s.reschedule(ctx, *updates)
	}
	s.bus.Publish(ctx, events.MedicationChanged{MedicationID: medicationID})

	s.logger.Info("medication updated",
		zap.String("medication_id", medicationID),
		zap.String("name", updates.Name),
	)

	return nil
}

// Delete removes a medication and cascades: its dose logs are deleted and
// every gateway booking cancelled. Retry chain teardown happens in the
// MedicationChanged subscriber.
func (s *MedicationService) Delete(ctx context.Context, medicationID string) error {
	if medicationID == "" {
		return fmt.Errorf("medication ID is required")
	}

	if err := s.scheduler.CancelMedication(ctx, medicationID); err != nil {
		s.logger.Warn("failed to cancel bookings during delete",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
	}

	removed, err := s.logs.DeleteByMedication(ctx, medicationID)
	if err != nil {
		return fmt.Errorf("failed to delete dose logs: %w", err)
	}

	if err := s.meds.Delete(ctx, medicationID); err != nil {
		s.logger.Error("failed to delete medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		return fmt.Errorf("failed to delete medication: %w", err)
	}

	s.bus.Publish(ctx, events.MedicationChanged{MedicationID: medicationID, Deleted: true})

	s.logger.Info("medication deleted",
		zap.String("medication_id", medicationID),
		zap.Int64("dose_logs_removed", removed),
	)

	return nil
}

// RescheduleAll rebuilds bookings for every active medication, used at
// startup so reminders survive a process restart
func (s *MedicationService) RescheduleAll(ctx context.Context) error {
	medications, err := s.meds.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list medications for reschedule: %w", err)
	}

	for _, med := range medications {
		if !med.IsActive {
			continue
		}
		if err := s.scheduler.Reschedule(ctx, med); err != nil {
			if errors.Is(err, notify.ErrPermissionDenied) {
				s.logger.Warn("notification permission missing, skipping reschedule")
				return nil
			}
			s.logger.Error("failed to reschedule medication",
				zap.Error(err),
				zap.String("medication_id", med.ID),
			)
		}
	}

	return nil
}

// reschedule books reminders, treating missing notification permission as
// a warning: the medication is saved either way, only delivery is skipped.
func (s *MedicationService) reschedule(ctx context.Context, med model.Medication) {
	if err := s.scheduler.Reschedule(ctx, med); err != nil {
		if errors.Is(err, notify.ErrPermissionDenied) {
			s.logger.Warn("notification permission missing, reminders not booked",
				zap.String("medication_id", med.ID),
			)
			return
		}
		s.logger.Error("failed to reschedule medication",
			zap.Error(err),
			zap.String("medication_id", med.ID),
		)
	}
}

// validateMedication checks the fields the scheduler depends on. An empty
// weekday set is allowed and simply produces no occurrences.
func validateMedication(med *model.Medication) error {
	if med.Name == "" {
		return fmt.Errorf("medication name is required")
	}
	if med.Dosage == "" {
		return fmt.Errorf("medication dosage is required")
	}
	if _, _, err := schedule.ParseReminderTime(med.ReminderTime); err != nil {
		return fmt.Errorf("invalid reminder time: %w", err)
	}
	if med.RetryCount < 0 {
		return fmt.Errorf("retry count must not be negative")
	}
	for _, day := range med.ReminderDays {
		if day < 0 || day > 6 {
			return fmt.Errorf("reminder day %d out of range", day)
		}
	}

	return nil
}

// scheduleChanged reports whether an edit touched anything the booking set
// depends on
func scheduleChanged(before, after *model.Medication) bool {
	if before.ReminderTime != after.ReminderTime ||
		before.IsActive != after.IsActive ||
		before.RetryCount != after.RetryCount ||
		before.CriticalNotification != after.CriticalNotification {
		return true
	}
	if len(before.ReminderDays) != len(after.ReminderDays) {
		return true
	}
	for i := range before.ReminderDays {
		if before.ReminderDays[i] != after.ReminderDays[i] {
			return true
		}
	}

	return false
}
