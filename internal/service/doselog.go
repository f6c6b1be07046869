package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pilltick/backend/internal/clock"
	"github.com/pilltick/backend/internal/events"
	"github.com/pilltick/backend/pkg/model"
	"go.uber.org/zap"
)

// ErrTakenFinal is returned when undo is attempted on a taken dose. Only a
// skipped dose can transition back to pending.
var ErrTakenFinal = errors.New("a taken dose is final for the day")

// ErrNoLogToday is returned when undo finds nothing to delete
var ErrNoLogToday = errors.New("no dose log recorded today")

// DoseLogService records dose events and exposes the undo path
type DoseLogService struct {
	logs   DoseLogStore
	meds   MedicationStore
	bus    *events.Bus[events.DoseLogged]
	clock  clock.Clock
	logger *zap.Logger
}

// NewDoseLogService creates a new DoseLogService
func NewDoseLogService(logs DoseLogStore, meds MedicationStore, bus *events.Bus[events.DoseLogged], clk clock.Clock, logger *zap.Logger) *DoseLogService {
	return &DoseLogService{
		logs:   logs,
		meds:   meds,
		bus:    bus,
		clock:  clk,
		logger: logger,
	}
}

// LogDose records a taken or skipped dose for one occurrence and announces
// it on the bus so the matching retry chain resolves immediately, whatever
// path produced the log.
func (s *DoseLogService) LogDose(ctx context.Context, medicationID string, scheduledTime time.Time, status model.DoseStatus, photoURI, notes *string) (*model.DoseLog, error) {
	if medicationID == "" {
		return nil, fmt.Errorf("medication ID is required")
	}
	if status != model.DoseStatusTaken && status != model.DoseStatusSkipped {
		return nil, fmt.Errorf("invalid dose status %q", status)
	}

	if _, err := s.meds.FindByID(ctx, medicationID); err != nil {
		return nil, fmt.Errorf("medication not found: %w", err)
	}

	now := s.clock.Now()
	log := &model.DoseLog{
		ID:            uuid.New().String(),
		MedicationID:  medicationID,
		ScheduledTime: scheduledTime,
		Status:        status,
		PhotoURI:      photoURI,
		Notes:         notes,
		CreatedAt:     now,
	}
	if status == model.DoseStatusTaken {
		actual := now
		log.ActualTime = &actual
	}

	// Write failures surface to the caller; silently losing a dose log is
	// worse than showing an error.
	if err := s.logs.Create(ctx, log); err != nil {
		s.logger.Error("failed to record dose",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		return nil, fmt.Errorf("failed to record dose: %w", err)
	}

	s.bus.Publish(ctx, events.DoseLogged{
		MedicationID:  medicationID,
		ScheduledTime: scheduledTime,
		Status:        status,
	})

	s.logger.Info("dose recorded",
		zap.String("medication_id", medicationID),
		zap.String("status", string(status)),
		zap.Time("scheduled_time", scheduledTime),
	)

	return log, nil
}

// AuthoritativeToday returns the most recently created dose log for the
// medication on the current calendar day, or nil when none exists
func (s *DoseLogService) AuthoritativeToday(ctx context.Context, medicationID string) (*model.DoseLog, error) {
	dayStart, dayEnd := dayBounds(s.clock.Now())

	logs, err := s.logs.FindCreatedBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load today's dose logs: %w", err)
	}

	authoritative := authoritativeByMedication(logs)
	log, ok := authoritative[medicationID]
	if !ok {
		return nil, nil
	}

	return &log, nil
}

// UndoToday deletes the authoritative log for the medication's current day,
// returning the dose to pending. Undo is a deletion, never an inverse row,
// and only skipped doses can be undone.
func (s *DoseLogService) UndoToday(ctx context.Context, medicationID string) error {
	if medicationID == "" {
		return fmt.Errorf("medication ID is required")
	}

	log, err := s.AuthoritativeToday(ctx, medicationID)
	if err != nil {
		return err
	}
	if log == nil {
		return ErrNoLogToday
	}
	if log.Status == model.DoseStatusTaken {
		return ErrTakenFinal
	}

	if err := s.logs.Delete(ctx, log.ID); err != nil {
		s.logger.Error("failed to undo dose log",
			zap.Error(err),
			zap.String("medication_id", medicationID),
			zap.String("log_id", log.ID),
		)
		return fmt.Errorf("failed to undo dose log: %w", err)
	}

	s.logger.Info("dose log undone",
		zap.String("medication_id", medicationID),
		zap.String("log_id", log.ID),
	)

	return nil
}

// dayBounds returns [start, end) of the calendar day containing t
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// authoritativeByMedication picks, per medication, the log with the highest
// created timestamp. Multiple logs on one day can exist; only the newest
// one counts.
func authoritativeByMedication(logs []model.DoseLog) map[string]model.DoseLog {
	authoritative := make(map[string]model.DoseLog)
	for _, log := range logs {
		current, ok := authoritative[log.MedicationID]
		if !ok || log.CreatedAt.After(current.CreatedAt) {
			authoritative[log.MedicationID] = log
		}
	}

	return authoritative
}
