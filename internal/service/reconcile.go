package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pilltick/backend/internal/clock"
	"github.com/pilltick/backend/internal/schedule"
	"github.com/pilltick/backend/pkg/model"
	"go.uber.org/zap"
)

// completedTodayLabel replaces the countdown on archived entries
const completedTodayLabel = "completed today"

// ReconcileService derives the pending and archived dose views from the
// medication and dose log collections. The derivation is side-effect free
// and recomputed from fresh snapshots on every call; nothing is cached.
type ReconcileService struct {
	meds    MedicationStore
	logs    DoseLogStore
	clock   clock.Clock
	horizon time.Duration
	logger  *zap.Logger
}

// NewReconcileService creates a ReconcileService deriving doses within the
// given horizon
func NewReconcileService(meds MedicationStore, logs DoseLogStore, clk clock.Clock, horizon time.Duration, logger *zap.Logger) *ReconcileService {
	return &ReconcileService{
		meds:    meds,
		logs:    logs,
		clock:   clk,
		horizon: horizon,
		logger:  logger,
	}
}

// Reconcile partitions the upcoming doses into pending and archived.
// Exactly one entry exists per (medication, occurrence) inside the horizon,
// plus one synthetic entry per medication logged today whose occurrence
// already fell outside it. Store read failures degrade to an empty view
// rather than an error; this path backs the main screen and must not crash
// on a transient storage fault.
func (s *ReconcileService) Reconcile(ctx context.Context) (pending, archived []model.UpcomingDose, err error) {
	now := s.clock.Now()

	medications, err := s.meds.FindAll(ctx)
	if err != nil {
		s.logger.Error("reconcile: failed to load medications, returning empty view", zap.Error(err))
		return []model.UpcomingDose{}, []model.UpcomingDose{}, nil
	}

	dayStart, dayEnd := dayBounds(now)
	todayLogs, err := s.logs.FindCreatedBetween(ctx, dayStart, dayEnd)
	if err != nil {
		s.logger.Error("reconcile: failed to load today's logs, treating day as unlogged", zap.Error(err))
		todayLogs = nil
	}
	authoritative := authoritativeByMedication(todayLogs)

	pending = []model.UpcomingDose{}
	archived = []model.UpcomingDose{}
	archivedMeds := make(map[string]bool)
	medsByID := make(map[string]model.Medication, len(medications))

	for _, med := range medications {
		medsByID[med.ID] = med
		if !med.IsActive {
			continue
		}

		for _, occurrence := range schedule.OccurrencesWithin(med, now, s.horizon) {
			dose := model.UpcomingDose{
				Medication: med,
				NextDose:   occurrence,
				TimeUntil:  timeUntilLabel(occurrence.Sub(now)),
			}

			if log, ok := authoritative[med.ID]; ok {
				status := log.Status
				logID := log.ID
				dose.TodayStatus = &status
				dose.LogID = &logID
				dose.TimeUntil = completedTodayLabel
				archived = append(archived, dose)
				archivedMeds[med.ID] = true
			} else {
				pending = append(pending, dose)
			}
		}
	}

	// Medications logged today whose scheduled time already fell outside
	// the horizon still belong in the archive, as synthetic entries.
	// Occurrence-derived entries win when both exist.
	for medicationID, log := range authoritative {
		if archivedMeds[medicationID] {
			continue
		}
		med, ok := medsByID[medicationID]
		if !ok {
			// Log for a medication mid-deletion; the cascade owns it.
			continue
		}

		status := log.Status
		logID := log.ID
		archived = append(archived, model.UpcomingDose{
			Medication:  med,
			NextDose:    reminderTimeToday(med, dayStart),
			TimeUntil:   completedTodayLabel,
			TodayStatus: &status,
			LogID:       &logID,
		})
		archivedMeds[medicationID] = true
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].NextDose.Before(pending[j].NextDose)
	})
	sort.Slice(archived, func(i, j int) bool {
		return archived[i].NextDose.Before(archived[j].NextDose)
	})

	s.logger.Info("doses reconciled",
		zap.Int("pending", len(pending)),
		zap.Int("archived", len(archived)),
	)

	return pending, archived, nil
}

// reminderTimeToday anchors a synthetic archive entry at the medication's
// configured reminder time on the current day
func reminderTimeToday(med model.Medication, dayStart time.Time) time.Time {
	hour, minute, err := schedule.ParseReminderTime(med.ReminderTime)
	if err != nil {
		return dayStart
	}
	return dayStart.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// timeUntilLabel renders a human-readable countdown
func timeUntilLabel(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "due now"
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("in %dh %02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("in %dd %dh", int(d.Hours())/24, int(d.Hours())%24)
	}
}
