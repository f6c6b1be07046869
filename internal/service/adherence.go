package service

import (
	"context"
	"math"
	"time"

	"github.com/pilltick/backend/internal/clock"
	"github.com/pilltick/backend/pkg/model"
	"go.uber.org/zap"
)

// AdherenceService derives compliance statistics from the full dose log
// history
type AdherenceService struct {
	logs   DoseLogStore
	clock  clock.Clock
	logger *zap.Logger
}

// NewAdherenceService creates a new AdherenceService
func NewAdherenceService(logs DoseLogStore, clk clock.Clock, logger *zap.Logger) *AdherenceService {
	return &AdherenceService{
		logs:   logs,
		clock:  clk,
		logger: logger,
	}
}

// Stats computes taken/skipped counts, the compliance rate and the current
// streak. A store read failure degrades to zeroed stats.
func (s *AdherenceService) Stats(ctx context.Context) (*model.AdherenceStats, error) {
	logs, err := s.logs.FindAll(ctx)
	if err != nil {
		s.logger.Error("failed to load dose history, returning empty stats", zap.Error(err))
		return &model.AdherenceStats{}, nil
	}

	stats := computeStats(logs, s.clock.Now())

	s.logger.Info("adherence stats computed",
		zap.Int("taken", stats.TakenCount),
		zap.Int("skipped", stats.SkippedCount),
		zap.Int("compliance_rate", stats.ComplianceRate),
		zap.Int("streak", stats.CurrentStreak),
	)

	return stats, nil
}

// computeStats is the pure derivation over a log snapshot
func computeStats(logs []model.DoseLog, now time.Time) *model.AdherenceStats {
	stats := &model.AdherenceStats{}

	takenDays := make(map[string]bool)
	for _, log := range logs {
		switch log.Status {
		case model.DoseStatusTaken:
			stats.TakenCount++
			takenDays[log.CreatedAt.In(now.Location()).Format("2006-01-02")] = true
		case model.DoseStatusSkipped:
			stats.SkippedCount++
		}
	}

	if total := stats.TakenCount + stats.SkippedCount; total > 0 {
		stats.ComplianceRate = int(math.Round(100 * float64(stats.TakenCount) / float64(total)))
	}

	// Walk back day by day counting days with at least one taken dose.
	// Today gets a one-day grace: an unlogged today does not break the
	// streak because the day is not over.
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !takenDays[day.Format("2006-01-02")] {
		day = day.AddDate(0, 0, -1)
	}
	for takenDays[day.Format("2006-01-02")] {
		stats.CurrentStreak++
		day = day.AddDate(0, 0, -1)
	}

	return stats
}
