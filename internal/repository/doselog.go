package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pilltick/backend/pkg/model"
	"go.uber.org/zap"
)

// DoseLogRepository manages dose log data
type DoseLogRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewDoseLogRepository creates a new DoseLogRepository
func NewDoseLogRepository(db *pgxpool.Pool, logger *zap.Logger) *DoseLogRepository {
	return &DoseLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new dose log record
func (r *DoseLogRepository) Create(ctx context.Context, log *model.DoseLog) error {
	query := `
		INSERT INTO dose_logs (
			id, medication_id, scheduled_time, actual_time,
			status, photo_uri, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		log.ID,
		log.MedicationID,
		log.ScheduledTime,
		log.ActualTime,
		log.Status,
		log.PhotoURI,
		log.Notes,
		log.CreatedAt,
	)

	if err != nil {
		r.logger.Error("failed to create dose log",
			zap.Error(err),
			zap.String("medication_id", log.MedicationID),
		)
		return fmt.Errorf("failed to create dose log: %w", err)
	}

	return nil
}

// FindCreatedBetween retrieves dose logs created in [from, to), oldest first
func (r *DoseLogRepository) FindCreatedBetween(ctx context.Context, from, to time.Time) ([]model.DoseLog, error) {
	query := `
		SELECT id, medication_id, scheduled_time, actual_time,
		       status, photo_uri, notes, created_at
		FROM dose_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		r.logger.Error("failed to find dose logs", zap.Error(err))
		return nil, fmt.Errorf("failed to find dose logs: %w", err)
	}
	defer rows.Close()

	var logs []model.DoseLog
	for rows.Next() {
		var log model.DoseLog
		err := rows.Scan(
			&log.ID,
			&log.MedicationID,
			&log.ScheduledTime,
			&log.ActualTime,
			&log.Status,
			&log.PhotoURI,
			&log.Notes,
			&log.CreatedAt,
		)
		if err != nil {
			r.logger.Error("failed to scan dose log", zap.Error(err))
			continue
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating dose logs", zap.Error(err))
		return nil, fmt.Errorf("error iterating dose logs: %w", err)
	}

	return logs, nil
}

// FindAll retrieves the full dose log history, oldest first
func (r *DoseLogRepository) FindAll(ctx context.Context) ([]model.DoseLog, error) {
	query := `
		SELECT id, medication_id, scheduled_time, actual_time,
		       status, photo_uri, notes, created_at
		FROM dose_logs
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("failed to find dose logs", zap.Error(err))
		return nil, fmt.Errorf("failed to find dose logs: %w", err)
	}
	defer rows.Close()

	var logs []model.DoseLog
	for rows.Next() {
		var log model.DoseLog
		err := rows.Scan(
			&log.ID,
			&log.MedicationID,
			&log.ScheduledTime,
			&log.ActualTime,
			&log.Status,
			&log.PhotoURI,
			&log.Notes,
			&log.CreatedAt,
		)
		if err != nil {
			r.logger.Error("failed to scan dose log", zap.Error(err))
			continue
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating dose logs", zap.Error(err))
		return nil, fmt.Errorf("error iterating dose logs: %w", err)
	}

	return logs, nil
}

// Delete deletes a dose log record, the undo path
func (r *DoseLogRepository) Delete(ctx context.Context, logID string) error {
	query := `DELETE FROM dose_logs WHERE id = $1`

	result, err := r.db.Exec(ctx, query, logID)
	if err != nil {
		r.logger.Error("failed to delete dose log",
			zap.Error(err),
			zap.String("log_id", logID),
		)
		return fmt.Errorf("failed to delete dose log: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("dose log %s: %w", logID, ErrNotFound)
	}

	return nil
}

// DeleteByMedication removes every dose log for a medication, the cascade
// path when the medication itself is deleted
func (r *DoseLogRepository) DeleteByMedication(ctx context.Context, medicationID string) (int64, error) {
	query := `DELETE FROM dose_logs WHERE medication_id = $1`

	result, err := r.db.Exec(ctx, query, medicationID)
	if err != nil {
		r.logger.Error("failed to delete dose logs for medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		return 0, fmt.Errorf("failed to delete dose logs: %w", err)
	}

	return result.RowsAffected(), nil
}
