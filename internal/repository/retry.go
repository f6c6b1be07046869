package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pilltick/backend/pkg/model"
	"go.uber.org/zap"
)

// RetryRepository manages retry notification rows. Cancellation flips the
// is_active flag, the rows themselves are kept for audit.
type RetryRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewRetryRepository creates a new RetryRepository
func NewRetryRepository(db *pgxpool.Pool, logger *zap.Logger) *RetryRepository {
	return &RetryRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new retry notification record
func (r *RetryRepository) Create(ctx context.Context, retry *model.RetryNotification) error {
	query := `
		INSERT INTO retry_notifications (
			id, medication_id, original_time, next_retry_time,
			sequence, is_active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		retry.ID,
		retry.MedicationID,
		retry.OriginalTime,
		retry.NextRetryTime,
		retry.Sequence,
		retry.IsActive,
		retry.CreatedAt,
	)

	if err != nil {
		r.logger.Error("failed to create retry notification",
			zap.Error(err),
			zap.String("medication_id", retry.MedicationID),
			zap.Int("sequence", retry.Sequence),
		)
		return fmt.Errorf("failed to create retry notification: %w", err)
	}

	return nil
}

// DeactivateByOccurrence marks every active retry row for one occurrence
// inactive and returns how many were flipped
func (r *RetryRepository) DeactivateByOccurrence(ctx context.Context, medicationID string, originalTime time.Time) (int64, error) {
	query := `
		UPDATE retry_notifications
		SET is_active = FALSE
		WHERE medication_id = $1 AND original_time = $2 AND is_active
	`

	result, err := r.db.Exec(ctx, query, medicationID, originalTime)
	if err != nil {
		r.logger.Error("failed to deactivate retries for occurrence",
			zap.Error(err),
			zap.String("medication_id", medicationID),
			zap.Time("original_time", originalTime),
		)
		return 0, fmt.Errorf("failed to deactivate retries: %w", err)
	}

	return result.RowsAffected(), nil
}

// DeactivateByMedication marks every active retry row for a medication
// inactive
func (r *RetryRepository) DeactivateByMedication(ctx context.Context, medicationID string) (int64, error) {
	query := `
		UPDATE retry_notifications
		SET is_active = FALSE
		WHERE medication_id = $1 AND is_active
	`

	result, err := r.db.Exec(ctx, query, medicationID)
	if err != nil {
		r.logger.Error("failed to deactivate retries for medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		return 0, fmt.Errorf("failed to deactivate retries: %w", err)
	}

	return result.RowsAffected(), nil
}

// FindByMedication retrieves every retry row for a medication, newest chain
// first
func (r *RetryRepository) FindByMedication(ctx context.Context, medicationID string) ([]model.RetryNotification, error) {
	query := `
		SELECT id, medication_id, original_time, next_retry_time,
		       sequence, is_active, created_at
		FROM retry_notifications
		WHERE medication_id = $1
		ORDER BY original_time DESC, sequence ASC
	`

	rows, err := r.db.Query(ctx, query, medicationID)
	if err != nil {
		r.logger.Error("failed to find retry notifications", zap.Error(err), zap.String("medication_id", medicationID))
		return nil, fmt.Errorf("failed to find retry notifications: %w", err)
	}
	defer rows.Close()

	var retries []model.RetryNotification
	for rows.Next() {
		var retry model.RetryNotification
		err := rows.Scan(
			&retry.ID,
			&retry.MedicationID,
			&retry.OriginalTime,
			&retry.NextRetryTime,
			&retry.Sequence,
			&retry.IsActive,
			&retry.CreatedAt,
		)
		if err != nil {
			r.logger.Error("failed to scan retry notification", zap.Error(err))
			continue
		}
		retries = append(retries, retry)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating retry notifications", zap.Error(err))
		return nil, fmt.Errorf("error iterating retry notifications: %w", err)
	}

	return retries, nil
}
