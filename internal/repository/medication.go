package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pilltick/backend/pkg/model"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// MedicationRepository manages medication data
type MedicationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewMedicationRepository creates a new MedicationRepository
func NewMedicationRepository(db *pgxpool.Pool, logger *zap.Logger) *MedicationRepository {
	return &MedicationRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new medication record
func (r *MedicationRepository) Create(ctx context.Context, med *model.Medication) error {
	query := `
		INSERT INTO medications (
			id, name, dosage, reminder_time, reminder_days,
			notification_types, is_active, retry_count,
			critical_notification, notes, color,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Exec(ctx, query,
		med.ID,
		med.Name,
		med.Dosage,
		med.ReminderTime,
		daysToDB(med.ReminderDays),
		channelsToDB(med.NotificationTypes),
		med.IsActive,
		med.RetryCount,
		med.CriticalNotification,
		med.Notes,
		med.Color,
		med.CreatedAt,
		med.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("failed to create medication",
			zap.Error(err),
			zap.String("medication_id", med.ID),
		)
		return fmt.Errorf("failed to create medication: %w", err)
	}

	return nil
}

// FindAll retrieves every medication, newest first
func (r *MedicationRepository) FindAll(ctx context.Context) ([]model.Medication, error) {
	query := `
		SELECT
			id, name, dosage, reminder_time, reminder_days,
			notification_types, is_active, retry_count,
			critical_notification, notes, color,
			created_at, updated_at
		FROM medications
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("failed to find medications", zap.Error(err))
		return nil, fmt.Errorf("failed to find medications: %w", err)
	}
	defer rows.Close()

	var medications []model.Medication
	for rows.Next() {
		med, err := scanMedication(rows)
		if err != nil {
			r.logger.Error("failed to scan medication", zap.Error(err))
			continue
		}
		medications = append(medications, med)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating medications", zap.Error(err))
		return nil, fmt.Errorf("error iterating medications: %w", err)
	}

	return medications, nil
}

// FindByID retrieves a medication by ID
func (r *MedicationRepository) FindByID(ctx context.Context, medicationID string) (*model.Medication, error) {
	query := `
		SELECT
			id, name, dosage, reminder_time, reminder_days,
			notification_types, is_active, retry_count,
			critical_notification, notes, color,
			created_at, updated_at
		FROM medications
		WHERE id = $1
	`

	med, err := scanMedication(r.db.QueryRow(ctx, query, medicationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("medication %s: %w", medicationID, ErrNotFound)
		}
		r.logger.Error("failed to find medication", zap.Error(err), zap.String("medication_id", medicationID))
		return nil, fmt.Errorf("failed to find medication: %w", err)
	}

	return &med, nil
}

// Update updates an existing medication record
func (r *MedicationRepository) Update(ctx context.Context, med *model.Medication) error {
	query := `
		UPDATE medications
		SET name = $1, dosage = $2, reminder_time = $3,
		    reminder_days = $4, notification_types = $5,
		    is_active = $6, retry_count = $7,
		    critical_notification = $8, notes = $9, color = $10,
		    updated_at = $11
		WHERE id = $12
	`

	result, err := r.db.Exec(ctx, query,
		med.Name,
		med.Dosage,
		med.ReminderTime,
		daysToDB(med.ReminderDays),
		channelsToDB(med.NotificationTypes),
		med.IsActive,
		med.RetryCount,
		med.CriticalNotification,
		med.Notes,
		med.Color,
		med.UpdatedAt,
		med.ID,
	)

	if err != nil {
		r.logger.Error("failed to update medication",
			zap.Error(err),
			zap.String("medication_id", med.ID),
		)
		return fmt.Errorf("failed to update medication: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("medication %s: %w", med.ID, ErrNotFound)
	}

	return nil
}

// Delete deletes a medication record
func (r *MedicationRepository) Delete(ctx context.Context, medicationID string) error {
	query := `DELETE FROM medications WHERE id = $1`

	result, err := r.db.Exec(ctx, query, medicationID)
	if err != nil {
		r.logger.Error("failed to delete medication",
			zap.Error(err),
			zap.String("medication_id", medicationID),
		)
		return fmt.Errorf("failed to delete medication: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("medication %s: %w", medicationID, ErrNotFound)
	}

	return nil
}

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanMedication reads one medication row
func scanMedication(row rowScanner) (model.Medication, error) {
	var med model.Medication
	var days []int32
	var channels []string

	err := row.Scan(
		&med.ID,
		&med.Name,
		&med.Dosage,
		&med.ReminderTime,
		&days,
		&channels,
		&med.IsActive,
		&med.RetryCount,
		&med.CriticalNotification,
		&med.Notes,
		&med.Color,
		&med.CreatedAt,
		&med.UpdatedAt,
	)
	if err != nil {
		return model.Medication{}, err
	}

	med.ReminderDays = daysFromDB(days)
	med.NotificationTypes = channelsFromDB(channels)

	return med, nil
}

func daysToDB(days []int) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

func daysFromDB(days []int32) []int {
	out := make([]int, len(days))
	for i, d := range days {
		out[i] = int(d)
	}
	return out
}

func channelsToDB(channels []model.NotificationChannel) []string {
	out := make([]string, len(channels))
	for i, c := range channels {
		out[i] = string(c)
	}
	return out
}

func channelsFromDB(channels []string) []model.NotificationChannel {
	out := make([]model.NotificationChannel, len(channels))
	for i, c := range channels {
		out[i] = model.NotificationChannel(c)
	}
	return out
}
