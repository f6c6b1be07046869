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

// FriendshipRepository manages friendship rows for the friend-request flow
type FriendshipRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewFriendshipRepository creates a new FriendshipRepository
func NewFriendshipRepository(db *pgxpool.Pool, logger *zap.Logger) *FriendshipRepository {
	return &FriendshipRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new friendship record
func (r *FriendshipRepository) Create(ctx context.Context, friendship *model.Friendship) error {
	query := `
		INSERT INTO friendships (
			id, requester_id, addressee_id, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		friendship.ID,
		friendship.RequesterID,
		friendship.AddresseeID,
		friendship.Status,
		friendship.CreatedAt,
		friendship.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("failed to create friendship",
			zap.Error(err),
			zap.String("friendship_id", friendship.ID),
		)
		return fmt.Errorf("failed to create friendship: %w", err)
	}

	return nil
}

// FindByID retrieves a friendship by ID
func (r *FriendshipRepository) FindByID(ctx context.Context, friendshipID string) (*model.Friendship, error) {
	query := `
		SELECT id, requester_id, addressee_id, status, created_at, updated_at
		FROM friendships
		WHERE id = $1
	`

	var friendship model.Friendship
	err := r.db.QueryRow(ctx, query, friendshipID).Scan(
		&friendship.ID,
		&friendship.RequesterID,
		&friendship.AddresseeID,
		&friendship.Status,
		&friendship.CreatedAt,
		&friendship.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("friendship %s: %w", friendshipID, ErrNotFound)
		}
		r.logger.Error("failed to find friendship", zap.Error(err), zap.String("friendship_id", friendshipID))
		return nil, fmt.Errorf("failed to find friendship: %w", err)
	}

	return &friendship, nil
}

// UpdateStatus changes the status of a friendship
func (r *FriendshipRepository) UpdateStatus(ctx context.Context, friendshipID string, status model.FriendshipStatus) error {
	query := `
		UPDATE friendships
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.Exec(ctx, query, status, friendshipID)
	if err != nil {
		r.logger.Error("failed to update friendship status",
			zap.Error(err),
			zap.String("friendship_id", friendshipID),
		)
		return fmt.Errorf("failed to update friendship status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("friendship %s: %w", friendshipID, ErrNotFound)
	}

	return nil
}

// Delete deletes a friendship record, the reject path
func (r *FriendshipRepository) Delete(ctx context.Context, friendshipID string) error {
	query := `DELETE FROM friendships WHERE id = $1`

	result, err := r.db.Exec(ctx, query, friendshipID)
	if err != nil {
		r.logger.Error("failed to delete friendship",
			zap.Error(err),
			zap.String("friendship_id", friendshipID),
		)
		return fmt.Errorf("failed to delete friendship: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("friendship %s: %w", friendshipID, ErrNotFound)
	}

	return nil
}
