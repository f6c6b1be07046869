package friends

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pilltick/backend/internal/clock"
	"github.com/pilltick/backend/internal/notify"
	"github.com/pilltick/backend/pkg/model"
	"go.uber.org/zap"
)

// Action is a friend-request decision
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
	ActionBlock  Action = "block"
)

// FriendshipStore defines the friendship data access the service needs
type FriendshipStore interface {
	FindByID(ctx context.Context, friendshipID string) (*model.Friendship, error)
	UpdateStatus(ctx context.Context, friendshipID string, status model.FriendshipStatus) error
	Delete(ctx context.Context, friendshipID string) error
}

// Service processes friend-request decisions. Accept mutates the row and
// pushes a notification to the original requester, reject deletes the row,
// block flips the status.
type Service struct {
	store   FriendshipStore
	gateway notify.Gateway
	clock   clock.Clock
	logger  *zap.Logger
}

// NewService creates a new friend-request Service
func NewService(store FriendshipStore, gateway notify.Gateway, clk clock.Clock, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		gateway: gateway,
		clock:   clk,
		logger:  logger,
	}
}

// Process applies one decision to a friendship and returns a message for
// the response body
func (s *Service) Process(ctx context.Context, userID string, action Action, friendshipID string) (string, error) {
	if friendshipID == "" {
		return "", fmt.Errorf("friendship_id is required")
	}

	friendship, err := s.store.FindByID(ctx, friendshipID)
	if err != nil {
		return "", fmt.Errorf("friendship not found: %w", err)
	}

	switch action {
	case ActionAccept:
		if err := s.store.UpdateStatus(ctx, friendshipID, model.FriendshipStatusAccepted); err != nil {
			return "", fmt.Errorf("failed to accept friend request: %w", err)
		}
		s.notifyRequester(ctx, friendship)

		s.logger.Info("friend request accepted",
			zap.String("friendship_id", friendshipID),
			zap.String("user_id", userID),
		)
		return "Friend request accepted", nil

	case ActionReject:
		if err := s.store.Delete(ctx, friendshipID); err != nil {
			return "", fmt.Errorf("failed to reject friend request: %w", err)
		}

		s.logger.Info("friend request rejected",
			zap.String("friendship_id", friendshipID),
			zap.String("user_id", userID),
		)
		return "Friend request rejected", nil

	case ActionBlock:
		if err := s.store.UpdateStatus(ctx, friendshipID, model.FriendshipStatusBlocked); err != nil {
			return "", fmt.Errorf("failed to block requester: %w", err)
		}

		s.logger.Info("requester blocked",
			zap.String("friendship_id", friendshipID),
			zap.String("user_id", userID),
		)
		return "Requester blocked", nil

	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
}

// notifyRequester pushes an acceptance notification to the user who sent
// the request. A failed push is logged, not surfaced; the acceptance
// already happened.
func (s *Service) notifyRequester(ctx context.Context, friendship *model.Friendship) {
	booking := notify.Booking{
		ID:     uuid.New().String(),
		FireAt: s.clock.Now(),
		Payload: notify.Payload{
			RecipientID: friendship.RequesterID,
			Title:       "Friend request accepted",
			Body:        "Your friend request was accepted. You can now nudge each other about medications.",
		},
	}

	if err := s.gateway.Schedule(ctx, booking); err != nil {
		s.logger.Warn("failed to push acceptance notification",
			zap.Error(err),
			zap.String("friendship_id", friendship.ID),
			zap.String("recipient_id", friendship.RequesterID),
		)
	}
}
