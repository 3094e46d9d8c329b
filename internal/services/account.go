package services

import (
	"context"
	"log/slog"

	"github.com/devlink/apiserver/internal/apperr"
	"github.com/devlink/apiserver/internal/events"
	"github.com/devlink/apiserver/internal/store"
)

// AccountRepository removes a user and everything the user owns as one unit.
type AccountRepository interface {
	DeleteAccount(ctx context.Context, userID string) (store.DeletedAccount, error)
}

// AccountService handles cascading account deletion.
type AccountService struct {
	repo    AccountRepository
	avatars AvatarStore
	events  EventPublisher
	logger  *slog.Logger
}

// NewAccountService constructs an AccountService. avatars and publisher may be nil.
func NewAccountService(repo AccountRepository, avatars AvatarStore, publisher EventPublisher, logger *slog.Logger) *AccountService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		repo:    repo,
		avatars: avatars,
		events:  publisher,
		logger:  logger.With("service", "accounts"),
	}
}

// Delete removes the principal's posts, profile and user record. Deleting an
// account that is already gone succeeds.
func (s *AccountService) Delete(ctx context.Context, userID string) (store.DeletedAccount, error) {
	deleted, err := s.repo.DeleteAccount(ctx, userID)
	if err != nil {
		return store.DeletedAccount{}, apperr.Internal(err)
	}
	if !deleted.User {
		return deleted, nil
	}

	// The account is committed as deleted; a leftover avatar object is only logged.
	if s.avatars != nil {
		if err := s.avatars.Delete(ctx, AvatarKey(userID)); err != nil {
			s.logger.Warn("delete avatar", "user_id", userID, "error", err)
		}
	}

	s.logger.Info("account deleted", "user_id", userID, "posts", deleted.Posts, "profile", deleted.Profile)
	s.events.Publish(ctx, events.AccountDeleted, userID, map[string]any{
		"posts":   deleted.Posts,
		"profile": deleted.Profile,
	})
	return deleted, nil
}
