package linkeditem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Service contains the business logic for linked items
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *slog.Logger
}

// NewService creates a new linked item service. notifier may be nil.
func NewService(repo Repository, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// Link records a freshly exchanged item as active.
func (s *Service) Link(ctx context.Context, params CreateParams) (*LinkedItem, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	item, err := s.repo.Upsert(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to store linked item: %w", err)
	}

	s.logger.InfoContext(ctx, "item linked", "user_id", params.UserID, "item_id", params.ItemID)
	return item, nil
}

// ActiveItems returns the items the fetchers should fan out over.
func (s *Service) ActiveItems(ctx context.Context, userID uuid.UUID) ([]*LinkedItem, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidUserID
	}
	return s.repo.ListActiveByUser(ctx, userID)
}

// List returns every item of the user.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*LinkedItem, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidUserID
	}
	return s.repo.ListByUser(ctx, userID)
}

// Get returns one of the user's items.
func (s *Service) Get(ctx context.Context, userID uuid.UUID, itemID string) (*LinkedItem, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidUserID
	}
	return s.repo.GetByItemID(ctx, userID, itemID)
}

// UsersWithActiveItems lists the owners the health job should visit.
func (s *Service) UsersWithActiveItems(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.ListUsersWithActiveItems(ctx)
}

// Revoke moves an item to revoked. Revoking an already revoked item is an error.
func (s *Service) Revoke(ctx context.Context, userID uuid.UUID, itemID string) error {
	if _, err := s.transition(ctx, userID, itemID, StatusRevoked); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "item revoked", "user_id", userID, "item_id", itemID)
	return nil
}

// MarkError moves an active item to error and notifies the user. An item
// already in error is left alone so the user is not notified twice.
func (s *Service) MarkError(ctx context.Context, userID uuid.UUID, itemID, reason string) error {
	item, err := s.repo.GetByItemID(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if item.Status == StatusError {
		return nil
	}

	item, err = s.transition(ctx, userID, itemID, StatusError)
	if err != nil {
		return err
	}

	s.logger.WarnContext(ctx, "item moved to error", "user_id", userID, "item_id", itemID, "reason", reason)

	if s.notifier != nil {
		if err := s.notifier.ItemNeedsAttention(ctx, userID, item, reason); err != nil {
			s.logger.WarnContext(ctx, "failed to notify user about item error", "user_id", userID, "item_id", itemID, "error", err)
		}
	}
	return nil
}

func (s *Service) transition(ctx context.Context, userID uuid.UUID, itemID string, next Status) (*LinkedItem, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidUserID
	}
	if !next.Valid() {
		return nil, ErrInvalidStatus
	}

	item, err := s.repo.GetByItemID(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if !item.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, item.Status, next)
	}

	if err := s.repo.UpdateStatus(ctx, userID, itemID, next); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update item status: %w", err)
	}

	item.Status = next
	return item, nil
}
