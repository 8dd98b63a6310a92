package linkeditem

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for linked item persistence.
// Implemented in the infrastructure layer.
type Repository interface {
	// Upsert stores a newly exchanged item as active. An existing row for the
	// same (user, item_id) gets the new token and becomes active again.
	Upsert(ctx context.Context, params CreateParams) (*LinkedItem, error)

	// ListByUser returns every item of the user regardless of status.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*LinkedItem, error)

	// ListActiveByUser returns the user's items with status active.
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*LinkedItem, error)

	// GetByItemID returns one item owned by the user.
	GetByItemID(ctx context.Context, userID uuid.UUID, itemID string) (*LinkedItem, error)

	// UpdateStatus sets the status of one item owned by the user.
	UpdateStatus(ctx context.Context, userID uuid.UUID, itemID string, status Status) error

	// ListUsersWithActiveItems returns the distinct owners of active items.
	ListUsersWithActiveItems(ctx context.Context) ([]uuid.UUID, error)
}

// Notifier is told when an item needs the user's attention.
type Notifier interface {
	ItemNeedsAttention(ctx context.Context, userID uuid.UUID, item *LinkedItem, reason string) error
}
