package notification

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists device tokens.
type Repository interface {
	// UpsertDeviceToken registers a token, moving it to params.UserID if it
	// belonged to someone else, and marks it active.
	UpsertDeviceToken(ctx context.Context, params RegisterDeviceParams) (*DeviceToken, error)
	ListActiveTokens(ctx context.Context, userID uuid.UUID) ([]*DeviceToken, error)
	// DeactivateToken returns ErrDeviceTokenNotFound for an unknown token.
	DeactivateToken(ctx context.Context, token string) error
}
