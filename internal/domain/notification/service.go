package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"wealthdash/internal/domain/linkeditem"
	"wealthdash/internal/shared/messages"
)

// InstitutionNamer resolves an institution id to a display name.
type InstitutionNamer interface {
	InstitutionName(ctx context.Context, institutionID string) string
}

// Service contains the business logic for notification operations
type Service struct {
	repo         Repository
	messenger    Messenger
	institutions InstitutionNamer
	texts        *messages.Messages
	logger       *slog.Logger
}

// NewService creates a new notification service. institutions may be nil.
func NewService(repo Repository, messenger Messenger, institutions InstitutionNamer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if messenger == nil {
		messenger = LogMessenger{Logger: logger}
	}
	return &Service{repo: repo, messenger: messenger, institutions: institutions, texts: messages.Default(), logger: logger}
}

// WithMessages replaces the built-in notification texts.
func (s *Service) WithMessages(m *messages.Messages) *Service {
	if m != nil {
		s.texts = m
	}
	return s
}

// RegisterDevice stores a device token for the user.
func (s *Service) RegisterDevice(ctx context.Context, params RegisterDeviceParams) (*DeviceToken, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	token, err := s.repo.UpsertDeviceToken(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}
	return token, nil
}

// SendToUser pushes a notification to every active device of the user.
// Having no devices is not an error.
func (s *Service) SendToUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	tokens, err := s.repo.ListActiveTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list device tokens: %w", err)
	}
	if len(tokens) == 0 {
		s.logger.DebugContext(ctx, "no active device tokens", "user_id", userID)
		return nil
	}

	values := make([]string, len(tokens))
	for i, t := range tokens {
		values[i] = t.Token
	}
	return s.messenger.SendMulticast(ctx, values, title, body, data)
}

// ItemNeedsAttention tells the user to reconnect an institution whose item
// moved to error.
func (s *Service) ItemNeedsAttention(ctx context.Context, userID uuid.UUID, item *linkeditem.LinkedItem, reason string) error {
	institution := "your bank"
	if s.institutions != nil && item.InstitutionID != "" {
		institution = s.institutions.InstitutionName(ctx, item.InstitutionID)
	}

	data := map[string]string{
		"route":   "items",
		"item_id": item.ItemID,
		"reason":  reason,
	}
	title, body := s.texts.ItemNeedsAttention.Render(map[string]string{"institution": institution})
	return s.SendToUser(ctx, userID, title, body, data)
}
