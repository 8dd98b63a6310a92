package notification

import (
	"context"
	"log/slog"
)

// Messenger defines the interface for sending push notifications.
// Implemented by the Firebase FCM client in the infrastructure layer.
type Messenger interface {
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// LogMessenger writes notifications to the log. Used when Firebase is not
// configured.
type LogMessenger struct {
	Logger *slog.Logger
}

func (m LogMessenger) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "push notification (not sent, messaging disabled)",
		"tokens", len(tokens),
		"title", title,
		"body", body,
		"route", data["route"],
	)
	return nil
}
