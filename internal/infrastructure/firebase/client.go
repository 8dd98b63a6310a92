// Package firebase delivers push notifications through Firebase Cloud Messaging.
package firebase

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCM rejects multicast messages with more tokens than this.
const fcmBatchLimit = 500

// TokenDeactivator marks a token the service reported as dead.
type TokenDeactivator func(ctx context.Context, token string) error

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// isInvalidToken reports whether a per-token error means the token will
// never be deliverable again.
var isInvalidToken = func(err error) bool {
	return messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err)
}

// Client implements notification.Messenger.
type Client struct {
	sender      multicastSender
	deactivator TokenDeactivator
	logger      *slog.Logger
}

// NewClient initializes a Firebase app from a service-account file.
// deactivator may be nil.
func NewClient(ctx context.Context, credentialsFile string, deactivator TokenDeactivator, logger *slog.Logger) (*Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging client: %w", err)
	}

	return newClient(msgClient, deactivator, logger), nil
}

func newClient(sender multicastSender, deactivator TokenDeactivator, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{sender: sender, deactivator: deactivator, logger: logger}
}

// SendMulticast notifies every token, batching to the FCM limit. Per-token
// failures are logged and dead tokens are deactivated; only a failed batch
// request is returned as an error.
func (c *Client) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	if len(tokens) == 0 {
		return nil
	}

	var success, failure int
	for _, batch := range chunkTokens(tokens, fcmBatchLimit) {
		msg := &messaging.MulticastMessage{
			Tokens:       batch,
			Notification: &messaging.Notification{Title: title, Body: body},
			Data:         data,
		}

		resp, err := c.sender.SendEachForMulticast(ctx, msg)
		if err != nil {
			return fmt.Errorf("failed to send FCM multicast: %w", err)
		}

		success += resp.SuccessCount
		failure += resp.FailureCount
		if resp.FailureCount > 0 {
			c.handleFailures(ctx, batch, resp)
		}
	}

	c.logger.InfoContext(ctx, "FCM multicast sent", "success", success, "failure", failure)
	return nil
}

func (c *Client) handleFailures(ctx context.Context, tokens []string, resp *messaging.BatchResponse) {
	for i, r := range resp.Responses {
		if r == nil || r.Error == nil || i >= len(tokens) {
			continue
		}
		if !isInvalidToken(r.Error) {
			c.logger.WarnContext(ctx, "FCM send failed", "index", i, "error", r.Error)
			continue
		}
		c.logger.InfoContext(ctx, "deactivating invalid FCM token", "index", i, "error", r.Error)
		if c.deactivator == nil {
			continue
		}
		if err := c.deactivator(ctx, tokens[i]); err != nil {
			c.logger.WarnContext(ctx, "failed to deactivate FCM token", "index", i, "error", err)
		}
	}
}

func chunkTokens(tokens []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(tokens); i += size {
		chunks = append(chunks, tokens[i:min(i+size, len(tokens))])
	}
	return chunks
}
