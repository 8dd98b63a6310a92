package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"wealthdash/internal/domain/notification"
)

const deviceTokenColumns = `id, user_id, token, platform, is_active, created_at, last_used`

// DeviceTokenRepository stores FCM tokens. A token belongs to at most one
// user; registering it again moves it.
type DeviceTokenRepository struct {
	db *DB
}

func NewDeviceTokenRepository(db *DB) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: db}
}

var _ notification.Repository = (*DeviceTokenRepository)(nil)

func (r *DeviceTokenRepository) UpsertDeviceToken(ctx context.Context, params notification.RegisterDeviceParams) (*notification.DeviceToken, error) {
	query := `
		INSERT INTO device_tokens (user_id, token, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE
			SET user_id = EXCLUDED.user_id,
			    platform = EXCLUDED.platform,
			    is_active = true,
			    last_used = NOW()
		RETURNING ` + deviceTokenColumns

	dt, err := scanDeviceToken(r.db.QueryRowContext(ctx, query, params.UserID, params.Token, params.Platform))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert device token: %w", err)
	}
	return dt, nil
}

// ListActiveTokens returns the user's active tokens, most recently used first.
func (r *DeviceTokenRepository) ListActiveTokens(ctx context.Context, userID uuid.UUID) ([]*notification.DeviceToken, error) {
	query := `SELECT ` + deviceTokenColumns + `
		FROM device_tokens
		WHERE user_id = $1 AND is_active = true
		ORDER BY last_used DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*notification.DeviceToken
	for rows.Next() {
		dt, err := scanDeviceToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, dt)
	}
	return tokens, rows.Err()
}

// DeactivateToken is called when FCM reports a token as unregistered.
func (r *DeviceTokenRepository) DeactivateToken(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE device_tokens SET is_active = false WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to deactivate device token: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notification.ErrDeviceTokenNotFound
	}
	return nil
}

func scanDeviceToken(row scanner) (*notification.DeviceToken, error) {
	var dt notification.DeviceToken
	if err := row.Scan(&dt.ID, &dt.UserID, &dt.Token, &dt.Platform, &dt.IsActive, &dt.CreatedAt, &dt.LastUsed); err != nil {
		return nil, err
	}
	return &dt, nil
}
