package notification

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// Device platforms accepted at registration.
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
)

// Domain errors
var (
	ErrDeviceTokenNotFound = errors.New("device token not found")
	ErrInvalidPlatform     = errors.New("platform must be 'ios', 'android' or 'web'")
	ErrInvalidToken        = errors.New("device token is required")
	ErrInvalidUserID       = errors.New("valid user ID is required")
)

// DeviceToken is a registered FCM device token.
type DeviceToken struct {
	ID        int64     `json:"id"`
	UserID    uuid.UUID `json:"-"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

// RegisterDeviceParams contains parameters for registering a device
type RegisterDeviceParams struct {
	UserID   uuid.UUID
	Token    string
	Platform string
}

func (p RegisterDeviceParams) Validate() error {
	if p.UserID == uuid.Nil {
		return ErrInvalidUserID
	}
	if p.Token == "" {
		return ErrInvalidToken
	}
	if err := validation.Validate(p.Token, validation.Length(1, 4096)); err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	if err := validation.Validate(p.Platform,
		validation.Required,
		validation.In(PlatformIOS, PlatformAndroid, PlatformWeb),
	); err != nil {
		return errors.Join(ErrInvalidPlatform, err)
	}
	return nil
}
