package linkeditem

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a linked institution.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
	StatusError   Status = "error"
)

// Domain errors
var (
	ErrItemNotFound             = errors.New("linked item not found")
	ErrInvalidStatus            = errors.New("invalid item status")
	ErrInvalidStatusTransition  = errors.New("invalid item status transition")
	ErrInvalidUserID            = errors.New("valid user ID is required")
	ErrItemAlreadyLinked        = errors.New("item already linked to another user")
	ErrInvalidLinkedItemRequest = errors.New("invalid linked item request")
)

// transitions lists the allowed status changes. Revoked is terminal.
var transitions = map[Status]map[Status]struct{}{
	StatusActive: {StatusRevoked: {}, StatusError: {}},
	StatusError:  {StatusActive: {}, StatusRevoked: {}},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusRevoked, StatusError:
		return true
	}
	return false
}

// CanTransition reports whether an item may move from s to next.
func (s Status) CanTransition(next Status) bool {
	_, ok := transitions[s][next]
	return ok
}

// LinkedItem is one user's connection to one institution. AccessToken is
// held in plaintext in memory only; the repository encrypts it at rest.
type LinkedItem struct {
	ID            int64     `json:"-"`
	UserID        uuid.UUID `json:"-"`
	ItemID        string    `json:"item_id"`
	AccessToken   string    `json:"-"`
	InstitutionID string    `json:"institution_id,omitempty"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateParams contains parameters for persisting a newly exchanged item
type CreateParams struct {
	UserID        uuid.UUID
	ItemID        string
	AccessToken   string
	InstitutionID string
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if p.UserID == uuid.Nil {
		return ErrInvalidUserID
	}
	if err := validation.ValidateStruct(&p,
		validation.Field(&p.ItemID, validation.Required, validation.Length(1, 128)),
		validation.Field(&p.AccessToken, validation.Required),
	); err != nil {
		return errors.Join(ErrInvalidLinkedItemRequest, err)
	}
	return nil
}
