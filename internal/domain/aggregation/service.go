package aggregation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"wealthdash/internal/domain/finance"
	"wealthdash/internal/domain/linkeditem"
)

var ErrMissingPublicToken = errors.New("missing public token")

// ItemManager is the part of the linked-item service used for linking and
// unlinking institutions.
type ItemManager interface {
	Link(ctx context.Context, params linkeditem.CreateParams) (*linkeditem.LinkedItem, error)
	List(ctx context.Context, userID uuid.UUID) ([]*linkeditem.LinkedItem, error)
	Get(ctx context.Context, userID uuid.UUID, itemID string) (*linkeditem.LinkedItem, error)
	Revoke(ctx context.Context, userID uuid.UUID, itemID string) error
}

// Service covers the provider operations that are not fetches: link tokens,
// token exchange and item removal.
type Service struct {
	fetcher *Fetcher
	items   ItemManager
}

// NewService creates the service. It shares the fetcher's provider, timeouts
// and institution cache.
func NewService(fetcher *Fetcher, items ItemManager) *Service {
	return &Service{fetcher: fetcher, items: items}
}

// CreateLinkToken asks the provider for a link token bound to the user.
func (s *Service) CreateLinkToken(ctx context.Context, userID uuid.UUID) (*finance.LinkToken, error) {
	if userID == uuid.Nil {
		return nil, linkeditem.ErrInvalidUserID
	}

	var token *finance.LinkToken
	err := s.fetcher.call(ctx, func(ctx context.Context) (err error) {
		token, err = s.fetcher.provider.CreateLinkToken(ctx, userID.String())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create link token: %w", err)
	}
	return token, nil
}

// ExchangePublicToken trades a public token for an access token, stores the
// new item as active and returns the item's accounts.
func (s *Service) ExchangePublicToken(ctx context.Context, userID uuid.UUID, publicToken string) ([]finance.Account, error) {
	publicToken = strings.TrimSpace(publicToken)
	if publicToken == "" {
		return nil, ErrMissingPublicToken
	}
	if userID == uuid.Nil {
		return nil, linkeditem.ErrInvalidUserID
	}

	f := s.fetcher
	var exchange *finance.TokenExchange
	err := f.call(ctx, func(ctx context.Context) (err error) {
		exchange, err = f.provider.ExchangePublicToken(ctx, publicToken)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to exchange public token: %w", err)
	}

	var institutionID string
	var info *finance.ItemInfo
	if err := f.call(ctx, func(ctx context.Context) (err error) {
		info, err = f.provider.GetItem(ctx, exchange.AccessToken)
		return err
	}); err != nil {
		f.logger.WarnContext(ctx, "item lookup after exchange failed", "item_id", exchange.ItemID, "error", err)
	} else {
		institutionID = info.InstitutionID
	}

	item, err := s.items.Link(ctx, linkeditem.CreateParams{
		UserID:        userID,
		ItemID:        exchange.ItemID,
		AccessToken:   exchange.AccessToken,
		InstitutionID: institutionID,
	})
	if err != nil {
		return nil, err
	}
	item.AccessToken = exchange.AccessToken
	item.InstitutionID = institutionID

	institution := f.institutionName(ctx, item)

	var accounts []finance.Account
	if err := f.call(ctx, func(ctx context.Context) (err error) {
		accounts, err = f.provider.GetAccounts(ctx, exchange.AccessToken)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to fetch accounts for new item: %w", err)
	}

	f.logger.InfoContext(ctx, "public token exchanged",
		"user_id", userID,
		"item_id", item.ItemID,
		"institution", institution,
		"accounts", len(accounts),
	)

	if accounts == nil {
		accounts = []finance.Account{}
	}
	return tagAccounts(accounts, institution, item.ItemID), nil
}

// Items lists every linked item of the user.
func (s *Service) Items(ctx context.Context, userID uuid.UUID) ([]*linkeditem.LinkedItem, error) {
	return s.items.List(ctx, userID)
}

// RemoveItem removes the item at the provider and revokes it locally. The
// local revocation happens even when the provider call fails.
func (s *Service) RemoveItem(ctx context.Context, userID uuid.UUID, itemID string) error {
	item, err := s.items.Get(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if item.Status == linkeditem.StatusRevoked {
		return fmt.Errorf("%w: item already revoked", linkeditem.ErrInvalidStatusTransition)
	}

	f := s.fetcher
	if err := f.call(ctx, func(ctx context.Context) error {
		return f.provider.RemoveItem(ctx, item.AccessToken)
	}); err != nil {
		f.logger.WarnContext(ctx, "provider item removal failed, revoking locally", "item_id", itemID, "error", err)
	}

	return s.items.Revoke(ctx, userID, itemID)
}
