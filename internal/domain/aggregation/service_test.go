package aggregation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"wealthdash/internal/domain/finance"
	"wealthdash/internal/domain/linkeditem"
)

func TestService_CreateLinkToken(t *testing.T) {
	userID := uuid.New()
	expires := time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC)

	provider := &MockProvider{
		CreateLinkTokenFunc: func(ctx context.Context, clientUserID string) (*finance.LinkToken, error) {
			if clientUserID != userID.String() {
				t.Errorf("client user id = %q, want %q", clientUserID, userID)
			}
			return &finance.LinkToken{LinkToken: "link-sandbox-1", Expiration: expires}, nil
		},
	}
	svc := NewService(NewFetcher(provider, &MockItemStore{}, Options{}), &MockItemStore{})

	got, err := svc.CreateLinkToken(context.Background(), userID)
	if err != nil {
		t.Fatalf("CreateLinkToken() error: %v", err)
	}
	if got.LinkToken != "link-sandbox-1" || !got.Expiration.Equal(expires) {
		t.Errorf("CreateLinkToken() = %+v", got)
	}

	if _, err := svc.CreateLinkToken(context.Background(), uuid.Nil); !errors.Is(err, linkeditem.ErrInvalidUserID) {
		t.Errorf("CreateLinkToken(nil user) error = %v, want ErrInvalidUserID", err)
	}
}

func TestService_ExchangePublicToken(t *testing.T) {
	userID := uuid.New()

	t.Run("missing public token", func(t *testing.T) {
		provider := &MockProvider{
			ExchangePublicTokenFunc: func(ctx context.Context, publicToken string) (*finance.TokenExchange, error) {
				t.Error("provider should not be called")
				return nil, nil
			},
		}
		svc := NewService(NewFetcher(provider, &MockItemStore{}, Options{}), &MockItemStore{})

		for _, tok := range []string{"", "   "} {
			if _, err := svc.ExchangePublicToken(context.Background(), userID, tok); !errors.Is(err, ErrMissingPublicToken) {
				t.Errorf("ExchangePublicToken(%q) error = %v, want ErrMissingPublicToken", tok, err)
			}
		}
	})

	t.Run("stores item and returns tagged accounts", func(t *testing.T) {
		var linked linkeditem.CreateParams
		store := &MockItemStore{
			LinkFunc: func(ctx context.Context, params linkeditem.CreateParams) (*linkeditem.LinkedItem, error) {
				linked = params
				return &linkeditem.LinkedItem{UserID: params.UserID, ItemID: params.ItemID, Status: linkeditem.StatusActive}, nil
			},
		}
		provider := &MockProvider{
			ExchangePublicTokenFunc: func(ctx context.Context, publicToken string) (*finance.TokenExchange, error) {
				return &finance.TokenExchange{AccessToken: "access-sandbox-9", ItemID: "item-9"}, nil
			},
			GetItemFunc: func(ctx context.Context, accessToken string) (*finance.ItemInfo, error) {
				return &finance.ItemInfo{ItemID: "item-9", InstitutionID: "ins_a"}, nil
			},
			GetInstitutionNameFunc: institutionNames,
			GetAccountsFunc: func(ctx context.Context, accessToken string) ([]finance.Account, error) {
				if accessToken != "access-sandbox-9" {
					t.Errorf("accounts fetched with %q", accessToken)
				}
				return []finance.Account{{ID: "acc-1", Name: "Checking"}}, nil
			},
		}
		svc := NewService(NewFetcher(provider, store, Options{}), store)

		accounts, err := svc.ExchangePublicToken(context.Background(), userID, "public-sandbox-1")
		if err != nil {
			t.Fatalf("ExchangePublicToken() error: %v", err)
		}

		if linked.AccessToken != "access-sandbox-9" || linked.ItemID != "item-9" || linked.InstitutionID != "ins_a" {
			t.Errorf("linked params = %+v", linked)
		}
		if len(accounts) != 1 || accounts[0].Institution != "Bank A" || accounts[0].ItemID != "item-9" {
			t.Errorf("accounts = %+v", accounts)
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		providerErr := &finance.ProviderError{Code: "INVALID_PUBLIC_TOKEN", StatusCode: 400}
		provider := &MockProvider{
			ExchangePublicTokenFunc: func(ctx context.Context, publicToken string) (*finance.TokenExchange, error) {
				return nil, providerErr
			},
		}
		svc := NewService(NewFetcher(provider, &MockItemStore{}, Options{}), &MockItemStore{})

		_, err := svc.ExchangePublicToken(context.Background(), userID, "public-sandbox-1")
		if !errors.Is(err, providerErr) {
			t.Errorf("ExchangePublicToken() error = %v, want wrapped provider error", err)
		}
	})
}

func TestService_RemoveItem(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name        string
		status      linkeditem.Status
		providerErr error
		wantErr     error
		wantRevoked bool
	}{
		{name: "active item", status: linkeditem.StatusActive, wantRevoked: true},
		{name: "provider failure still revokes", status: linkeditem.StatusError, providerErr: errors.New("timeout"), wantRevoked: true},
		{name: "already revoked", status: linkeditem.StatusRevoked, wantErr: linkeditem.ErrInvalidStatusTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			revoked := false
			store := &MockItemStore{
				Items: []*linkeditem.LinkedItem{{ItemID: "item-1", AccessToken: "tok-1", Status: tt.status}},
				RevokeFunc: func(ctx context.Context, uid uuid.UUID, itemID string) error {
					revoked = true
					return nil
				},
			}
			provider := &MockProvider{
				RemoveItemFunc: func(ctx context.Context, accessToken string) error { return tt.providerErr },
			}
			svc := NewService(NewFetcher(provider, store, Options{}), store)

			err := svc.RemoveItem(context.Background(), userID, "item-1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("RemoveItem() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("RemoveItem() error: %v", err)
			}
			if revoked != tt.wantRevoked {
				t.Errorf("revoked = %v, want %v", revoked, tt.wantRevoked)
			}
		})
	}

	t.Run("unknown item", func(t *testing.T) {
		svc := NewService(NewFetcher(&MockProvider{}, &MockItemStore{}, Options{}), &MockItemStore{})
		if err := svc.RemoveItem(context.Background(), userID, "nope"); !errors.Is(err, linkeditem.ErrItemNotFound) {
			t.Errorf("RemoveItem() error = %v, want ErrItemNotFound", err)
		}
	})
}
