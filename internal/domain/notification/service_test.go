package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"wealthdash/internal/domain/linkeditem"
	"wealthdash/internal/shared/messages"
)

type MockRepository struct {
	UpsertDeviceTokenFunc func(ctx context.Context, params RegisterDeviceParams) (*DeviceToken, error)
	ListActiveTokensFunc  func(ctx context.Context, userID uuid.UUID) ([]*DeviceToken, error)
	DeactivateTokenFunc   func(ctx context.Context, token string) error
}

func (m *MockRepository) UpsertDeviceToken(ctx context.Context, params RegisterDeviceParams) (*DeviceToken, error) {
	return m.UpsertDeviceTokenFunc(ctx, params)
}

func (m *MockRepository) ListActiveTokens(ctx context.Context, userID uuid.UUID) ([]*DeviceToken, error) {
	return m.ListActiveTokensFunc(ctx, userID)
}

func (m *MockRepository) DeactivateToken(ctx context.Context, token string) error {
	return m.DeactivateTokenFunc(ctx, token)
}

type recordingMessenger struct {
	tokens []string
	title  string
	body   string
	data   map[string]string
	calls  int
}

func (m *recordingMessenger) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	m.calls++
	m.tokens, m.title, m.body, m.data = tokens, title, body, data
	return nil
}

type namerFunc func(ctx context.Context, id string) string

func (f namerFunc) InstitutionName(ctx context.Context, id string) string { return f(ctx, id) }

func TestRegisterDeviceParams_Validate(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name    string
		params  RegisterDeviceParams
		wantErr error
	}{
		{name: "ios", params: RegisterDeviceParams{UserID: userID, Token: "fcm-1", Platform: PlatformIOS}},
		{name: "web", params: RegisterDeviceParams{UserID: userID, Token: "fcm-1", Platform: PlatformWeb}},
		{name: "missing user", params: RegisterDeviceParams{Token: "fcm-1", Platform: PlatformIOS}, wantErr: ErrInvalidUserID},
		{name: "missing token", params: RegisterDeviceParams{UserID: userID, Platform: PlatformIOS}, wantErr: ErrInvalidToken},
		{name: "missing platform", params: RegisterDeviceParams{UserID: userID, Token: "fcm-1"}, wantErr: ErrInvalidPlatform},
		{name: "unknown platform", params: RegisterDeviceParams{UserID: userID, Token: "fcm-1", Platform: "blackberry"}, wantErr: ErrInvalidPlatform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_RegisterDevice(t *testing.T) {
	userID := uuid.New()
	repo := &MockRepository{
		UpsertDeviceTokenFunc: func(ctx context.Context, params RegisterDeviceParams) (*DeviceToken, error) {
			return &DeviceToken{ID: 1, UserID: params.UserID, Token: params.Token, Platform: params.Platform, IsActive: true}, nil
		},
	}
	svc := NewService(repo, &recordingMessenger{}, nil, nil)

	dt, err := svc.RegisterDevice(context.Background(), RegisterDeviceParams{UserID: userID, Token: "fcm-1", Platform: PlatformAndroid})
	if err != nil {
		t.Fatalf("RegisterDevice() error: %v", err)
	}
	if !dt.IsActive || dt.Platform != PlatformAndroid {
		t.Errorf("RegisterDevice() = %+v", dt)
	}

	if _, err := svc.RegisterDevice(context.Background(), RegisterDeviceParams{UserID: userID}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("RegisterDevice(invalid) error = %v, want ErrInvalidToken", err)
	}
}

func TestService_ItemNeedsAttention(t *testing.T) {
	userID := uuid.New()
	item := &linkeditem.LinkedItem{ItemID: "item-1", InstitutionID: "ins_1", Status: linkeditem.StatusError}

	t.Run("sends to active devices", func(t *testing.T) {
		repo := &MockRepository{
			ListActiveTokensFunc: func(ctx context.Context, uid uuid.UUID) ([]*DeviceToken, error) {
				return []*DeviceToken{{Token: "a"}, {Token: "b"}}, nil
			},
		}
		messenger := &recordingMessenger{}
		namer := namerFunc(func(ctx context.Context, id string) string { return "First Platypus Bank" })

		svc := NewService(repo, messenger, namer, nil)
		if err := svc.ItemNeedsAttention(context.Background(), userID, item, "ITEM_LOGIN_REQUIRED"); err != nil {
			t.Fatalf("ItemNeedsAttention() error: %v", err)
		}

		if messenger.title != "Reconnect First Platypus Bank" {
			t.Errorf("title = %q", messenger.title)
		}
		if len(messenger.tokens) != 2 {
			t.Errorf("tokens = %v, want 2", messenger.tokens)
		}
		if messenger.data["item_id"] != "item-1" || messenger.data["reason"] != "ITEM_LOGIN_REQUIRED" {
			t.Errorf("data = %v", messenger.data)
		}
	})

	t.Run("custom texts", func(t *testing.T) {
		repo := &MockRepository{
			ListActiveTokensFunc: func(ctx context.Context, uid uuid.UUID) ([]*DeviceToken, error) {
				return []*DeviceToken{{Token: "a"}}, nil
			},
		}
		messenger := &recordingMessenger{}
		texts := &messages.Messages{ItemNeedsAttention: messages.MessageText{Title: "{institution} needs you", Body: "Sign in again"}}

		svc := NewService(repo, messenger, nil, nil).WithMessages(texts)
		if err := svc.ItemNeedsAttention(context.Background(), userID, item, "ITEM_LOCKED"); err != nil {
			t.Fatalf("ItemNeedsAttention() error: %v", err)
		}
		if messenger.title != "your bank needs you" || messenger.body != "Sign in again" {
			t.Errorf("title, body = %q, %q", messenger.title, messenger.body)
		}
	})

	t.Run("no devices is not an error", func(t *testing.T) {
		repo := &MockRepository{
			ListActiveTokensFunc: func(ctx context.Context, uid uuid.UUID) ([]*DeviceToken, error) { return nil, nil },
		}
		messenger := &recordingMessenger{}

		svc := NewService(repo, messenger, nil, nil)
		if err := svc.ItemNeedsAttention(context.Background(), userID, item, "ITEM_LOCKED"); err != nil {
			t.Fatalf("ItemNeedsAttention() error: %v", err)
		}
		if messenger.calls != 0 {
			t.Errorf("messenger called %d times, want 0", messenger.calls)
		}
	})

	t.Run("repository failure is returned", func(t *testing.T) {
		repoErr := errors.New("db down")
		repo := &MockRepository{
			ListActiveTokensFunc: func(ctx context.Context, uid uuid.UUID) ([]*DeviceToken, error) { return nil, repoErr },
		}

		svc := NewService(repo, nil, nil, nil)
		if err := svc.ItemNeedsAttention(context.Background(), userID, item, "ITEM_LOCKED"); !errors.Is(err, repoErr) {
			t.Errorf("ItemNeedsAttention() error = %v, want %v", err, repoErr)
		}
	})
}
