package plaid

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/plaid/plaid-go/plaid"

	"wealthdash/internal/domain/finance"
)

func TestEnvironment(t *testing.T) {
	tests := []struct {
		name    string
		want    plaid.Environment
		wantErr bool
	}{
		{name: "", want: plaid.Sandbox},
		{name: "sandbox", want: plaid.Sandbox},
		{name: "development", want: plaid.Development},
		{name: "production", want: plaid.Production},
		{name: "staging", wantErr: true},
	}

	for _, tt := range tests {
		got, err := environment(tt.name)
		if (err != nil) != tt.wantErr {
			t.Fatalf("environment(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("environment(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestNewClient_RejectsUnknownEnvironment(t *testing.T) {
	if _, err := NewClient(Options{Environment: "moon"}); err == nil {
		t.Fatal("expected error for unknown environment")
	}
	if _, err := NewClient(Options{ClientID: "id", Secret: "secret", Environment: "sandbox"}); err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
}

func TestMapError(t *testing.T) {
	t.Run("server failure is unavailable", func(t *testing.T) {
		err := mapError("accounts get", errors.New("502 Bad Gateway"), &http.Response{StatusCode: http.StatusBadGateway})

		var perr *finance.ProviderError
		if !errors.As(err, &perr) {
			t.Fatalf("want *finance.ProviderError, got %T", err)
		}
		if perr.StatusCode != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", perr.StatusCode)
		}
		if !errors.Is(err, finance.ErrProviderUnavailable) {
			t.Error("5xx should match ErrProviderUnavailable")
		}
	})

	t.Run("transport failure without response", func(t *testing.T) {
		err := mapError("item get", errors.New("connection refused"), nil)
		if !errors.Is(err, finance.ErrProviderUnavailable) {
			t.Errorf("transport failure should match ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("client error is not unavailable", func(t *testing.T) {
		err := mapError("item get", errors.New("bad request"), &http.Response{StatusCode: http.StatusBadRequest})
		if errors.Is(err, finance.ErrProviderUnavailable) {
			t.Error("4xx should not match ErrProviderUnavailable")
		}
	})

	t.Run("deadline passes through", func(t *testing.T) {
		err := mapError("liabilities get", context.DeadlineExceeded, nil)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("want DeadlineExceeded, got %v", err)
		}
		var perr *finance.ProviderError
		if errors.As(err, &perr) {
			t.Error("deadline should not become a provider error")
		}
	})
}

func TestToAccount(t *testing.T) {
	var bal plaid.AccountBalance
	bal.SetCurrent(410.5)
	bal.SetLimit(2000)
	bal.SetIsoCurrencyCode("USD")

	var a plaid.AccountBase
	a.SetAccountId("acc-cc")
	a.SetName("Plaid Credit Card")
	a.SetMask("3333")
	a.SetType(plaid.AccountType("credit"))
	a.SetSubtype(plaid.AccountSubtype("credit card"))
	a.SetBalances(bal)

	got := toAccount(&a)

	if got.ID != "acc-cc" || got.Name != "Plaid Credit Card" || got.Mask != "3333" {
		t.Errorf("unexpected identity fields: %+v", got)
	}
	if got.Type != finance.AccountTypeCredit || got.Subtype != "credit card" {
		t.Errorf("type = %q/%q", got.Type, got.Subtype)
	}
	if got.Balance.Available != nil {
		t.Errorf("available = %v, want nil", *got.Balance.Available)
	}
	if got.Balance.Current == nil || *got.Balance.Current != 410.5 {
		t.Errorf("current = %v, want 410.5", got.Balance.Current)
	}
	if got.Balance.Limit == nil || *got.Balance.Limit != 2000 || got.Balance.Currency != "USD" {
		t.Errorf("unexpected balance: %+v", got.Balance)
	}
}

func TestFloatOk(t *testing.T) {
	v := 12.5
	got := floatOk(&v, true)
	if got == nil || *got != 12.5 || got == &v {
		t.Fatalf("floatOk should copy the value, got %v", got)
	}
	if floatOk(&v, false) != nil || floatOk(nil, true) != nil {
		t.Error("unset values should map to nil")
	}
}
