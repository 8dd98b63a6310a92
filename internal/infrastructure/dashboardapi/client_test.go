package dashboardapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wealthdash/internal/domain/finance"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{BaseURL: srv.URL + "/", AccessToken: "tok-123", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return c
}

func TestNewClient_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "/relative"} {
		if _, err := NewClient(Options{BaseURL: u}); err == nil {
			t.Errorf("NewClient(%q) should fail", u)
		}
	}
}

func TestClient_SendsBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Path != "/api/plaid/accounts" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"accounts":[{"id":"acc-1","name":"Checking","type":"depository","balance":{"current":10.5,"available":null,"limit":null}}]}`))
	})

	accounts, err := c.Accounts(context.Background())
	if err != nil {
		t.Fatalf("Accounts() error: %v", err)
	}
	if len(accounts) != 1 || accounts[0].ID != "acc-1" || finance.ValueOrZero(accounts[0].Balance.Current) != 10.5 {
		t.Errorf("Accounts() = %+v", accounts)
	}
	if accounts[0].Balance.Available != nil {
		t.Error("null available balance should stay nil")
	}
}

func TestClient_TransactionsWindow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("start_date") != "2024-02-14" || q.Get("end_date") != "2024-03-15" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{"transactions":[{"id":"t1","amount":-20}]}`))
	})

	window := finance.DefaultRange(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))
	txns, err := c.Transactions(context.Background(), window)
	if err != nil {
		t.Fatalf("Transactions() error: %v", err)
	}
	if len(txns) != 1 || txns[0].Amount != -20 {
		t.Errorf("Transactions() = %+v", txns)
	}
}

func TestClient_ExchangePublicToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["public_token"] != "public-1" {
			t.Errorf("body = %v, err = %v", body, err)
		}
		w.Write([]byte(`{"success":true,"accounts":[{"id":"a"}]}`))
	})

	accounts, err := c.ExchangePublicToken(context.Background(), "public-1")
	if err != nil {
		t.Fatalf("ExchangePublicToken() error: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("accounts = %+v", accounts)
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantUnauth  bool
	}{
		{name: "json error body", status: http.StatusBadRequest, body: `{"error":"missing_public_token"}`, wantMessage: "missing_public_token"},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"not_authenticated"}`, wantMessage: "not_authenticated", wantUnauth: true},
		{name: "plain text body", status: http.StatusBadGateway, body: "bad gateway\n", wantMessage: "bad gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Liabilities(context.Background())
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Message != tt.wantMessage {
				t.Errorf("APIError = %+v", apiErr)
			}
			if errors.Is(err, ErrUnauthorized) != tt.wantUnauth {
				t.Errorf("errors.Is(ErrUnauthorized) = %v, want %v", !tt.wantUnauth, tt.wantUnauth)
			}
		})
	}
}

func TestClient_Summary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"totalAssets":1000,"totalLiabilities":200,"netWorth":800}`))
	})

	s, err := c.Summary(context.Background(), finance.DateRange{})
	if err != nil {
		t.Fatalf("Summary() error: %v", err)
	}
	if s.NetWorth != 800 {
		t.Errorf("NetWorth = %v", s.NetWorth)
	}
}
