// Package dashboardapi is the client side of the wealthdash HTTP API. It is
// what the CLI uses to run aggregation passes against a remote server.
package dashboardapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"wealthdash/internal/domain/dashboard"
	"wealthdash/internal/domain/finance"
	"wealthdash/internal/domain/summary"
)

const (
	defaultTimeout  = 60 * time.Second
	maxResponseSize = 32 << 20
)

var (
	// ErrUnauthorized is returned when the server rejects the access token.
	ErrUnauthorized = errors.New("not authenticated")
)

// APIError is a non-2xx response carrying the server's {error} body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client talks to one wealthdash server on behalf of one user.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
}

type Options struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &Client{httpClient: hc, baseURL: base, accessToken: opts.AccessToken}, nil
}

type exchangeRequest struct {
	PublicToken string `json:"public_token"`
}

type exchangeResponse struct {
	Success  bool              `json:"success"`
	Accounts []finance.Account `json:"accounts"`
}

type accountsResponse struct {
	Accounts []finance.Account `json:"accounts"`
}

type transactionsResponse struct {
	Transactions []finance.Transaction `json:"transactions"`
}

func (c *Client) CreateLinkToken(ctx context.Context) (*finance.LinkToken, error) {
	var token finance.LinkToken
	if err := c.do(ctx, http.MethodPost, "/api/plaid/link-token", nil, nil, &token); err != nil {
		return nil, fmt.Errorf("failed to create link token: %w", err)
	}
	return &token, nil
}

// ExchangePublicToken links a new institution and returns its accounts.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) ([]finance.Account, error) {
	var resp exchangeResponse
	err := c.do(ctx, http.MethodPost, "/api/plaid/exchange-token", nil, exchangeRequest{PublicToken: publicToken}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange public token: %w", err)
	}
	if !resp.Success {
		return nil, errors.New("failed to exchange public token: server returned success=false")
	}
	return resp.Accounts, nil
}

func (c *Client) Accounts(ctx context.Context) ([]finance.Account, error) {
	var resp accountsResponse
	if err := c.do(ctx, http.MethodGet, "/api/plaid/accounts", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

func (c *Client) Transactions(ctx context.Context, window finance.DateRange) ([]finance.Transaction, error) {
	var resp transactionsResponse
	if err := c.do(ctx, http.MethodGet, "/api/plaid/transactions", windowQuery(window), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

func (c *Client) Investments(ctx context.Context) (*finance.InvestmentBundle, error) {
	var bundle finance.InvestmentBundle
	if err := c.do(ctx, http.MethodGet, "/api/plaid/investments", nil, nil, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (c *Client) Liabilities(ctx context.Context) (*finance.LiabilityBundle, error) {
	var bundle finance.LiabilityBundle
	if err := c.do(ctx, http.MethodGet, "/api/plaid/liabilities", nil, nil, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// Summary asks the server to run a pass and derive the summary itself.
func (c *Client) Summary(ctx context.Context, window finance.DateRange) (*summary.FinancialSummary, error) {
	var s summary.FinancialSummary
	if err := c.do(ctx, http.MethodGet, "/api/summary", windowQuery(window), nil, &s); err != nil {
		return nil, fmt.Errorf("failed to fetch summary: %w", err)
	}
	return &s, nil
}

var _ dashboard.Source = (*Client)(nil)

func windowQuery(window finance.DateRange) url.Values {
	if window.Start.IsZero() || window.End.IsZero() {
		return nil
	}
	return url.Values{
		"start_date": {window.StartDate()},
		"end_date":   {window.EndDate()},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var errResp errorResponse
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
