// Package plaid adapts the Plaid API to the finance.Provider contract.
package plaid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/plaid/plaid-go/plaid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"wealthdash/internal/domain/finance"
)

const (
	clientName       = "Wealth Management Dashboard"
	language         = "en"
	transactionsPage = 500
)

var countryCodes = []plaid.CountryCode{plaid.COUNTRYCODE_US}

// Client implements finance.Provider against the Plaid API.
type Client struct {
	api    *plaid.APIClient
	logger *slog.Logger
}

var _ finance.Provider = (*Client)(nil)

type Options struct {
	ClientID    string
	Secret      string
	Environment string
	// HTTPClient overrides the instrumented default.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient builds a Plaid API client for the configured environment.
func NewClient(opts Options) (*Client, error) {
	env, err := environment(opts.Environment)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	cfg := plaid.NewConfiguration()
	cfg.AddDefaultHeader("PLAID-CLIENT-ID", opts.ClientID)
	cfg.AddDefaultHeader("PLAID-SECRET", opts.Secret)
	cfg.UseEnvironment(env)
	cfg.HTTPClient = opts.HTTPClient
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	return &Client{api: plaid.NewAPIClient(cfg), logger: opts.Logger}, nil
}

func environment(name string) (plaid.Environment, error) {
	switch name {
	case "", "sandbox":
		return plaid.Sandbox, nil
	case "development":
		return plaid.Development, nil
	case "production":
		return plaid.Production, nil
	}
	return "", fmt.Errorf("unknown plaid environment %q", name)
}

func (c *Client) GetItem(ctx context.Context, accessToken string) (*finance.ItemInfo, error) {
	req := plaid.NewItemGetRequest(accessToken)
	resp, httpResp, err := c.api.PlaidApi.ItemGet(ctx).ItemGetRequest(*req).Execute()
	if err != nil {
		return nil, mapError("item get", err, httpResp)
	}

	item := resp.GetItem()
	info := &finance.ItemInfo{
		ItemID:        item.GetItemId(),
		InstitutionID: item.GetInstitutionId(),
	}
	if itemErr, ok := item.GetErrorOk(); ok && itemErr != nil {
		info.ErrorCode = itemErr.GetErrorCode()
	}
	return info, nil
}

func (c *Client) GetInstitutionName(ctx context.Context, institutionID string) (string, error) {
	req := plaid.NewInstitutionsGetByIdRequest(institutionID, countryCodes)
	resp, httpResp, err := c.api.PlaidApi.InstitutionsGetById(ctx).InstitutionsGetByIdRequest(*req).Execute()
	if err != nil {
		return "", mapError("institution get", err, httpResp)
	}
	inst := resp.GetInstitution()
	return inst.GetName(), nil
}

func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]finance.Account, error) {
	req := plaid.NewAccountsGetRequest(accessToken)
	resp, httpResp, err := c.api.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*req).Execute()
	if err != nil {
		return nil, mapError("accounts get", err, httpResp)
	}
	return toAccounts(resp.GetAccounts()), nil
}

// GetTransactions pages through the window until the reported total is read.
func (c *Client) GetTransactions(ctx context.Context, accessToken string, window finance.DateRange) ([]finance.Transaction, []finance.Account, error) {
	var (
		txns     []finance.Transaction
		accounts []finance.Account
	)
	for {
		opts := plaid.NewTransactionsGetRequestOptions()
		opts.SetCount(transactionsPage)
		opts.SetOffset(int32(len(txns)))

		req := plaid.NewTransactionsGetRequest(accessToken, window.StartDate(), window.EndDate())
		req.SetOptions(*opts)

		resp, httpResp, err := c.api.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*req).Execute()
		if err != nil {
			return nil, nil, mapError("transactions get", err, httpResp)
		}
		if accounts == nil {
			accounts = toAccounts(resp.GetAccounts())
		}

		page := resp.GetTransactions()
		for i := range page {
			txns = append(txns, toTransaction(&page[i]))
		}
		if len(page) == 0 || len(txns) >= int(resp.GetTotalTransactions()) {
			break
		}
	}
	c.logger.DebugContext(ctx, "fetched transactions", "count", len(txns), "start", window.StartDate(), "end", window.EndDate())
	return txns, accounts, nil
}

func (c *Client) GetHoldings(ctx context.Context, accessToken string) (*finance.HoldingsResult, error) {
	req := plaid.NewInvestmentsHoldingsGetRequest(accessToken)
	resp, httpResp, err := c.api.PlaidApi.InvestmentsHoldingsGet(ctx).InvestmentsHoldingsGetRequest(*req).Execute()
	if err != nil {
		return nil, mapError("holdings get", err, httpResp)
	}

	holdings := resp.GetHoldings()
	securities := resp.GetSecurities()
	out := &finance.HoldingsResult{
		Accounts:   toAccounts(resp.GetAccounts()),
		Holdings:   make([]finance.Holding, 0, len(holdings)),
		Securities: make([]finance.Security, 0, len(securities)),
	}
	for i := range holdings {
		out.Holdings = append(out.Holdings, toHolding(&holdings[i]))
	}
	for i := range securities {
		out.Securities = append(out.Securities, toSecurity(&securities[i]))
	}
	return out, nil
}

func (c *Client) GetInvestmentTransactions(ctx context.Context, accessToken string, window finance.DateRange) ([]finance.InvestmentTransaction, error) {
	var out []finance.InvestmentTransaction
	for {
		opts := plaid.NewInvestmentsTransactionsGetRequestOptions()
		opts.SetCount(transactionsPage)
		opts.SetOffset(int32(len(out)))

		req := plaid.NewInvestmentsTransactionsGetRequest(accessToken, window.StartDate(), window.EndDate())
		req.SetOptions(*opts)

		resp, httpResp, err := c.api.PlaidApi.InvestmentsTransactionsGet(ctx).InvestmentsTransactionsGetRequest(*req).Execute()
		if err != nil {
			return nil, mapError("investment transactions get", err, httpResp)
		}

		page := resp.GetInvestmentTransactions()
		for i := range page {
			out = append(out, toInvestmentTransaction(&page[i]))
		}
		if len(page) == 0 || len(out) >= int(resp.GetTotalInvestmentTransactions()) {
			break
		}
	}
	return out, nil
}

func (c *Client) GetLiabilities(ctx context.Context, accessToken string) (*finance.LiabilitiesResult, error) {
	req := plaid.NewLiabilitiesGetRequest(accessToken)
	resp, httpResp, err := c.api.PlaidApi.LiabilitiesGet(ctx).LiabilitiesGetRequest(*req).Execute()
	if err != nil {
		return nil, mapError("liabilities get", err, httpResp)
	}

	liabilities := resp.GetLiabilities()
	return toLiabilities(toAccounts(resp.GetAccounts()), &liabilities), nil
}

func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*finance.TokenExchange, error) {
	req := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	resp, httpResp, err := c.api.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*req).Execute()
	if err != nil {
		return nil, mapError("public token exchange", err, httpResp)
	}
	return &finance.TokenExchange{AccessToken: resp.GetAccessToken(), ItemID: resp.GetItemId()}, nil
}

func (c *Client) CreateLinkToken(ctx context.Context, clientUserID string) (*finance.LinkToken, error) {
	user := plaid.LinkTokenCreateRequestUser{ClientUserId: clientUserID}
	req := plaid.NewLinkTokenCreateRequest(clientName, language, countryCodes, user)
	req.SetProducts([]plaid.Products{plaid.PRODUCTS_AUTH, plaid.PRODUCTS_TRANSACTIONS})

	resp, httpResp, err := c.api.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*req).Execute()
	if err != nil {
		return nil, mapError("link token create", err, httpResp)
	}
	return &finance.LinkToken{LinkToken: resp.GetLinkToken(), Expiration: resp.GetExpiration()}, nil
}

func (c *Client) RemoveItem(ctx context.Context, accessToken string) error {
	req := plaid.NewItemRemoveRequest(accessToken)
	_, httpResp, err := c.api.PlaidApi.ItemRemove(ctx).ItemRemoveRequest(*req).Execute()
	if err != nil {
		return mapError("item remove", err, httpResp)
	}
	return nil
}

// mapError converts an API failure into a *finance.ProviderError carrying
// the Plaid error code. Context cancellation passes through unchanged.
func mapError(op string, err error, resp *http.Response) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("plaid %s: %w", op, err)
	}

	perr := &finance.ProviderError{Message: err.Error()}
	if resp != nil {
		perr.StatusCode = resp.StatusCode
	}
	if plaidErr, convErr := plaid.ToPlaidError(err); convErr == nil {
		perr.Code = plaidErr.GetErrorCode()
		perr.Message = plaidErr.GetErrorMessage()
	}
	return fmt.Errorf("plaid %s: %w", op, perr)
}
