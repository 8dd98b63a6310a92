package finance

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrItemLoginRequired means the item's credentials must be repaired by
	// the user before the provider will serve data for it again.
	ErrItemLoginRequired = errors.New("item login required")

	// ErrProviderUnavailable wraps transport-level and 5xx provider failures.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// ProviderError is a structured error returned by the provider API.
type ProviderError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider error %s (status %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("provider error %s (status %d): %s", e.Code, e.StatusCode, e.Message)
}

// Is lets callers match provider errors against the package sentinels.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrItemLoginRequired:
		return RequiresUserAction(e.Code)
	case ErrProviderUnavailable:
		return e.StatusCode == 0 || e.StatusCode >= 500
	}
	return false
}

// ErrorCode extracts the provider error code from err, or "" if err is not a
// provider error.
func ErrorCode(err error) string {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Code
	}
	return ""
}

// ItemInfo is the provider's view of one linked item.
type ItemInfo struct {
	ItemID        string
	InstitutionID string
	// ErrorCode is the provider error attached to the item, empty when healthy.
	ErrorCode string
}

// TokenExchange is the result of trading a public token for a durable one.
type TokenExchange struct {
	AccessToken string
	ItemID      string
}

// HoldingsResult is the raw holdings response for one item. Holdings are not
// joined to securities yet.
type HoldingsResult struct {
	Accounts   []Account
	Holdings   []Holding
	Securities []Security
}

// LiabilitiesResult is the raw liabilities response for one item. Entries
// carry only their AccountID and kind-specific details.
type LiabilitiesResult struct {
	Accounts []Account
	Credit   []Liability
	Mortgage []Liability
	Student  []Liability
}

// Provider is the narrow contract the aggregation layer needs from the
// banking-data API. Implementations return untagged records; institution and
// item annotations are applied by the caller.
type Provider interface {
	GetItem(ctx context.Context, accessToken string) (*ItemInfo, error)
	GetInstitutionName(ctx context.Context, institutionID string) (string, error)
	GetAccounts(ctx context.Context, accessToken string) ([]Account, error)
	GetTransactions(ctx context.Context, accessToken string, window DateRange) ([]Transaction, []Account, error)
	GetHoldings(ctx context.Context, accessToken string) (*HoldingsResult, error)
	GetInvestmentTransactions(ctx context.Context, accessToken string, window DateRange) ([]InvestmentTransaction, error)
	GetLiabilities(ctx context.Context, accessToken string) (*LiabilitiesResult, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*TokenExchange, error)
	CreateLinkToken(ctx context.Context, clientUserID string) (*LinkToken, error)
	RemoveItem(ctx context.Context, accessToken string) error
}

// RequiresUserAction reports whether a provider error code means the item
// cannot recover without the user re-authenticating.
func RequiresUserAction(code string) bool {
	switch code {
	case "ITEM_LOGIN_REQUIRED", "ITEM_LOCKED", "ACCESS_NOT_GRANTED", "INVALID_CREDENTIALS", "PENDING_EXPIRATION":
		return true
	}
	return false
}
