// Package finance holds the provider-neutral financial records shared by the
// fetchers, the summary engine and the client cache.
package finance

import "time"

// Placeholders used when a lookup or join cannot be resolved.
const (
	UnknownInstitution = "Unknown Institution"
	UnknownSecurity    = "Unknown Security"
	UnknownAccount     = "Unknown Account"
)

type AccountType string

const (
	AccountTypeDepository AccountType = "depository"
	AccountTypeCredit     AccountType = "credit"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeLoan       AccountType = "loan"
	AccountTypeOther      AccountType = "other"
)

// NormalizeAccountType maps provider account types onto the known set.
func NormalizeAccountType(s string) AccountType {
	switch AccountType(s) {
	case AccountTypeDepository, AccountTypeCredit, AccountTypeInvestment, AccountTypeLoan:
		return AccountType(s)
	case "brokerage":
		return AccountTypeInvestment
	default:
		return AccountTypeOther
	}
}

// Balance carries nullable provider amounts. A nil field means the provider
// did not report it.
type Balance struct {
	Available *float64 `json:"available"`
	Current   *float64 `json:"current"`
	Limit     *float64 `json:"limit"`
	Currency  string   `json:"currency,omitempty"`
}

type Account struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Mask        string      `json:"mask"`
	Type        AccountType `json:"type"`
	Subtype     string      `json:"subtype"`
	Institution string      `json:"institution"`
	ItemID      string      `json:"item_id"`
	Balance     Balance     `json:"balance"`
}

// AccountRef is the short account description embedded in a transaction.
type AccountRef struct {
	Name    string      `json:"name"`
	Mask    string      `json:"mask"`
	Type    AccountType `json:"type"`
	Subtype string      `json:"subtype"`
}

// Transaction amounts follow the provider convention: positive is money
// leaving the account, negative is money coming in.
type Transaction struct {
	ID           string     `json:"id"`
	AccountID    string     `json:"account_id"`
	Date         string     `json:"date"`
	Description  string     `json:"description"`
	MerchantName string     `json:"merchant_name,omitempty"`
	Amount       float64    `json:"amount"`
	Currency     string     `json:"currency,omitempty"`
	Category     []string   `json:"category"`
	CategoryID   string     `json:"category_id,omitempty"`
	Pending      bool       `json:"pending"`
	Institution  string     `json:"institution"`
	ItemID       string     `json:"item_id"`
	Account      AccountRef `json:"account"`
}

type Holding struct {
	AccountID        string   `json:"account_id"`
	SecurityID       string   `json:"security_id"`
	SecurityName     string   `json:"security_name"`
	TickerSymbol     string   `json:"ticker_symbol,omitempty"`
	Quantity         float64  `json:"quantity"`
	InstitutionPrice float64  `json:"institution_price"`
	InstitutionValue *float64 `json:"institution_value"`
	CostBasis        *float64 `json:"cost_basis"`
	Currency         string   `json:"currency,omitempty"`
	Institution      string   `json:"institution"`
	ItemID           string   `json:"item_id"`
}

type Security struct {
	SecurityID   string   `json:"security_id"`
	Name         string   `json:"name"`
	TickerSymbol string   `json:"ticker_symbol,omitempty"`
	Type         string   `json:"type,omitempty"`
	ClosePrice   *float64 `json:"close_price"`
	Currency     string   `json:"currency,omitempty"`
}

type InvestmentTransaction struct {
	ID          string  `json:"id"`
	AccountID   string  `json:"account_id"`
	SecurityID  string  `json:"security_id,omitempty"`
	Date        string  `json:"date"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Subtype     string  `json:"subtype,omitempty"`
	Quantity    float64 `json:"quantity"`
	Amount      float64 `json:"amount"`
	Price       float64 `json:"price"`
	Fees        float64 `json:"fees"`
	Currency    string  `json:"currency,omitempty"`
	Institution string  `json:"institution"`
	ItemID      string  `json:"item_id"`
}

type InvestmentBundle struct {
	Accounts     []Account               `json:"accounts"`
	Holdings     []Holding               `json:"holdings"`
	Securities   []Security              `json:"securities"`
	Transactions []InvestmentTransaction `json:"investment_transactions"`
}

// NewInvestmentBundle returns a bundle whose lists encode as [] rather than null.
func NewInvestmentBundle() *InvestmentBundle {
	return &InvestmentBundle{
		Accounts:     []Account{},
		Holdings:     []Holding{},
		Securities:   []Security{},
		Transactions: []InvestmentTransaction{},
	}
}

type LiabilityKind string

const (
	LiabilityCredit   LiabilityKind = "credit"
	LiabilityMortgage LiabilityKind = "mortgage"
	LiabilityStudent  LiabilityKind = "student"
)

// Liability is one credit, mortgage or student-loan entry. Balances are copied
// from the account with the same AccountID; the kind-specific fields are
// optional.
type Liability struct {
	AccountID   string  `json:"account_id"`
	AccountName string  `json:"account_name"`
	AccountMask string  `json:"account_mask,omitempty"`
	Balances    Balance `json:"balances"`
	Institution string  `json:"institution"`
	ItemID      string  `json:"item_id"`

	LastStatementBalance   *float64 `json:"last_statement_balance,omitempty"`
	MinimumPaymentAmount   *float64 `json:"minimum_payment_amount,omitempty"`
	NextPaymentDueDate     string   `json:"next_payment_due_date,omitempty"`
	IsOverdue              *bool    `json:"is_overdue,omitempty"`
	NextMonthlyPayment     *float64 `json:"next_monthly_payment,omitempty"`
	InterestRatePercentage *float64 `json:"interest_rate_percentage,omitempty"`
	LoanName               string   `json:"loan_name,omitempty"`
}

type LiabilityBundle struct {
	Accounts []Account   `json:"accounts"`
	Credit   []Liability `json:"credit"`
	Mortgage []Liability `json:"mortgage"`
	Student  []Liability `json:"student"`
}

// NewLiabilityBundle returns a bundle whose lists encode as [] rather than null.
func NewLiabilityBundle() *LiabilityBundle {
	return &LiabilityBundle{
		Accounts: []Account{},
		Credit:   []Liability{},
		Mortgage: []Liability{},
		Student:  []Liability{},
	}
}

// LinkToken is the provider-issued token that bootstraps the linking UI.
type LinkToken struct {
	LinkToken  string    `json:"link_token"`
	Expiration time.Time `json:"expiration"`
}

// Float returns a pointer to v. Handy for literals in tests and adapters.
func Float(v float64) *float64 {
	return &v
}

// ValueOrZero treats a missing amount as 0.
func ValueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
