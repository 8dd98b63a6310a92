// Package summary derives the FinancialSummary from one aggregation pass.
package summary

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"wealthdash/internal/domain/finance"
)

// InvestmentPolicy decides how investment accounts and their holdings are
// combined in total assets.
type InvestmentPolicy string

const (
	// PolicyHoldings counts an investment account through its holdings when
	// any holding references it, and through its balance otherwise.
	PolicyHoldings InvestmentPolicy = "holdings"
	// PolicyAdditive adds every non-credit balance and every holding, which
	// double-counts accounts that report both.
	PolicyAdditive InvestmentPolicy = "additive"
)

// ParsePolicy maps a configuration value onto a policy.
func ParsePolicy(s string) (InvestmentPolicy, error) {
	switch InvestmentPolicy(s) {
	case PolicyHoldings, PolicyAdditive:
		return InvestmentPolicy(s), nil
	}
	return "", fmt.Errorf("unknown investment policy %q", s)
}

// FinancialSummary is recomputed whole on every pass. NetWorth and
// MonthlySavings are always the exact differences of the fields they derive from.
type FinancialSummary struct {
	TotalAssets      float64   `json:"totalAssets"`
	TotalLiabilities float64   `json:"totalLiabilities"`
	NetWorth         float64   `json:"netWorth"`
	MonthlyIncome    float64   `json:"monthlyIncome"`
	MonthlyExpenses  float64   `json:"monthlyExpenses"`
	MonthlySavings   float64   `json:"monthlySavings"`
	WindowStart      string    `json:"windowStart,omitempty"`
	WindowEnd        string    `json:"windowEnd,omitempty"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// Input is everything one pass fetched.
type Input struct {
	Accounts     []finance.Account
	Transactions []finance.Transaction
	Investments  *finance.InvestmentBundle
	Liabilities  *finance.LiabilityBundle
	Window       finance.DateRange
}

// Engine computes summaries. It holds no per-pass state.
type Engine struct {
	policy InvestmentPolicy
	now    func() time.Time
}

// NewEngine creates an engine. An empty policy means PolicyHoldings.
func NewEngine(policy InvestmentPolicy) *Engine {
	if policy == "" {
		policy = PolicyHoldings
	}
	return &Engine{policy: policy, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Compute derives a summary from one pass's data.
func (e *Engine) Compute(in Input) FinancialSummary {
	var holdings []finance.Holding
	if in.Investments != nil {
		holdings = in.Investments.Holdings
	}

	assets := TotalAssets(in.Accounts, holdings, e.policy).InexactFloat64()
	liabilities := TotalLiabilities(in.Liabilities).InexactFloat64()
	income, expenses := CashFlow(in.Transactions)
	inc, exp := income.InexactFloat64(), expenses.InexactFloat64()

	s := FinancialSummary{
		TotalAssets:      assets,
		TotalLiabilities: liabilities,
		NetWorth:         assets - liabilities,
		MonthlyIncome:    inc,
		MonthlyExpenses:  exp,
		MonthlySavings:   inc - exp,
		LastUpdated:      e.now(),
	}
	if !in.Window.Start.IsZero() {
		s.WindowStart = in.Window.StartDate()
		s.WindowEnd = in.Window.EndDate()
	}
	return s
}

// TotalAssets sums non-credit account balances and holding values.
func TotalAssets(accounts []finance.Account, holdings []finance.Holding, policy InvestmentPolicy) decimal.Decimal {
	covered := make(map[string]struct{})
	if policy == PolicyHoldings {
		for _, h := range holdings {
			if h.AccountID != "" {
				covered[h.AccountID] = struct{}{}
			}
		}
	}

	total := decimal.Zero
	for _, a := range accounts {
		if a.Type == finance.AccountTypeCredit {
			continue
		}
		if a.Type == finance.AccountTypeInvestment {
			if _, ok := covered[a.ID]; ok {
				continue
			}
		}
		total = total.Add(amount(a.Balance.Current))
	}

	for _, h := range holdings {
		total = total.Add(amount(h.InstitutionValue))
	}
	return total
}

// TotalLiabilities sums the magnitude of every credit, mortgage and student
// entry. Credit accounts from the accounts fetch are deliberately absent.
func TotalLiabilities(b *finance.LiabilityBundle) decimal.Decimal {
	if b == nil {
		return decimal.Zero
	}

	total := decimal.Zero
	for _, group := range [][]finance.Liability{b.Credit, b.Mortgage, b.Student} {
		for _, l := range group {
			total = total.Add(amount(l.Balances.Current).Abs())
		}
	}
	return total
}

// CashFlow splits transactions by sign. Negative amounts are income and are
// returned as magnitudes; zero and positive amounts are expenses.
func CashFlow(txns []finance.Transaction) (income, expenses decimal.Decimal) {
	income, expenses = decimal.Zero, decimal.Zero
	for _, t := range txns {
		amt := decimal.NewFromFloat(t.Amount)
		if amt.IsNegative() {
			income = income.Add(amt.Abs())
		} else {
			expenses = expenses.Add(amt)
		}
	}
	return income, expenses
}

func amount(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}
