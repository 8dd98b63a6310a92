package plaid

import (
	"github.com/plaid/plaid-go/plaid"

	"wealthdash/internal/domain/finance"
)

func toAccounts(in []plaid.AccountBase) []finance.Account {
	out := make([]finance.Account, 0, len(in))
	for i := range in {
		out = append(out, toAccount(&in[i]))
	}
	return out
}

func toAccount(a *plaid.AccountBase) finance.Account {
	bal := a.GetBalances()
	return finance.Account{
		ID:      a.GetAccountId(),
		Name:    a.GetName(),
		Mask:    a.GetMask(),
		Type:    finance.NormalizeAccountType(string(a.GetType())),
		Subtype: string(a.GetSubtype()),
		Balance: finance.Balance{
			Available: floatOk(bal.GetAvailableOk()),
			Current:   floatOk(bal.GetCurrentOk()),
			Limit:     floatOk(bal.GetLimitOk()),
			Currency:  bal.GetIsoCurrencyCode(),
		},
	}
}

func toTransaction(t *plaid.Transaction) finance.Transaction {
	category := t.GetCategory()
	if category == nil {
		category = []string{}
	}
	return finance.Transaction{
		ID:           t.GetTransactionId(),
		AccountID:    t.GetAccountId(),
		Date:         t.GetDate(),
		Description:  t.GetName(),
		MerchantName: t.GetMerchantName(),
		Amount:       t.GetAmount(),
		Currency:     t.GetIsoCurrencyCode(),
		Category:     category,
		CategoryID:   t.GetCategoryId(),
		Pending:      t.GetPending(),
	}
}

func toHolding(h *plaid.Holding) finance.Holding {
	return finance.Holding{
		AccountID:        h.GetAccountId(),
		SecurityID:       h.GetSecurityId(),
		Quantity:         h.GetQuantity(),
		InstitutionPrice: h.GetInstitutionPrice(),
		InstitutionValue: floatOk(h.GetInstitutionValueOk()),
		CostBasis:        floatOk(h.GetCostBasisOk()),
		Currency:         h.GetIsoCurrencyCode(),
	}
}

func toSecurity(s *plaid.Security) finance.Security {
	return finance.Security{
		SecurityID:   s.GetSecurityId(),
		Name:         s.GetName(),
		TickerSymbol: s.GetTickerSymbol(),
		Type:         s.GetType(),
		ClosePrice:   floatOk(s.GetClosePriceOk()),
		Currency:     s.GetIsoCurrencyCode(),
	}
}

func toInvestmentTransaction(t *plaid.InvestmentTransaction) finance.InvestmentTransaction {
	return finance.InvestmentTransaction{
		ID:         t.GetInvestmentTransactionId(),
		AccountID:  t.GetAccountId(),
		SecurityID: t.GetSecurityId(),
		Date:       t.GetDate(),
		Name:       t.GetName(),
		Type:       string(t.GetType()),
		Subtype:    string(t.GetSubtype()),
		Quantity:   t.GetQuantity(),
		Amount:     t.GetAmount(),
		Price:      t.GetPrice(),
		Fees:       t.GetFees(),
		Currency:   t.GetIsoCurrencyCode(),
	}
}

func toLiabilities(accounts []finance.Account, lo *plaid.LiabilitiesObject) *finance.LiabilitiesResult {
	out := &finance.LiabilitiesResult{
		Accounts: accounts,
		Credit:   []finance.Liability{},
		Mortgage: []finance.Liability{},
		Student:  []finance.Liability{},
	}

	credit := lo.GetCredit()
	for i := range credit {
		c := &credit[i]
		out.Credit = append(out.Credit, finance.Liability{
			AccountID:            c.GetAccountId(),
			LastStatementBalance: floatOk(c.GetLastStatementBalanceOk()),
			MinimumPaymentAmount: floatOk(c.GetMinimumPaymentAmountOk()),
			NextPaymentDueDate:   c.GetNextPaymentDueDate(),
			IsOverdue:            boolOk(c.GetIsOverdueOk()),
		})
	}

	mortgages := lo.GetMortgage()
	for i := range mortgages {
		m := &mortgages[i]
		rate := m.GetInterestRate()
		out.Mortgage = append(out.Mortgage, finance.Liability{
			AccountID:              m.GetAccountId(),
			NextMonthlyPayment:     floatOk(m.GetNextMonthlyPaymentOk()),
			NextPaymentDueDate:     m.GetNextPaymentDueDate(),
			InterestRatePercentage: floatOk(rate.GetPercentageOk()),
		})
	}

	student := lo.GetStudent()
	for i := range student {
		s := &student[i]
		out.Student = append(out.Student, finance.Liability{
			AccountID:              s.GetAccountId(),
			LoanName:               s.GetLoanName(),
			MinimumPaymentAmount:   floatOk(s.GetMinimumPaymentAmountOk()),
			NextPaymentDueDate:     s.GetNextPaymentDueDate(),
			IsOverdue:              boolOk(s.GetIsOverdueOk()),
			InterestRatePercentage: floatOk(s.GetInterestRatePercentageOk()),
		})
	}
	return out
}

// floatOk copies a generated (*float64, bool) getter result so the finance
// record does not alias the API model.
func floatOk(v *float64, ok bool) *float64 {
	if !ok || v == nil {
		return nil
	}
	return finance.Float(*v)
}

func boolOk(v *bool, ok bool) *bool {
	if !ok || v == nil {
		return nil
	}
	b := *v
	return &b
}
