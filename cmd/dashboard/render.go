package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"wealthdash/internal/domain/finance"
	"wealthdash/internal/domain/summary"
)

const defaultCurrency = "USD"

// formatMoney renders amount in currency's minor units, e.g. $1,234.50.
// Unknown or empty currency codes fall back to USD.
func formatMoney(amount float64, currency string) string {
	if currency == "" || money.GetCurrency(currency) == nil {
		currency = defaultCurrency
	}
	cur := money.GetCurrency(currency)
	minor := decimal.NewFromFloat(amount).Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, currency).Display()
}

func formatOptional(amount *float64, currency string) string {
	if amount == nil {
		return "-"
	}
	return formatMoney(*amount, currency)
}

func renderSummary(w io.Writer, s *summary.FinancialSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	rows := []struct {
		label string
		value float64
	}{
		{"Total assets", s.TotalAssets},
		{"Total liabilities", s.TotalLiabilities},
		{"Net worth", s.NetWorth},
		{"Income", s.MonthlyIncome},
		{"Expenses", s.MonthlyExpenses},
		{"Savings", s.MonthlySavings},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t\n", r.label, formatMoney(r.value, defaultCurrency))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if s.WindowStart != "" {
		fmt.Fprintf(w, "cash flow window %s to %s\n", s.WindowStart, s.WindowEnd)
	}
	return nil
}

func renderAccounts(w io.Writer, accounts []finance.Account) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTITUTION\tACCOUNT\tTYPE\tCURRENT\tAVAILABLE")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			a.Institution,
			joinNonEmpty(" ", a.Name, maskSuffix(a.Mask)),
			joinNonEmpty("/", string(a.Type), a.Subtype),
			formatOptional(a.Balance.Current, a.Balance.Currency),
			formatOptional(a.Balance.Available, a.Balance.Currency),
		)
	}
	return tw.Flush()
}

func renderTransactions(w io.Writer, txns []finance.Transaction) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDESCRIPTION\tACCOUNT\tAMOUNT\t")
	for _, t := range txns {
		desc := t.Description
		if t.Pending {
			desc += " (pending)"
		}
		// Provider amounts are positive for outflows; show them as negative.
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", t.Date, desc, t.Account.Name, formatMoney(-t.Amount, t.Currency))
	}
	return tw.Flush()
}

func renderHoldings(w io.Writer, holdings []finance.Holding) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SECURITY\tQUANTITY\tPRICE\tVALUE\tCOST BASIS")
	for _, h := range holdings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			joinNonEmpty(" ", h.SecurityName, parens(h.TickerSymbol)),
			decimal.NewFromFloat(h.Quantity).String(),
			formatMoney(h.InstitutionPrice, h.Currency),
			formatOptional(h.InstitutionValue, h.Currency),
			formatOptional(h.CostBasis, h.Currency),
		)
	}
	return tw.Flush()
}

func renderLiabilities(w io.Writer, b *finance.LiabilityBundle) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tACCOUNT\tBALANCE\tMIN PAYMENT\tDUE")
	groups := []struct {
		kind finance.LiabilityKind
		list []finance.Liability
	}{
		{finance.LiabilityCredit, b.Credit},
		{finance.LiabilityMortgage, b.Mortgage},
		{finance.LiabilityStudent, b.Student},
	}
	for _, g := range groups {
		for _, l := range g.list {
			payment := l.MinimumPaymentAmount
			if payment == nil {
				payment = l.NextMonthlyPayment
			}
			due := l.NextPaymentDueDate
			if due == "" {
				due = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				g.kind,
				joinNonEmpty(" ", l.AccountName, maskSuffix(l.AccountMask)),
				formatOptional(l.Balances.Current, l.Balances.Currency),
				formatOptional(payment, l.Balances.Currency),
				due,
			)
		}
	}
	return tw.Flush()
}

func maskSuffix(mask string) string {
	if mask == "" {
		return ""
	}
	return "••" + mask
}

func parens(s string) string {
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}
