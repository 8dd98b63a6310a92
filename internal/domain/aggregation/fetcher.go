// Package aggregation fans provider calls out over a user's linked items and
// flattens the results into provider-neutral records.
package aggregation

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"wealthdash/internal/domain/finance"
	"wealthdash/internal/domain/linkeditem"
)

const (
	CategoryAccounts     = "accounts"
	CategoryTransactions = "transactions"
	CategoryInvestments  = "investments"
	CategoryLiabilities  = "liabilities"
)

const (
	defaultCallTimeout    = 10 * time.Second
	defaultMaxConcurrency = 8
)

var (
	aggMeter           = otel.Meter("wealthdash/aggregation")
	itemFailures, _    = aggMeter.Int64Counter("aggregation.item.failures", metric.WithDescription("Per-item fetch failures by category"))
	institutionMiss, _ = aggMeter.Int64Counter("aggregation.institution.unknown", metric.WithDescription("Institution lookups that fell back to the placeholder name"))
)

// ItemStore is the part of the linked-item service the fetchers depend on.
type ItemStore interface {
	ActiveItems(ctx context.Context, userID uuid.UUID) ([]*linkeditem.LinkedItem, error)
	MarkError(ctx context.Context, userID uuid.UUID, itemID, reason string) error
}

// Options tunes the fetcher. Zero values fall back to defaults.
type Options struct {
	CallTimeout    time.Duration
	MaxConcurrency int
	Logger         *slog.Logger
	Now            func() time.Time
}

// Fetcher runs the four per-source fetches for one user. A failing item
// contributes nothing to the category and never aborts its siblings.
type Fetcher struct {
	provider     finance.Provider
	items        ItemStore
	institutions *institutionCache
	callTimeout  time.Duration
	limit        int
	logger       *slog.Logger
	now          func() time.Time
}

// NewFetcher creates a fetcher over provider and the user's item store.
func NewFetcher(provider finance.Provider, items ItemStore, opts Options) *Fetcher {
	f := &Fetcher{
		provider:     provider,
		items:        items,
		institutions: newInstitutionCache(),
		callTimeout:  opts.CallTimeout,
		limit:        opts.MaxConcurrency,
		logger:       opts.Logger,
		now:          opts.Now,
	}
	if f.callTimeout <= 0 {
		f.callTimeout = defaultCallTimeout
	}
	if f.limit <= 0 {
		f.limit = defaultMaxConcurrency
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

// Accounts returns every account across the user's active items.
func (f *Fetcher) Accounts(ctx context.Context, userID uuid.UUID) ([]finance.Account, error) {
	perItem, err := fanOut(ctx, f, userID, CategoryAccounts, func(ctx context.Context, item *linkeditem.LinkedItem, institution string) ([]finance.Account, error) {
		var accounts []finance.Account
		err := f.call(ctx, func(ctx context.Context) (err error) {
			accounts, err = f.provider.GetAccounts(ctx, item.AccessToken)
			return err
		})
		if err != nil {
			return nil, err
		}
		return tagAccounts(accounts, institution, item.ItemID), nil
	})
	if err != nil {
		return nil, err
	}
	return flatten(perItem), nil
}

// Transactions returns the user's transactions within window, newest first.
func (f *Fetcher) Transactions(ctx context.Context, userID uuid.UUID, window finance.DateRange) ([]finance.Transaction, error) {
	perItem, err := fanOut(ctx, f, userID, CategoryTransactions, func(ctx context.Context, item *linkeditem.LinkedItem, institution string) ([]finance.Transaction, error) {
		var (
			txns     []finance.Transaction
			accounts []finance.Account
		)
		err := f.call(ctx, func(ctx context.Context) (err error) {
			txns, accounts, err = f.provider.GetTransactions(ctx, item.AccessToken, window)
			return err
		})
		if err != nil {
			return nil, err
		}

		byID := indexAccounts(accounts)
		for i := range txns {
			tx := &txns[i]
			tx.Institution = institution
			tx.ItemID = item.ItemID
			if tx.Category == nil {
				tx.Category = []string{}
			}
			if a, ok := byID[tx.AccountID]; ok {
				tx.Account = finance.AccountRef{Name: a.Name, Mask: a.Mask, Type: a.Type, Subtype: a.Subtype}
			} else {
				tx.Account = finance.AccountRef{Name: finance.UnknownAccount}
			}
		}
		return txns, nil
	})
	if err != nil {
		return nil, err
	}

	all := flatten(perItem)
	SortTransactions(all)
	return all, nil
}

// SortTransactions orders transactions by date, newest first. Equal dates are
// ordered by id so the result does not depend on item completion order.
func SortTransactions(txns []finance.Transaction) {
	slices.SortStableFunc(txns, func(a, b finance.Transaction) int {
		if c := cmp.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

type investmentsPart struct {
	accounts     []finance.Account
	holdings     []finance.Holding
	securities   []finance.Security
	transactions []finance.InvestmentTransaction
}

// Investments returns accounts, holdings joined to their securities, the
// securities themselves and the last 30 days of investment transactions.
func (f *Fetcher) Investments(ctx context.Context, userID uuid.UUID) (*finance.InvestmentBundle, error) {
	window := finance.TrailingWindow(f.now(), finance.DefaultWindowDays)

	perItem, err := fanOut(ctx, f, userID, CategoryInvestments, func(ctx context.Context, item *linkeditem.LinkedItem, institution string) (investmentsPart, error) {
		var (
			res  *finance.HoldingsResult
			txns []finance.InvestmentTransaction
		)
		if err := f.call(ctx, func(ctx context.Context) (err error) {
			res, err = f.provider.GetHoldings(ctx, item.AccessToken)
			return err
		}); err != nil {
			return investmentsPart{}, err
		}
		if res == nil {
			res = &finance.HoldingsResult{}
		}
		if err := f.call(ctx, func(ctx context.Context) (err error) {
			txns, err = f.provider.GetInvestmentTransactions(ctx, item.AccessToken, window)
			return err
		}); err != nil {
			return investmentsPart{}, err
		}

		securities := make(map[string]finance.Security, len(res.Securities))
		for _, s := range res.Securities {
			securities[s.SecurityID] = s
		}

		holdings := res.Holdings
		for i := range holdings {
			h := &holdings[i]
			h.Institution = institution
			h.ItemID = item.ItemID
			if s, ok := securities[h.SecurityID]; ok {
				h.SecurityName = s.Name
				h.TickerSymbol = s.TickerSymbol
			} else {
				h.SecurityName = finance.UnknownSecurity
			}
		}
		for i := range txns {
			txns[i].Institution = institution
			txns[i].ItemID = item.ItemID
		}

		return investmentsPart{
			accounts:     tagAccounts(res.Accounts, institution, item.ItemID),
			holdings:     holdings,
			securities:   res.Securities,
			transactions: txns,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	bundle := finance.NewInvestmentBundle()
	seen := make(map[string]struct{})
	for _, p := range perItem {
		bundle.Accounts = append(bundle.Accounts, p.accounts...)
		bundle.Holdings = append(bundle.Holdings, p.holdings...)
		bundle.Transactions = append(bundle.Transactions, p.transactions...)
		for _, s := range p.securities {
			if _, dup := seen[s.SecurityID]; dup {
				continue
			}
			seen[s.SecurityID] = struct{}{}
			bundle.Securities = append(bundle.Securities, s)
		}
	}
	return bundle, nil
}

// Liabilities returns credit, mortgage and student entries, each carrying the
// balances and name of the account it belongs to.
func (f *Fetcher) Liabilities(ctx context.Context, userID uuid.UUID) (*finance.LiabilityBundle, error) {
	perItem, err := fanOut(ctx, f, userID, CategoryLiabilities, func(ctx context.Context, item *linkeditem.LinkedItem, institution string) (*finance.LiabilitiesResult, error) {
		var res *finance.LiabilitiesResult
		if err := f.call(ctx, func(ctx context.Context) (err error) {
			res, err = f.provider.GetLiabilities(ctx, item.AccessToken)
			return err
		}); err != nil {
			return nil, err
		}
		if res == nil {
			res = &finance.LiabilitiesResult{}
		}

		res.Accounts = tagAccounts(res.Accounts, institution, item.ItemID)
		byID := indexAccounts(res.Accounts)
		for _, group := range [][]finance.Liability{res.Credit, res.Mortgage, res.Student} {
			for i := range group {
				joinLiability(&group[i], byID, institution, item.ItemID)
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	bundle := finance.NewLiabilityBundle()
	for _, res := range perItem {
		if res == nil {
			continue
		}
		bundle.Accounts = append(bundle.Accounts, res.Accounts...)
		bundle.Credit = append(bundle.Credit, res.Credit...)
		bundle.Mortgage = append(bundle.Mortgage, res.Mortgage...)
		bundle.Student = append(bundle.Student, res.Student...)
	}
	return bundle, nil
}

func joinLiability(l *finance.Liability, accounts map[string]finance.Account, institution, itemID string) {
	l.Institution = institution
	l.ItemID = itemID
	a, ok := accounts[l.AccountID]
	if !ok {
		l.AccountName = finance.UnknownAccount
		return
	}
	l.AccountName = a.Name
	l.AccountMask = a.Mask
	l.Balances = a.Balance
}

// fanOut lists the user's active items and runs fn once per item, at most
// f.limit at a time. Results keep item order. Failed items yield the zero T.
// Cancellation of ctx is not an item failure: it fails the whole category.
func fanOut[T any](ctx context.Context, f *Fetcher, userID uuid.UUID, category string, fn func(ctx context.Context, item *linkeditem.LinkedItem, institution string) (T, error)) ([]T, error) {
	items, err := f.items.ActiveItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked items: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]T, len(items))
	var g errgroup.Group
	g.SetLimit(f.limit)

	for i, item := range items {
		g.Go(func() error {
			institution := f.institutionName(ctx, item)
			res, err := fn(ctx, item, institution)
			if err != nil {
				if ctx.Err() == nil {
					f.itemFailed(ctx, userID, item, category, err)
				}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s fetch interrupted: %w", category, err)
	}
	return results, nil
}

// itemFailed logs and counts a failed item, and flags it for the user when
// the provider says the login needs repair.
func (f *Fetcher) itemFailed(ctx context.Context, userID uuid.UUID, item *linkeditem.LinkedItem, category string, err error) {
	itemFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
	f.logger.WarnContext(ctx, "item fetch failed",
		"category", category,
		"user_id", userID,
		"item_id", item.ItemID,
		"error", err,
	)

	if !errors.Is(err, finance.ErrItemLoginRequired) {
		return
	}
	reason := finance.ErrorCode(err)
	if reason == "" {
		reason = "ITEM_LOGIN_REQUIRED"
	}
	if markErr := f.items.MarkError(ctx, userID, item.ItemID, reason); markErr != nil {
		f.logger.WarnContext(ctx, "failed to mark item as errored", "item_id", item.ItemID, "error", markErr)
	}
}

// institutionName resolves the display name of the item's institution. Any
// failure yields the placeholder name.
func (f *Fetcher) institutionName(ctx context.Context, item *linkeditem.LinkedItem) string {
	institutionID := item.InstitutionID
	if institutionID == "" {
		var info *finance.ItemInfo
		err := f.call(ctx, func(ctx context.Context) (err error) {
			info, err = f.provider.GetItem(ctx, item.AccessToken)
			return err
		})
		if err != nil {
			f.logger.DebugContext(ctx, "item lookup failed", "item_id", item.ItemID, "error", err)
		} else {
			institutionID = info.InstitutionID
		}
	}
	if institutionID == "" {
		institutionMiss.Add(ctx, 1)
		return finance.UnknownInstitution
	}

	if name, ok := f.institutions.get(institutionID); ok {
		return name
	}

	var name string
	err := f.call(ctx, func(ctx context.Context) (err error) {
		name, err = f.provider.GetInstitutionName(ctx, institutionID)
		return err
	})
	if err != nil || name == "" {
		institutionMiss.Add(ctx, 1)
		f.logger.DebugContext(ctx, "institution lookup failed", "institution_id", institutionID, "error", err)
		return finance.UnknownInstitution
	}

	f.institutions.put(institutionID, name)
	return name
}

// InstitutionName resolves an institution id through the shared cache.
func (f *Fetcher) InstitutionName(ctx context.Context, institutionID string) string {
	if institutionID == "" {
		return finance.UnknownInstitution
	}
	return f.institutionName(ctx, &linkeditem.LinkedItem{InstitutionID: institutionID})
}

// call runs one provider call under its own timeout.
func (f *Fetcher) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()
	return fn(ctx)
}

func tagAccounts(accounts []finance.Account, institution, itemID string) []finance.Account {
	for i := range accounts {
		accounts[i].Institution = institution
		accounts[i].ItemID = itemID
	}
	return accounts
}

func indexAccounts(accounts []finance.Account) map[string]finance.Account {
	m := make(map[string]finance.Account, len(accounts))
	for _, a := range accounts {
		m[a.ID] = a
	}
	return m
}

func flatten[T any](parts [][]T) []T {
	out := make([]T, 0)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// institutionCache remembers institution names for the life of the process.
type institutionCache struct {
	mu    sync.RWMutex
	names map[string]string
}

func newInstitutionCache() *institutionCache {
	return &institutionCache{names: make(map[string]string)}
}

func (c *institutionCache) get(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[id]
	return name, ok
}

func (c *institutionCache) put(id, name string) {
	c.mu.Lock()
	c.names[id] = name
	c.mu.Unlock()
}

// UserSource binds a fetcher to one user so a dashboard pass can drive it.
type UserSource struct {
	fetcher *Fetcher
	userID  uuid.UUID
}

// ForUser returns the four fetches bound to userID.
func (f *Fetcher) ForUser(userID uuid.UUID) *UserSource {
	return &UserSource{fetcher: f, userID: userID}
}

func (s *UserSource) Accounts(ctx context.Context) ([]finance.Account, error) {
	return s.fetcher.Accounts(ctx, s.userID)
}

func (s *UserSource) Transactions(ctx context.Context, window finance.DateRange) ([]finance.Transaction, error) {
	return s.fetcher.Transactions(ctx, s.userID, window)
}

func (s *UserSource) Investments(ctx context.Context) (*finance.InvestmentBundle, error) {
	return s.fetcher.Investments(ctx, s.userID)
}

func (s *UserSource) Liabilities(ctx context.Context) (*finance.LiabilityBundle, error) {
	return s.fetcher.Liabilities(ctx, s.userID)
}
