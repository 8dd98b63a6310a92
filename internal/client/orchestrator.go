// Package client drives the local dashboard: it links institutions through
// the API, runs aggregation passes and keeps the state cache current.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"wealthdash/internal/domain/dashboard"
	"wealthdash/internal/domain/finance"
	"wealthdash/internal/domain/statecache"
	"wealthdash/internal/domain/summary"
)

// ErrMissingPublicToken is returned by Connect for a blank token.
var ErrMissingPublicToken = errors.New("missing public token")

// API is the part of the server API that is not a fetch.
type API interface {
	CreateLinkToken(ctx context.Context) (*finance.LinkToken, error)
	ExchangePublicToken(ctx context.Context, publicToken string) ([]finance.Account, error)
}

// PassRunner runs one aggregation pass.
type PassRunner interface {
	Run(ctx context.Context, key string, src dashboard.Source, window finance.DateRange) (*dashboard.Snapshot, error)
}

type Orchestrator struct {
	api    API
	source dashboard.Source
	runner PassRunner
	store  *statecache.Store
	logger *slog.Logger
	now    func() time.Time
}

func New(api API, source dashboard.Source, runner PassRunner, store *statecache.Store, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		api:    api,
		source: source,
		runner: runner,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (o *Orchestrator) CreateLinkToken(ctx context.Context) (*finance.LinkToken, error) {
	return o.api.CreateLinkToken(ctx)
}

// Connect links a new institution and then refreshes everything. The returned
// error is the exchange error; a failed refresh only shows up in Status.
func (o *Orchestrator) Connect(ctx context.Context, publicToken string) error {
	publicToken = strings.TrimSpace(publicToken)
	if publicToken == "" {
		return ErrMissingPublicToken
	}

	accounts, err := o.api.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		o.store.EndLoading(err)
		return fmt.Errorf("failed to connect institution: %w", err)
	}

	d := o.store.Data()
	d.Accounts = append(slices.Clone(d.Accounts), accounts...)
	d.Connected = true
	o.store.ReplaceAll(ctx, d)

	o.logger.InfoContext(ctx, "institution connected", "accounts", len(accounts))

	o.Refresh(ctx)
	return nil
}

// Refresh runs a pass over the trailing 30 days. On failure the cached data is
// kept and the error is recorded in Status.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	o.store.BeginLoading()

	window := finance.DefaultRange(o.now())
	snap, err := o.runner.Run(ctx, dashboard.LocalKey, o.source, window)
	if err != nil {
		o.logger.WarnContext(ctx, "refresh failed", "error", err)
		o.store.EndLoading(err)
		return err
	}

	s := snap.Summary
	o.store.ReplaceAll(ctx, statecache.Data{
		Connected:    true,
		Accounts:     snap.Accounts,
		Transactions: snap.Transactions,
		Investments:  snap.Investments,
		Liabilities:  snap.Liabilities,
		Summary:      &s,
		LastUpdated:  o.now(),
	})
	o.store.EndLoading(nil)
	return nil
}

func (o *Orchestrator) Accounts() []finance.Account         { return o.store.Data().Accounts }
func (o *Orchestrator) Transactions() []finance.Transaction { return o.store.Data().Transactions }
func (o *Orchestrator) Investments() *finance.InvestmentBundle {
	return o.store.Data().Investments
}
func (o *Orchestrator) Liabilities() *finance.LiabilityBundle { return o.store.Data().Liabilities }
func (o *Orchestrator) Summary() *summary.FinancialSummary    { return o.store.Data().Summary }
func (o *Orchestrator) Connected() bool                       { return o.store.Data().Connected }
func (o *Orchestrator) LastUpdated() time.Time                { return o.store.Data().LastUpdated }
func (o *Orchestrator) Status() statecache.Status             { return o.store.Status() }
