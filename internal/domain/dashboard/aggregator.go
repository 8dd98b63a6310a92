// Package dashboard runs a full aggregation pass: the four category fetches
// together, then one derivation of the summary.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"wealthdash/internal/domain/finance"
	"wealthdash/internal/domain/summary"
)

var (
	passTracer      = otel.Tracer("wealthdash/dashboard")
	passMeter       = otel.Meter("wealthdash/dashboard")
	passDuration, _ = passMeter.Float64Histogram("aggregation.pass.duration", metric.WithDescription("Full aggregation pass duration in seconds"), metric.WithUnit("s"))
)

// LocalKey is the pass key used by a single-user client.
const LocalKey = "local"

// defaultPassTimeout bounds a shared pass once no caller is left to cancel it.
const defaultPassTimeout = 2 * time.Minute

// State is where a key's pass stands. Succeeded and Failed are reported to
// observers as a pass ends; State itself settles back to Idle afterwards.
type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Source supplies the four categories for one user.
type Source interface {
	Accounts(ctx context.Context) ([]finance.Account, error)
	Transactions(ctx context.Context, window finance.DateRange) ([]finance.Transaction, error)
	Investments(ctx context.Context) (*finance.InvestmentBundle, error)
	Liabilities(ctx context.Context) (*finance.LiabilityBundle, error)
}

// Snapshot is the result of one successful pass. Callers that joined the same
// pass share it and must treat it as read-only.
type Snapshot struct {
	Accounts     []finance.Account
	Transactions []finance.Transaction
	Investments  *finance.InvestmentBundle
	Liabilities  *finance.LiabilityBundle
	Summary      summary.FinancialSummary
}

// Aggregator serializes passes per key and window. A pass requested while an
// identical one is in flight joins it instead of starting a second one.
type Aggregator struct {
	engine      *summary.Engine
	logger      *slog.Logger
	group       singleflight.Group
	passTimeout time.Duration
	observer    func(key string, s State)

	mu       sync.Mutex
	inFlight map[string]int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithObserver registers fn to receive every state transition of every key.
// fn runs synchronously on the pass goroutine.
func WithObserver(fn func(key string, s State)) Option {
	return func(a *Aggregator) { a.observer = fn }
}

// WithPassTimeout bounds how long a single pass may run.
func WithPassTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.passTimeout = d
		}
	}
}

// NewAggregator creates an aggregator deriving summaries with engine.
func NewAggregator(engine *summary.Engine, logger *slog.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Aggregator{
		engine:      engine,
		logger:      logger,
		passTimeout: defaultPassTimeout,
		inFlight:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State reports whether a pass for key is running. Keys with nothing in
// flight are idle and hold no memory.
func (a *Aggregator) State(key string) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inFlight[key] > 0 {
		return StateFetching
	}
	return StateIdle
}

func (a *Aggregator) begin(key string) {
	a.mu.Lock()
	a.inFlight[key]++
	a.mu.Unlock()
	a.notify(key, StateFetching)
}

func (a *Aggregator) end(key string, outcome State) {
	a.notify(key, outcome)
	a.mu.Lock()
	a.inFlight[key]--
	idle := a.inFlight[key] <= 0
	if idle {
		delete(a.inFlight, key)
	}
	a.mu.Unlock()
	if idle {
		a.notify(key, StateIdle)
	}
}

func (a *Aggregator) notify(key string, s State) {
	if a.observer != nil {
		a.observer(key, s)
	}
}

// Run executes a pass for key over window, or waits for the identical pass
// already running. Any category failure fails the whole pass and no summary
// is derived. The shared pass is detached from ctx: cancelling ctx abandons
// only this caller's wait.
func (a *Aggregator) Run(ctx context.Context, key string, src Source, window finance.DateRange) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("aggregation pass not started: %w", err)
	}

	flight := key + "|" + window.StartDate() + "/" + window.EndDate()
	ch := a.group.DoChan(flight, func() (any, error) {
		passCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.passTimeout)
		defer cancel()
		return a.run(passCtx, key, src, window)
	})

	select {
	case <-ctx.Done():
		a.logger.DebugContext(ctx, "caller left in-flight pass", "key", key)
		return nil, fmt.Errorf("aggregation pass abandoned: %w", ctx.Err())
	case res := <-ch:
		if res.Shared {
			a.logger.DebugContext(ctx, "joined in-flight pass", "key", key)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (a *Aggregator) run(ctx context.Context, key string, src Source, window finance.DateRange) (*Snapshot, error) {
	a.begin(key)

	ctx, span := passTracer.Start(ctx, "dashboard.pass", trace.WithAttributes(attribute.String("pass.key", key)))
	defer span.End()
	start := time.Now()

	snap := &Snapshot{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Accounts, err = src.Accounts(gctx)
		return wrapCategory("accounts", err)
	})
	g.Go(func() (err error) {
		snap.Transactions, err = src.Transactions(gctx, window)
		return wrapCategory("transactions", err)
	})
	g.Go(func() (err error) {
		snap.Investments, err = src.Investments(gctx)
		return wrapCategory("investments", err)
	})
	g.Go(func() (err error) {
		snap.Liabilities, err = src.Liabilities(gctx)
		return wrapCategory("liabilities", err)
	})

	err := g.Wait()
	elapsed := time.Since(start).Seconds()
	if err != nil {
		a.end(key, StateFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		passDuration.Record(ctx, elapsed, metric.WithAttributes(attribute.String("status", "error")))
		a.logger.WarnContext(ctx, "aggregation pass failed", "key", key, "error", err)
		return nil, err
	}

	normalize(snap)
	snap.Summary = a.engine.Compute(summary.Input{
		Accounts:     snap.Accounts,
		Transactions: snap.Transactions,
		Investments:  snap.Investments,
		Liabilities:  snap.Liabilities,
		Window:       window,
	})

	a.end(key, StateSucceeded)
	passDuration.Record(ctx, elapsed, metric.WithAttributes(attribute.String("status", "success")))
	a.logger.InfoContext(ctx, "aggregation pass complete",
		"key", key,
		"accounts", len(snap.Accounts),
		"transactions", len(snap.Transactions),
		"net_worth", snap.Summary.NetWorth,
	)
	return snap, nil
}

func wrapCategory(category string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to fetch %s: %w", category, err)
}

// normalize replaces missing lists so that snapshots encode as [] not null.
func normalize(s *Snapshot) {
	if s.Accounts == nil {
		s.Accounts = []finance.Account{}
	}
	if s.Transactions == nil {
		s.Transactions = []finance.Transaction{}
	}
	if s.Investments == nil {
		s.Investments = finance.NewInvestmentBundle()
	}
	if s.Liabilities == nil {
		s.Liabilities = finance.NewLiabilityBundle()
	}
}
