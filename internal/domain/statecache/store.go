// Package statecache holds the client's view of the user's financial data and
// mirrors it into a key-value persister so it survives restarts.
package statecache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"wealthdash/internal/domain/finance"
	"wealthdash/internal/domain/summary"
)

// Persisted keys. The names match what earlier client versions wrote.
const (
	KeyAccessToken       = "plaid_access_token"
	KeyConnectedAccounts = "plaid_connected_accounts"
	KeyTransactions      = "plaid_transactions"
	KeyInvestments       = "plaid_investments"
	KeyLiabilities       = "plaid_liabilities"
	KeyFinancialData     = "plaid_financial_data"
	KeyLastUpdated       = "plaid_last_updated"
)

// connectedMarker is stored under KeyAccessToken. The real token never
// leaves the server.
const connectedMarker = "connected"

// Keys lists every persisted key in write order.
var Keys = []string{
	KeyAccessToken,
	KeyConnectedAccounts,
	KeyTransactions,
	KeyInvestments,
	KeyLiabilities,
	KeyFinancialData,
	KeyLastUpdated,
}

// ErrNotFound is returned by a Persister for a key it does not hold.
var ErrNotFound = errors.New("key not found")

// Persister is the durable mirror of the store.
type Persister interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Data is everything the presentation layer reads. Slices are shared between
// copies and must not be modified by readers.
type Data struct {
	Connected    bool                      `json:"connected"`
	Accounts     []finance.Account         `json:"accounts"`
	Transactions []finance.Transaction     `json:"transactions"`
	Investments  *finance.InvestmentBundle `json:"investments"`
	Liabilities  *finance.LiabilityBundle  `json:"liabilities"`
	Summary      *summary.FinancialSummary `json:"summary"`
	LastUpdated  time.Time                 `json:"last_updated"`
}

type Status struct {
	Loading   bool   `json:"loading"`
	LastError string `json:"last_error,omitempty"`
}

// Listener receives the store contents after every change.
type Listener func(Data, Status)

// Store is the single source of client state. The only data write is
// ReplaceAll, which swaps the whole object.
type Store struct {
	persister Persister
	logger    *slog.Logger

	mu     sync.RWMutex
	data   Data
	status Status

	subMu     sync.Mutex
	nextSubID int
	subs      map[int]Listener
}

// NewStore creates an empty store. persister may be nil for a memory-only store.
func NewStore(persister Persister, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		persister: persister,
		logger:    logger,
		subs:      make(map[int]Listener),
	}
}

func (s *Store) Data() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// ReplaceAll swaps in d, notifies subscribers, then writes every key to the
// persister. Persistence failures are logged and do not undo the swap.
func (s *Store) ReplaceAll(ctx context.Context, d Data) {
	s.mu.Lock()
	s.data = d
	s.mu.Unlock()

	s.notify()
	s.persist(ctx, d)
}

// BeginLoading marks a pass as running and clears the previous error.
func (s *Store) BeginLoading() {
	s.setStatus(Status{Loading: true})
}

// EndLoading marks the pass finished. A non-nil err is kept as LastError.
func (s *Store) EndLoading(err error) {
	st := Status{}
	if err != nil {
		st.LastError = err.Error()
	}
	s.setStatus(st)
}

func (s *Store) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
	s.notify()
}

func (s *Store) notify() {
	data, status := s.Data(), s.Status()

	s.subMu.Lock()
	listeners := make([]Listener, 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subMu.Unlock()

	for _, fn := range listeners {
		fn(data, status)
	}
}

// Load restores the store from the persister. Missing or unreadable keys are
// skipped; it never fails.
func (s *Store) Load(ctx context.Context) {
	if s.persister == nil {
		return
	}

	var d Data
	if marker, ok := load[string](ctx, s, KeyAccessToken); ok {
		d.Connected = marker != ""
	}
	if v, ok := load[[]finance.Account](ctx, s, KeyConnectedAccounts); ok {
		d.Accounts = v
	}
	if v, ok := load[[]finance.Transaction](ctx, s, KeyTransactions); ok {
		d.Transactions = v
	}
	if v, ok := load[*finance.InvestmentBundle](ctx, s, KeyInvestments); ok {
		d.Investments = v
	}
	if v, ok := load[*finance.LiabilityBundle](ctx, s, KeyLiabilities); ok {
		d.Liabilities = v
	}
	if v, ok := load[*summary.FinancialSummary](ctx, s, KeyFinancialData); ok {
		d.Summary = v
	}
	if v, ok := load[time.Time](ctx, s, KeyLastUpdated); ok {
		d.LastUpdated = v
	}

	s.mu.Lock()
	s.data = d
	s.mu.Unlock()
	s.notify()
}

// Reset empties the store and removes every persisted key.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	s.data = Data{}
	s.status = Status{}
	s.mu.Unlock()
	s.notify()

	if s.persister == nil {
		return
	}
	for _, key := range Keys {
		if err := s.persister.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "failed to delete cached key", "key", key, "error", err)
		}
	}
}

// load reads and decodes one key. A corrupt value is logged and reported as
// absent so it cannot clobber the rest of the state.
func load[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var v T
	raw, err := s.persister.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to read cached key", "key", key, "error", err)
		}
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.WarnContext(ctx, "skipping corrupt cached key", "key", key, "error", err)
		var zero T
		return zero, false
	}
	return v, true
}

func (s *Store) persist(ctx context.Context, d Data) {
	if s.persister == nil {
		return
	}

	values := map[string]any{
		KeyConnectedAccounts: d.Accounts,
		KeyTransactions:      d.Transactions,
		KeyInvestments:       d.Investments,
		KeyLiabilities:       d.Liabilities,
		KeyFinancialData:     d.Summary,
		KeyLastUpdated:       d.LastUpdated,
	}
	if d.Connected {
		values[KeyAccessToken] = connectedMarker
	} else {
		values[KeyAccessToken] = ""
	}

	for _, key := range Keys {
		raw, err := json.Marshal(values[key])
		if err != nil {
			s.logger.WarnContext(ctx, "failed to encode cache key", "key", key, "error", err)
			continue
		}
		if err := s.persister.Set(ctx, key, raw); err != nil {
			s.logger.WarnContext(ctx, "failed to persist cache key", "key", key, "error", err)
		}
	}
}
