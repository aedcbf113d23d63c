// Package state owns the calculator aggregate and serializes every write to it.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Persister stores a state snapshot after each write.
type Persister interface {
	Save(ctx context.Context, st domain.State) error
}

// Store holds the aggregate. Reads get deep copies; writes replace the whole
// state atomically, so no reader ever sees a partial update. Concurrent writers
// resolve last-write-wins.
type Store struct {
	mu              sync.RWMutex
	state           domain.State
	seq             uint64
	persistMu       sync.Mutex
	savedSeq        uint64
	defaultCurrency string
	persister       Persister
	events          *events.Manager
	seeded          bool
	now             func() time.Time
	log             zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPersister saves every write through p.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithEvents emits a StateChanged event after every write.
func WithEvents(m *events.Manager) Option {
	return func(s *Store) { s.events = m }
}

// WithClock overrides the time source used for default state.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithInitialState starts the store from st instead of the defaults.
func WithInitialState(st domain.State) Option {
	return func(s *Store) {
		s.state = st.Clone()
		s.seeded = true
	}
}

// NewStore creates a store holding the default state for defaultCurrency.
func NewStore(defaultCurrency string, log zerolog.Logger, opts ...Option) *Store {
	if defaultCurrency == "" {
		defaultCurrency = domain.DefaultCurrency
	}
	s := &Store{
		defaultCurrency: defaultCurrency,
		now:             time.Now,
		log:             log.With().Str("service", "state_store").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.seeded {
		s.state = s.defaults()
	}
	return s
}

// NewInvestmentID returns a fresh, time-ordered id for an investment row.
func NewInvestmentID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *Store) defaults() domain.State {
	return domain.NewDefaultState(s.defaultCurrency, s.now().UTC(), NewInvestmentID)
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Update applies fn to a copy of the latest state and swaps it in. If fn
// returns an error the state is left untouched and the error is returned.
// fn must not call back into the store.
func (s *Store) Update(ctx context.Context, reason string, fn func(st *domain.State) error) (domain.State, error) {
	s.mu.Lock()
	next := s.state.Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return s.Snapshot(), err
	}
	s.state = next
	s.seq++
	seq := s.seq
	out := next.Clone()
	s.mu.Unlock()

	s.afterWrite(ctx, reason, seq, out)
	return out, nil
}

// Replace swaps in st wholesale.
func (s *Store) Replace(ctx context.Context, reason string, st domain.State) domain.State {
	s.mu.Lock()
	s.state = st.Clone()
	s.seq++
	seq := s.seq
	out := s.state.Clone()
	s.mu.Unlock()

	s.afterWrite(ctx, reason, seq, out)
	return out
}

// Reset replaces the aggregate with fresh defaults.
func (s *Store) Reset(ctx context.Context) domain.State {
	st := s.Replace(ctx, "reset", s.defaults())
	s.log.Info().Msg("State reset to defaults")
	return st
}

func (s *Store) afterWrite(ctx context.Context, reason string, seq uint64, st domain.State) {
	s.persist(ctx, reason, seq, st)

	s.log.Debug().
		Str("reason", reason).
		Int("holdings", len(st.StockValues.ActiveStocks)).
		Float64("market_value", st.StockValues.MarketValue).
		Msg("State updated")

	s.events.Emit("state", &events.StateChangedData{
		Reason:         reason,
		MarketValue:    st.StockValues.MarketValue,
		ZakatableValue: st.StockValues.ZakatableValue,
		Holdings:       len(st.StockValues.ActiveStocks),
	})
}

// persist saves writes in the order they were applied. A write that reaches
// the persister after a newer one has been saved is skipped.
func (s *Store) persist(ctx context.Context, reason string, seq uint64, st domain.State) {
	if s.persister == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if seq <= s.savedSeq {
		s.log.Debug().Str("reason", reason).Uint64("seq", seq).Msg("Skipping save of superseded state")
		return
	}
	s.savedSeq = seq
	if err := s.persister.Save(ctx, st); err != nil {
		s.log.Error().Err(err).Str("reason", reason).Msg("Failed to persist state")
	}
}
