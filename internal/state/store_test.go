package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPersister struct {
	mu     sync.Mutex
	saved  []domain.State
	failed bool
}

func (p *recordingPersister) Save(_ context.Context, st domain.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failed {
		return errors.New("disk full")
	}
	p.saved = append(p.saved, st)
	return nil
}

func fixedClock() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestNewStore_DefaultState(t *testing.T) {
	s := NewStore("", zerolog.Nop(), WithClock(fixedClock))
	st := s.Snapshot()

	assert.Equal(t, "USD", st.Currency)
	assert.False(t, st.HawlMet)
	assert.Empty(t, st.StockValues.ActiveStocks)
	assert.NotNil(t, st.StockValues.ActiveStocks)

	p := st.StockValues.PassiveInvestments
	require.NotNil(t, p)
	assert.Equal(t, domain.PassiveSchemaVersion, p.Version)
	assert.Equal(t, domain.MethodQuick, p.Method)
	require.Len(t, p.Investments, 1)
	assert.NotEmpty(t, p.Investments[0].ID)
	assert.Equal(t, "", p.Investments[0].Name)
	assert.False(t, p.HawlStatus.IsComplete)
	assert.Equal(t, fixedClock(), p.HawlStatus.StartDate)
	assert.Equal(t, "30% Rule", p.DisplayProperties.Method)
	assert.Equal(t, "Total Investments", p.DisplayProperties.TotalLabel)
	assert.Equal(t, "USD", p.DisplayProperties.Currency)
}

func TestStore_SnapshotIsDeepCopy(t *testing.T) {
	s := NewStore("EUR", zerolog.Nop())
	_, err := s.Update(context.Background(), "seed", func(st *domain.State) error {
		st.StockValues.ActiveStocks = append(st.StockValues.ActiveStocks, domain.ActiveStockHolding{Symbol: "AAPL", Shares: 1})
		return nil
	})
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.StockValues.ActiveStocks[0].Shares = 99
	snap.StockValues.PassiveInvestments.Investments[0].Name = "mutated"

	fresh := s.Snapshot()
	assert.Equal(t, 1.0, fresh.StockValues.ActiveStocks[0].Shares)
	assert.Equal(t, "", fresh.StockValues.PassiveInvestments.Investments[0].Name)
}

func TestStore_UpdateErrorLeavesStateUntouched(t *testing.T) {
	persister := &recordingPersister{}
	s := NewStore("USD", zerolog.Nop(), WithPersister(persister))

	_, err := s.Update(context.Background(), "bad", func(st *domain.State) error {
		st.Currency = "GBP"
		return errors.New("rejected")
	})

	require.Error(t, err)
	assert.Equal(t, "USD", s.Snapshot().Currency)
	assert.Empty(t, persister.saved)
}

func TestStore_UpdatePersistsAndEmits(t *testing.T) {
	persister := &recordingPersister{}
	bus := events.NewBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	s := NewStore("USD", zerolog.Nop(),
		WithPersister(persister),
		WithEvents(events.NewManager(bus, zerolog.Nop())),
	)

	st, err := s.Update(context.Background(), "currency", func(st *domain.State) error {
		st.Currency = "EUR"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", st.Currency)

	require.Len(t, persister.saved, 1)
	assert.Equal(t, "EUR", persister.saved[0].Currency)

	e := <-ch
	assert.Equal(t, events.StateChanged, e.Type)
	assert.Equal(t, "currency", e.Data.(*events.StateChangedData).Reason)
}

func TestStore_PersistFailureDoesNotRollBack(t *testing.T) {
	s := NewStore("USD", zerolog.Nop(), WithPersister(&recordingPersister{failed: true}))

	_, err := s.Update(context.Background(), "x", func(st *domain.State) error {
		st.HawlMet = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, s.Snapshot().HawlMet)
}

func TestStore_ResetReplacesWholesale(t *testing.T) {
	s := NewStore("USD", zerolog.Nop())
	_, err := s.Update(context.Background(), "seed", func(st *domain.State) error {
		st.HawlMet = true
		st.StockValues.TotalDividendEarnings = 10
		st.StockValues.ActiveStocks = []domain.ActiveStockHolding{{Symbol: "AAPL"}}
		return nil
	})
	require.NoError(t, err)

	st := s.Reset(context.Background())
	assert.False(t, st.HawlMet)
	assert.Zero(t, st.StockValues.TotalDividendEarnings)
	assert.Empty(t, st.StockValues.ActiveStocks)
}

func TestStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	s := NewStore("USD", zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Update(context.Background(), "inc", func(st *domain.State) error {
				st.StockValues.TotalDividendEarnings++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50.0, s.Snapshot().StockValues.TotalDividendEarnings)
}

// blockingPersister holds its first Save until release is closed.
type blockingPersister struct {
	recordingPersister
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPersister) Save(ctx context.Context, st domain.State) error {
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.entered)
		<-p.release
	}
	return p.recordingPersister.Save(ctx, st)
}

func TestStore_SavesInApplyOrder(t *testing.T) {
	persister := &blockingPersister{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewStore("USD", zerolog.Nop(), WithPersister(persister))

	setDividends := func(v float64) {
		_, err := s.Update(context.Background(), "dividends", func(st *domain.State) error {
			st.StockValues.TotalDividendEarnings = v
			return nil
		})
		assert.NoError(t, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		setDividends(1)
	}()
	<-persister.entered

	go func() {
		defer wg.Done()
		setDividends(2)
	}()
	require.Eventually(t, func() bool {
		return s.Snapshot().StockValues.TotalDividendEarnings == 2
	}, time.Second, 5*time.Millisecond)

	close(persister.release)
	wg.Wait()

	persister.mu.Lock()
	defer persister.mu.Unlock()
	require.NotEmpty(t, persister.saved)
	last := persister.saved[len(persister.saved)-1]
	assert.Equal(t, 2.0, last.StockValues.TotalDividendEarnings)
	assert.Equal(t, s.Snapshot().StockValues.TotalDividendEarnings, last.StockValues.TotalDividendEarnings)
}

func TestWithInitialState(t *testing.T) {
	initial := domain.State{Currency: "GBP", HawlMet: true}
	s := NewStore("USD", zerolog.Nop(), WithInitialState(initial))

	assert.Equal(t, "GBP", s.Snapshot().Currency)
	assert.True(t, s.Snapshot().HawlMet)
}
