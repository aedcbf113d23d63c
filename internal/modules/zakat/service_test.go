package zakat

import (
	"context"
	"math"
	"testing"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/events"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/assets"
	"github.com/MrAsimZahid/zakat-calculator/internal/state"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(st domain.State) (*Service, *state.Store, *events.Bus) {
	bus := events.NewBus()
	em := events.NewManager(bus, zerolog.Nop())
	store := state.NewStore("USD", zerolog.Nop(), state.WithInitialState(st), state.WithEvents(em))
	return NewService(store, assets.NewRegistry(), em, zerolog.Nop()), store, bus
}

func TestService_SetHawlMet(t *testing.T) {
	s, store, bus := newTestService(stateWith(false, 0, domain.ActiveStockHolding{Symbol: "AAPL", MarketValue: 1500}))
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()
	ctx := context.Background()

	s.SetHawlMet(ctx, true)
	st := store.Snapshot()
	assert.True(t, st.HawlMet)
	assert.Equal(t, 1500.0, st.StockValues.ZakatableValue)

	var types []events.EventType
	for len(ch) > 0 {
		types = append(types, (<-ch).Type)
	}
	assert.Contains(t, types, events.HawlStatusChanged)

	// same value again does not announce a change
	s.SetHawlMet(ctx, true)
	for len(ch) > 0 {
		assert.NotEqual(t, events.HawlStatusChanged, (<-ch).Type)
	}
}

func TestService_SetDividendEarnings(t *testing.T) {
	s, store, _ := newTestService(stateWith(true, 0))
	ctx := context.Background()

	require.NoError(t, s.SetDividendEarnings(ctx, 120.456))
	st := store.Snapshot()
	assert.Equal(t, 120.46, st.StockValues.TotalDividendEarnings)
	assert.Equal(t, 120.46, st.StockValues.MarketValue)

	for _, bad := range []float64{-1, math.NaN(), math.Inf(1)} {
		err := s.SetDividendEarnings(ctx, bad)
		assert.True(t, domain.IsValidationError(err))
	}
	assert.Equal(t, 120.46, store.Snapshot().StockValues.TotalDividendEarnings)
}

func TestService_SetMetalPrices(t *testing.T) {
	s, store, _ := newTestService(stateWith(false, 0))
	ctx := context.Background()

	require.NoError(t, s.SetMetalPrices(ctx, 70, 0.9, ""))
	assert.Equal(t, domain.MetalPrices{Gold: 70, Silver: 0.9, Currency: "USD"}, store.Snapshot().MetalPrices)
	assert.Equal(t, 535.5, s.Aggregator().NisabThreshold())

	assert.Error(t, s.SetMetalPrices(ctx, -1, 1, ""))
	assert.Error(t, s.SetMetalPrices(ctx, 1, math.NaN(), ""))
}

func TestService_Summary(t *testing.T) {
	st := stateWith(true, 0, domain.ActiveStockHolding{Symbol: "AAPL", MarketValue: 4000})
	st.MetalPrices = domain.MetalPrices{Gold: 100, Silver: 1}
	s, _, _ := newTestService(st)

	sum := s.Summary()
	assert.Equal(t, "USD", sum.Currency)
	assert.Equal(t, 4000.0, sum.Total)
	assert.Equal(t, 4000.0, sum.Zakatable)
	assert.Equal(t, 100.0, sum.ZakatDue)
	assert.Equal(t, 595.0, sum.NisabThreshold)
	assert.True(t, sum.MeetsNisab)
	assert.True(t, sum.HawlMet)
	assert.Contains(t, sum.Breakdown, CategoryActiveTrading)
}

func TestService_Reset(t *testing.T) {
	s, store, _ := newTestService(stateWith(true, 10, domain.ActiveStockHolding{Symbol: "AAPL", MarketValue: 1}))

	st := s.Reset(context.Background())
	assert.Empty(t, st.StockValues.ActiveStocks)
	assert.False(t, st.HawlMet)
	assert.Equal(t, st, store.Snapshot())
}
