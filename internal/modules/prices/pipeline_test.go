package prices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/events"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/assets"
	"github.com/MrAsimZahid/zakat-calculator/internal/state"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockPriceSource is a mock implementation of domain.PriceSource
type mockPriceSource struct {
	mock.Mock
}

func (m *mockPriceSource) GetPrice(ctx context.Context, symbol, currency string) (*domain.Price, error) {
	args := m.Called(ctx, symbol, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Price), args.Error(1)
}

func (m *mockPriceSource) GetBatchPrices(ctx context.Context, symbols []string, currency string) ([]domain.BatchPrice, error) {
	args := m.Called(ctx, symbols, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BatchPrice), args.Error(1)
}

// mockConverter is a mock implementation of domain.CurrencyConverter
type mockConverter struct {
	mock.Mock
}

func (m *mockConverter) ConvertAmount(ctx context.Context, amount float64, from, to string) (float64, error) {
	args := m.Called(ctx, amount, from, to)
	return args.Get(0).(float64), args.Error(1)
}

var (
	earlier = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	quoted  = time.Date(2026, 5, 5, 15, 0, 0, 0, time.UTC)
)

func seededState(holdings ...domain.ActiveStockHolding) domain.State {
	st := domain.NewDefaultState("USD", earlier, func() string { return "id" })
	st.StockValues.ActiveStocks = holdings
	return st
}

func holding(symbol string, shares, price float64, currency string) domain.ActiveStockHolding {
	return domain.ActiveStockHolding{
		Symbol:       symbol,
		Shares:       shares,
		CurrentPrice: price,
		MarketValue:  shares * price,
		ZakatDue:     shares * price * domain.ZakatRate,
		Currency:     currency,
		LastUpdated:  earlier,
	}
}

func newTestPipeline(src domain.PriceSource, conv domain.CurrencyConverter, st domain.State) (*Pipeline, *state.Store) {
	store := state.NewStore("USD", zerolog.Nop(), state.WithInitialState(st))
	return NewPipeline(store, src, conv, assets.NewRegistry(), events.NewManager(nil, zerolog.Nop()), zerolog.Nop()), store
}

func TestRefresh_NoHoldingsIsNoop(t *testing.T) {
	src := new(mockPriceSource)
	p, _ := newTestPipeline(src, nil, seededState())

	result, err := p.Refresh(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "USD", result.Currency)
	src.AssertNotCalled(t, "GetBatchPrices", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_MissingSymbolUnchanged(t *testing.T) {
	src := new(mockPriceSource)
	src.On("GetBatchPrices", mock.Anything, []string{"AAPL", "TSLA"}, "USD").Return([]domain.BatchPrice{
		{Symbol: "aapl", Price: 200, Currency: "USD", LastUpdated: quoted},
	}, nil)

	tsla := holding("TSLA", 2, 250, "USD")
	p, store := newTestPipeline(src, nil, seededState(holding("AAPL", 10, 150, "USD"), tsla))

	result, err := p.Refresh(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, []string{"TSLA"}, result.Missing)

	st := store.Snapshot()
	assert.Equal(t, 200.0, st.StockValues.ActiveStocks[0].CurrentPrice)
	assert.Equal(t, 2000.0, st.StockValues.ActiveStocks[0].MarketValue)
	assert.Equal(t, 50.0, st.StockValues.ActiveStocks[0].ZakatDue)
	assert.Equal(t, quoted, st.StockValues.ActiveStocks[0].LastUpdated)
	assert.Equal(t, tsla, st.StockValues.ActiveStocks[1])
	assert.Equal(t, 2500.0, st.StockValues.MarketValue)
}

func TestRefresh_SourceAlreadyConverted(t *testing.T) {
	src := new(mockPriceSource)
	src.On("GetBatchPrices", mock.Anything, []string{"SAP"}, "USD").Return([]domain.BatchPrice{
		{Symbol: "SAP", Price: 110, Currency: "USD", SourceCurrency: "EUR", ConversionApplied: true, LastUpdated: quoted},
	}, nil)
	conv := new(mockConverter)

	p, store := newTestPipeline(src, conv, seededState(holding("SAP", 1, 100, "EUR")))

	result, err := p.Refresh(context.Background(), "usd", "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Converted)

	h := store.Snapshot().StockValues.ActiveStocks[0]
	assert.Equal(t, "USD", h.Currency)
	assert.Equal(t, "EUR", h.SourceCurrency)
	assert.Equal(t, 110.0, h.CurrentPrice)
	conv.AssertNotCalled(t, "ConvertAmount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_ConvertsForeignQuote(t *testing.T) {
	src := new(mockPriceSource)
	src.On("GetBatchPrices", mock.Anything, []string{"SAP"}, "USD").Return([]domain.BatchPrice{
		{Symbol: "SAP", Price: 100, Currency: "EUR", LastUpdated: quoted},
	}, nil)
	conv := new(mockConverter)
	conv.On("ConvertAmount", mock.Anything, 100.0, "EUR", "USD").Return(108.5, nil)

	p, store := newTestPipeline(src, conv, seededState(holding("SAP", 4, 90, "EUR")))

	result, err := p.Refresh(context.Background(), "USD", "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Converted)
	assert.Equal(t, 0, result.ConversionFailures)

	st := store.Snapshot()
	h := st.StockValues.ActiveStocks[0]
	assert.Equal(t, "USD", h.Currency)
	assert.Equal(t, "EUR", h.SourceCurrency)
	assert.Equal(t, 108.5, h.CurrentPrice)
	assert.Equal(t, 434.0, h.MarketValue)
	assert.Equal(t, 10.85, h.ZakatDue)
	assert.Equal(t, "USD", st.Currency)
	conv.AssertExpectations(t)
}

func TestRefresh_ConvertsMetalPrices(t *testing.T) {
	src := new(mockPriceSource)
	src.On("GetBatchPrices", mock.Anything, []string{"SAP"}, "EUR").Return([]domain.BatchPrice{
		{Symbol: "SAP", Price: 100, Currency: "EUR", LastUpdated: quoted},
	}, nil)
	conv := new(mockConverter)
	conv.On("ConvertAmount", mock.Anything, 60.0, "USD", "EUR").Return(55.0, nil)
	conv.On("ConvertAmount", mock.Anything, 0.8, "USD", "EUR").Return(0.74, nil)

	seed := seededState(holding("SAP", 1, 100, "EUR"))
	seed.MetalPrices = domain.MetalPrices{Gold: 60, Silver: 0.8, Currency: "USD"}
	p, store := newTestPipeline(src, conv, seed)

	_, err := p.Refresh(context.Background(), "EUR", "")
	require.NoError(t, err)

	st := store.Snapshot()
	assert.Equal(t, "EUR", st.Currency)
	assert.Equal(t, domain.MetalPrices{Gold: 55, Silver: 0.74, Currency: "EUR"}, st.MetalPrices)
	conv.AssertExpectations(t)
}

func TestRefresh_MetalConversionFailureKeepsPrices(t *testing.T) {
	src := new(mockPriceSource)
	src.On("GetBatchPrices", mock.Anything, []string{"SAP"}, "EUR").Return([]domain.BatchPrice{
		{Symbol: "SAP", Price: 100, Currency: "EUR", LastUpdated: quoted},
	}, nil)
	conv := new(mockConverter)
	conv.On("ConvertAmount", mock.Anything, 60.0, "USD", "EUR").Return(0.0, errors.New("rate unavailable"))

	seed := seededState(holding("SAP", 1, 100, "EUR"))
	seed.MetalPrices = domain.MetalPrices{Gold: 60, Currency: "USD"}
	p, store := newTestPipeline(src, conv, seed)

	result, err := p.Refresh(context.Background(), "EUR", "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, seed.MetalPrices, store.Snapshot().MetalPrices)
}

func TestRefresh_ConversionFallbacks(t *testing.T) {
	tests := []struct {
		name      string
		converted float64
		err       error
	}{
		{"converter error", 0, errors.New("rate unavailable")},
		{"unchanged amount", 100, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := new(mockPriceSource)
			src.On("GetBatchPrices", mock.Anything, []string{"SAP"}, "USD").Return([]domain.BatchPrice{
				{Symbol: "SAP", Price: 100, Currency: "EUR", LastUpdated: quoted},
			}, nil)
			conv := new(mockConverter)
			conv.On("ConvertAmount", mock.Anything, 100.0, "EUR", "USD").Return(tt.converted, tt.err)

			p, store := newTestPipeline(src, conv, seededState(holding("SAP", 2, 90, "EUR")))

			result, err := p.Refresh(context.Background(), "USD", "")
			require.NoError(t, err)
			assert.Equal(t, 1, result.ConversionFailures)
			assert.Equal(t, 1, result.Updated)

			h := store.Snapshot().StockValues.ActiveStocks[0]
			assert.Equal(t, "EUR", h.Currency)
			assert.Empty(t, h.SourceCurrency)
			assert.Equal(t, 100.0, h.CurrentPrice)
			assert.Equal(t, 200.0, h.MarketValue)
		})
	}
}

func TestRefresh_NoConverterKeepsSourceCurrency(t *testing.T) {
	src := new(mockPriceSource)
	src.On("GetBatchPrices", mock.Anything, []string{"SAP"}, "USD").Return([]domain.BatchPrice{
		{Symbol: "SAP", Price: 100, Currency: "EUR", LastUpdated: quoted},
	}, nil)

	p, store := newTestPipeline(src, nil, seededState(holding("SAP", 1, 90, "EUR")))

	result, err := p.Refresh(context.Background(), "USD", "")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ConversionFailures)

	h := store.Snapshot().StockValues.ActiveStocks[0]
	assert.Equal(t, "EUR", h.Currency)
	assert.Equal(t, 100.0, h.CurrentPrice)
}

func TestRefresh_FromCurrencyForUnlabelledQuotes(t *testing.T) {
	src := new(mockPriceSource)
	src.On("GetBatchPrices", mock.Anything, []string{"BP"}, "USD").Return([]domain.BatchPrice{
		{Symbol: "BP", Price: 5},
	}, nil)
	conv := new(mockConverter)
	conv.On("ConvertAmount", mock.Anything, 5.0, "GBP", "USD").Return(6.25, nil)

	p, store := newTestPipeline(src, conv, seededState(holding("BP", 100, 4, "GBP")))
	p.now = func() time.Time { return quoted }

	_, err := p.Refresh(context.Background(), "USD", "gbp")
	require.NoError(t, err)

	h := store.Snapshot().StockValues.ActiveStocks[0]
	assert.Equal(t, 6.25, h.CurrentPrice)
	assert.Equal(t, "GBP", h.SourceCurrency)
	assert.Equal(t, quoted, h.LastUpdated)
}

func TestRefresh_FetchErrorLeavesStateUntouched(t *testing.T) {
	src := new(mockPriceSource)
	src.On("GetBatchPrices", mock.Anything, []string{"AAPL"}, "EUR").Return(nil, errors.New("timeout"))

	before := seededState(holding("AAPL", 10, 150, "USD"))
	p, store := newTestPipeline(src, nil, before)

	_, err := p.Refresh(context.Background(), "EUR", "")
	require.Error(t, err)
	assert.True(t, domain.IsFetchError(err))

	after := store.Snapshot()
	assert.Equal(t, before.StockValues.ActiveStocks, after.StockValues.ActiveStocks)
	assert.Equal(t, "USD", after.Currency)
}

func TestRefresh_MergesWithConcurrentWrite(t *testing.T) {
	src := new(mockPriceSource)
	p, store := newTestPipeline(src, nil, seededState(holding("AAPL", 10, 150, "USD")))

	// a holding added while the batch call is in flight must survive the write
	src.On("GetBatchPrices", mock.Anything, []string{"AAPL"}, "USD").
		Run(func(mock.Arguments) {
			_, err := store.Update(context.Background(), "test", func(st *domain.State) error {
				st.StockValues.ActiveStocks = append(st.StockValues.ActiveStocks, holding("MSFT", 1, 300, "USD"))
				return nil
			})
			require.NoError(t, err)
		}).
		Return([]domain.BatchPrice{{Symbol: "AAPL", Price: 160, Currency: "USD", LastUpdated: quoted}}, nil)

	_, err := p.Refresh(context.Background(), "", "")
	require.NoError(t, err)

	st := store.Snapshot()
	require.Len(t, st.StockValues.ActiveStocks, 2)
	assert.Equal(t, 1600.0, st.StockValues.ActiveStocks[0].MarketValue)
	assert.Equal(t, "MSFT", st.StockValues.ActiveStocks[1].Symbol)
	assert.Equal(t, 1900.0, st.StockValues.MarketValue)
}

func TestRefreshJob_Run(t *testing.T) {
	src := new(mockPriceSource)
	src.On("GetBatchPrices", mock.Anything, []string{"AAPL"}, "USD").Return(nil, errors.New("down"))
	p, _ := newTestPipeline(src, nil, seededState(holding("AAPL", 1, 1, "USD")))

	job := NewRefreshJob(p, 0, zerolog.Nop())
	assert.Equal(t, "price_refresh", job.Name())
	assert.Error(t, job.Run())
}
