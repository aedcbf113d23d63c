// Package domain provides core domain models and types.
package domain

import "time"

// ZakatRate is the levy applied to zakatable wealth (2.5%).
const ZakatRate = 0.025

// DefaultCurrency is used whenever neither the caller nor the aggregate names a currency.
const DefaultCurrency = "USD"

// Nisab weights in grams.
const (
	NisabGoldGrams   = 85.0
	NisabSilverGrams = 595.0
)

// ActiveStockHolding is one actively traded position, keyed by its uppercase symbol.
type ActiveStockHolding struct {
	LastUpdated    time.Time `json:"lastUpdated"`
	Symbol         string    `json:"symbol"`
	Currency       string    `json:"currency,omitempty"`
	SourceCurrency string    `json:"sourceCurrency,omitempty"`
	Shares         float64   `json:"shares"`
	CurrentPrice   float64   `json:"currentPrice"`
	MarketValue    float64   `json:"marketValue"`
	ZakatDue       float64   `json:"zakatDue"`
}

// StockValues is the stock slice of the calculator state.
//
// MarketValue and ZakatableValue are legacy projections. They are only written
// together with the rest of the aggregate and always derived from the asset
// calculator, never set on their own.
type StockValues struct {
	ActiveStocks          []ActiveStockHolding    `json:"activeStocks"`
	PassiveInvestments    *PassiveInvestmentState `json:"passiveInvestments,omitempty"`
	MarketValue           float64                 `json:"market_value"`
	ZakatableValue        float64                 `json:"zakatable_value"`
	TotalDividendEarnings float64                 `json:"total_dividend_earnings"`
}

// MetalPrices holds per-gram metal prices used for the nisab threshold.
type MetalPrices struct {
	Gold     float64 `json:"gold"`
	Silver   float64 `json:"silver"`
	Currency string  `json:"currency,omitempty"`
}

// State is the aggregate owned by the state store.
type State struct {
	StockValues StockValues `json:"stockValues"`
	MetalPrices MetalPrices `json:"metalPrices"`
	Currency    string      `json:"currency"`
	HawlMet     bool        `json:"stockHawlMet"`
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (s State) Clone() State {
	out := s
	if s.StockValues.ActiveStocks != nil {
		out.StockValues.ActiveStocks = make([]ActiveStockHolding, len(s.StockValues.ActiveStocks))
		copy(out.StockValues.ActiveStocks, s.StockValues.ActiveStocks)
	}
	if s.StockValues.PassiveInvestments != nil {
		p := s.StockValues.PassiveInvestments.Clone()
		out.StockValues.PassiveInvestments = &p
	}
	return out
}

// EffectiveCurrency returns the aggregate currency or the default.
func (s State) EffectiveCurrency() string {
	if s.Currency != "" {
		return s.Currency
	}
	return DefaultCurrency
}

// NewDefaultState builds the state a fresh calculator starts from.
func NewDefaultState(currency string, now time.Time, newID func() string) State {
	if currency == "" {
		currency = DefaultCurrency
	}
	passive := NewDefaultPassiveState(currency, now, newID)
	return State{
		StockValues: StockValues{
			ActiveStocks:       []ActiveStockHolding{},
			PassiveInvestments: &passive,
		},
		Currency: currency,
	}
}

// Price is a single quote returned by a price source.
type Price struct {
	LastUpdated time.Time `json:"lastUpdated"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency,omitempty"`
}

// BatchPrice is one entry in a batch quote response.
type BatchPrice struct {
	LastUpdated       time.Time `json:"lastUpdated"`
	Symbol            string    `json:"symbol"`
	Currency          string    `json:"currency"`
	SourceCurrency    string    `json:"sourceCurrency,omitempty"`
	Price             float64   `json:"price"`
	ConversionApplied bool      `json:"conversionApplied"`
}
