package domain

import "context"

// PriceSource fetches stock quotes.
type PriceSource interface {
	// GetPrice returns the latest quote for symbol. An empty currency lets the source pick.
	GetPrice(ctx context.Context, symbol, currency string) (*Price, error)

	// GetBatchPrices quotes all symbols in one call. Symbols the source could not
	// price are simply absent from the result.
	GetBatchPrices(ctx context.Context, symbols []string, currency string) ([]BatchPrice, error)
}

// QuoteEvicter is implemented by price sources that cache quotes.
type QuoteEvicter interface {
	Evict(symbol string) error
}

// CurrencyConverter converts an amount between currencies.
type CurrencyConverter interface {
	ConvertAmount(ctx context.Context, amount float64, fromCurrency, toCurrency string) (float64, error)
}

// AssetKind names an entry in the asset calculator registry.
type AssetKind string

// AssetKindStocks is the stocks asset type.
const AssetKindStocks AssetKind = "stocks"

// AssetCalculator computes totals for one asset type.
type AssetCalculator interface {
	CalculateTotal(values StockValues, prices MetalPrices) float64
	CalculateZakatable(values StockValues, prices MetalPrices, hawlMet bool) float64
}

// AssetCalculatorRegistry resolves calculators by asset kind.
type AssetCalculatorRegistry interface {
	Lookup(kind AssetKind) (AssetCalculator, bool)
}
