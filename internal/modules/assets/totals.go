package assets

import (
	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/calculations"
)

// SyncTotals rewrites the legacy market_value/zakatable_value projection of st
// from the registered stocks calculator. Without a registry entry it falls back
// to the shared valuation math so the projection never goes stale.
// It reports whether the registry calculator was used.
func SyncTotals(st *domain.State, reg domain.AssetCalculatorRegistry) bool {
	// totals are rounded in the state currency
	prices := st.MetalPrices
	prices.Currency = st.EffectiveCurrency()

	if reg != nil {
		if calc, ok := reg.Lookup(domain.AssetKindStocks); ok && calc != nil {
			st.StockValues.MarketValue = calculations.OrZero(calc.CalculateTotal(st.StockValues, prices))
			st.StockValues.ZakatableValue = calculations.OrZero(calc.CalculateZakatable(st.StockValues, prices, st.HawlMet))
			return true
		}
	}

	st.StockValues.MarketValue = calculations.Total(st.StockValues, prices.Currency)
	st.StockValues.ZakatableValue = calculations.Zakatable(st.StockValues, st.HawlMet, prices.Currency)
	return false
}
