package calculations

import (
	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
)

// Valuation returns shares x price and the zakat due on it, both rounded to
// currency precision. The due amount is computed from the rounded market value.
func Valuation(shares, price float64, currency string) (marketValue, zakatDue float64) {
	if !IsFinite(shares) || !IsFinite(price) {
		return 0, 0
	}
	mv := decimal.NewFromFloat(shares).Mul(decimal.NewFromFloat(price))
	marketValue = Round(mv.InexactFloat64(), currency)
	zakatDue = Round(marketValue*domain.ZakatRate, currency)
	return marketValue, zakatDue
}

// Revalue sets price, market value and zakat due on h in one step.
func Revalue(h *domain.ActiveStockHolding, price float64) {
	h.CurrentPrice = price
	h.MarketValue, h.ZakatDue = Valuation(h.Shares, price, h.Currency)
}

// ActiveMarketValue sums the market value of all active holdings, skipping
// non-finite entries.
func ActiveMarketValue(holdings []domain.ActiveStockHolding) float64 {
	if len(holdings) == 0 {
		return 0
	}
	terms := make([]float64, len(holdings))
	for i, h := range holdings {
		terms[i] = OrZero(h.MarketValue)
	}
	return floats.Sum(terms)
}

// PassiveMarketValue is the passive block's market value, or 0 when absent or
// negative.
func PassiveMarketValue(p *domain.PassiveInvestmentState) float64 {
	if p == nil {
		return 0
	}
	return NonNegative(p.MarketValue)
}

// PassiveZakatableValue is the passive block's zakatable value, or 0 when
// absent or negative.
func PassiveZakatableValue(p *domain.PassiveInvestmentState) float64 {
	if p == nil {
		return 0
	}
	return NonNegative(p.ZakatableValue)
}

// Total sums active holdings, passive investments and dividend earnings.
func Total(values domain.StockValues, currency string) float64 {
	return Round(floats.Sum([]float64{
		ActiveMarketValue(values.ActiveStocks),
		PassiveMarketValue(values.PassiveInvestments),
		OrZero(values.TotalDividendEarnings),
	}), currency)
}

// Zakatable is 0 until the Hawl is met; afterwards it sums the full active
// market value, the passive zakatable value and dividend earnings.
func Zakatable(values domain.StockValues, hawlMet bool, currency string) float64 {
	if !hawlMet {
		return 0
	}
	return Round(floats.Sum([]float64{
		ActiveMarketValue(values.ActiveStocks),
		PassiveZakatableValue(values.PassiveInvestments),
		OrZero(values.TotalDividendEarnings),
	}), currency)
}
