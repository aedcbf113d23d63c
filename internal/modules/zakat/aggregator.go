// Package zakat computes totals, the per-category breakdown and the nisab
// check from the calculator state.
package zakat

import (
	"math"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/calculations"
)

// Breakdown category keys.
const (
	CategoryActiveTrading      = "active_trading"
	CategoryPassiveInvestments = "passive_investments"
	CategoryDividends          = "dividends"
	CategoryStocks             = "stocks"
)

// BreakdownItem is one category of the stock breakdown.
type BreakdownItem struct {
	Label       string  `json:"label"`
	Tooltip     string  `json:"tooltip"`
	Value       float64 `json:"value"`
	Zakatable   float64 `json:"zakatable"`
	ZakatDue    float64 `json:"zakatDue"`
	Percentage  float64 `json:"percentage"`
	IsZakatable bool    `json:"isZakatable"`
}

// Breakdown maps category keys to their items. It is never empty.
type Breakdown map[string]BreakdownItem

// Aggregator is a read-only view over one state snapshot.
type Aggregator struct {
	st       domain.State
	currency string
}

// NewAggregator creates a view over st.
func NewAggregator(st domain.State) *Aggregator {
	return &Aggregator{st: st, currency: st.EffectiveCurrency()}
}

// TotalStocks sums active holdings, passive market value and dividend earnings.
func (a *Aggregator) TotalStocks() float64 {
	return calculations.Total(a.st.StockValues, a.currency)
}

// TotalZakatableStocks is 0 until the Hawl is met. Afterwards active holdings
// and dividends count in full and passive investments by their zakatable value.
func (a *Aggregator) TotalZakatableStocks() float64 {
	return calculations.Zakatable(a.st.StockValues, a.st.HawlMet, a.currency)
}

// ZakatDue is the levy on the zakatable total.
func (a *Aggregator) ZakatDue() float64 {
	return calculations.Round(a.TotalZakatableStocks()*domain.ZakatRate, a.currency)
}

// Breakdown returns the per-category split of the stock total.
func (a *Aggregator) Breakdown() Breakdown {
	sv := a.st.StockValues
	hawl := a.st.HawlMet
	total := a.TotalStocks()
	out := make(Breakdown)

	if len(sv.ActiveStocks) > 0 {
		value := calculations.Round(calculations.ActiveMarketValue(sv.ActiveStocks), a.currency)
		out[CategoryActiveTrading] = a.item(
			"Active Trading",
			"Actively traded shares are zakatable at full market value.",
			value, value, hawl, total,
		)
	}

	if p := sv.PassiveInvestments; p != nil {
		value := calculations.Round(calculations.PassiveMarketValue(p), a.currency)
		zakatable := calculations.Round(calculations.PassiveZakatableValue(p), a.currency)
		out[CategoryPassiveInvestments] = a.item(
			"Passive Investments ("+p.Method.Label()+")",
			passiveTooltip(p.Method),
			value, zakatable, hawl, total,
		)
	}

	if div := calculations.OrZero(sv.TotalDividendEarnings); div > 0 {
		value := calculations.Round(div, a.currency)
		out[CategoryDividends] = a.item(
			"Dividend Earnings",
			"Dividends received are zakatable in full.",
			value, value, hawl, total,
		)
	}

	if len(out) == 0 {
		out[CategoryStocks] = BreakdownItem{
			Label:   "Stocks",
			Tooltip: "No stock holdings recorded.",
		}
	}
	return out
}

// NisabThreshold is the lower of the gold and silver nisab valuations. A metal
// without a known price is ignored; with neither known the threshold is 0.
func (a *Aggregator) NisabThreshold() float64 {
	return NisabThreshold(a.st.MetalPrices, a.currency)
}

// MeetsNisabThreshold reports whether the stock total reaches the nisab.
func (a *Aggregator) MeetsNisabThreshold() bool {
	return a.TotalStocks() >= a.NisabThreshold()
}

// NisabThreshold computes the nisab from per-gram metal prices.
func NisabThreshold(prices domain.MetalPrices, currency string) float64 {
	gold := calculations.OrZero(prices.Gold) * domain.NisabGoldGrams
	silver := calculations.OrZero(prices.Silver) * domain.NisabSilverGrams

	threshold := 0.0
	switch {
	case gold > 0 && silver > 0:
		threshold = math.Min(gold, silver)
	case gold > 0:
		threshold = gold
	case silver > 0:
		threshold = silver
	}
	return calculations.Round(threshold, currency)
}

func (a *Aggregator) item(label, tooltip string, value, zakatable float64, hawl bool, total float64) BreakdownItem {
	if !hawl {
		zakatable = 0
	}
	pct := 0.0
	if total > 0 {
		pct = calculations.RoundPercent(value / total * 100)
	}
	return BreakdownItem{
		Label:       label,
		Tooltip:     tooltip,
		Value:       value,
		Zakatable:   zakatable,
		ZakatDue:    calculations.Round(zakatable*domain.ZakatRate, a.currency),
		Percentage:  pct,
		IsZakatable: hawl && zakatable > 0,
	}
}

func passiveTooltip(m domain.PassiveMethod) string {
	if m == domain.MethodDetailed {
		return "Zakatable value is your share of the company's cash, receivables and inventory."
	}
	return "30% of market value is treated as zakatable for long-term passive holdings."
}
