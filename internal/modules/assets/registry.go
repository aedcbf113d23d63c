// Package assets provides the asset-type calculator registry.
package assets

import (
	"sync"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/calculations"
)

// Registry maps asset kinds to their calculators.
type Registry struct {
	mu          sync.RWMutex
	calculators map[domain.AssetKind]domain.AssetCalculator
}

// NewRegistry creates a registry with the built-in calculators registered.
func NewRegistry() *Registry {
	r := &Registry{calculators: make(map[domain.AssetKind]domain.AssetCalculator)}
	r.Register(domain.AssetKindStocks, StocksCalculator{})
	return r
}

// Register adds or replaces the calculator for kind.
func (r *Registry) Register(kind domain.AssetKind, calc domain.AssetCalculator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calculators[kind] = calc
}

// Lookup returns the calculator for kind.
func (r *Registry) Lookup(kind domain.AssetKind) (domain.AssetCalculator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	calc, ok := r.calculators[kind]
	return calc, ok
}

// StocksCalculator values the stock slice of the state.
type StocksCalculator struct{}

// CalculateTotal sums active holdings, passive investments and dividends.
func (StocksCalculator) CalculateTotal(values domain.StockValues, prices domain.MetalPrices) float64 {
	return calculations.Total(values, prices.Currency)
}

// CalculateZakatable returns the zakatable stock value; 0 until the Hawl is met.
func (StocksCalculator) CalculateZakatable(values domain.StockValues, prices domain.MetalPrices, hawlMet bool) float64 {
	return calculations.Zakatable(values, hawlMet, prices.Currency)
}
