// Package holdings manages actively traded stock positions.
package holdings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/events"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/assets"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/calculations"
	"github.com/MrAsimZahid/zakat-calculator/internal/state"
	"github.com/rs/zerolog"
)

// Registry provides CRUD over the active holdings in the state store.
// Symbols are matched case-insensitively on every path and stored uppercase.
type Registry struct {
	store    *state.Store
	prices   domain.PriceSource
	registry domain.AssetCalculatorRegistry
	events   *events.Manager
	now      func() time.Time
	log      zerolog.Logger
}

// NewRegistry creates a holdings registry.
func NewRegistry(store *state.Store, prices domain.PriceSource, registry domain.AssetCalculatorRegistry, em *events.Manager, log zerolog.Logger) *Registry {
	return &Registry{
		store:    store,
		prices:   prices,
		registry: registry,
		events:   em,
		now:      time.Now,
		log:      log.With().Str("service", "holdings").Logger(),
	}
}

// CanonicalSymbol trims and uppercases a ticker.
func CanonicalSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Add creates a holding or replaces the shares and price of an existing one.
// When manualPrice is nil the price is fetched in currency, falling back to the
// state currency and then USD.
func (r *Registry) Add(ctx context.Context, symbol string, shares float64, manualPrice *float64, currency string) (domain.ActiveStockHolding, error) {
	symbol = CanonicalSymbol(symbol)
	if symbol == "" {
		return domain.ActiveStockHolding{}, domain.NewValidationError("symbol", "must not be empty")
	}
	if !calculations.IsFinite(shares) || shares <= 0 {
		return domain.ActiveStockHolding{}, domain.NewValidationError("shares", "must be greater than zero")
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = r.store.Snapshot().EffectiveCurrency()
	}

	var (
		price      float64
		priceCcy   = currency
		observedAt = r.now().UTC()
	)
	if manualPrice != nil {
		if !calculations.IsFinite(*manualPrice) || *manualPrice < 0 {
			return domain.ActiveStockHolding{}, domain.NewValidationError("price", "must be a finite, non-negative number")
		}
		price = *manualPrice
	} else {
		quote, err := r.fetch(ctx, symbol, currency)
		if err != nil {
			return domain.ActiveStockHolding{}, err
		}
		price = quote.Price
		if quote.Currency != "" {
			priceCcy = quote.Currency
		}
		if !quote.LastUpdated.IsZero() {
			observedAt = quote.LastUpdated.UTC()
		}
	}

	var added domain.ActiveStockHolding
	created := false
	_, err := r.store.Update(ctx, "holding_added", func(st *domain.State) error {
		idx := indexOf(st.StockValues.ActiveStocks, symbol)
		if idx < 0 {
			st.StockValues.ActiveStocks = append(st.StockValues.ActiveStocks, domain.ActiveStockHolding{Symbol: symbol})
			idx = len(st.StockValues.ActiveStocks) - 1
			created = true
		}

		h := &st.StockValues.ActiveStocks[idx]
		h.Shares = shares
		h.Currency = priceCcy
		h.SourceCurrency = ""
		h.LastUpdated = observedAt
		calculations.Revalue(h, price)
		added = *h

		assets.SyncTotals(st, r.registry)
		return nil
	})
	if err != nil {
		return domain.ActiveStockHolding{}, err
	}

	eventType := events.HoldingUpdated
	if created {
		eventType = events.HoldingAdded
	}
	r.log.Info().
		Str("symbol", symbol).
		Float64("shares", shares).
		Float64("price", price).
		Bool("manual_price", manualPrice != nil).
		Bool("created", created).
		Msg("Holding saved")
	r.emit(eventType, added)
	return added, nil
}

// Update changes the share count of an existing holding and revalues it at a
// freshly fetched price.
func (r *Registry) Update(ctx context.Context, symbol string, shares float64) (domain.ActiveStockHolding, error) {
	symbol = CanonicalSymbol(symbol)
	if symbol == "" {
		return domain.ActiveStockHolding{}, domain.NewValidationError("symbol", "must not be empty")
	}
	if !calculations.IsFinite(shares) || shares <= 0 {
		return domain.ActiveStockHolding{}, domain.NewValidationError("shares", "must be greater than zero")
	}
	if _, ok := r.Get(symbol); !ok {
		return domain.ActiveStockHolding{}, fmt.Errorf("update %s: %w", symbol, domain.ErrHoldingNotFound)
	}

	quote, err := r.fetch(ctx, symbol, "")
	if err != nil {
		return domain.ActiveStockHolding{}, err
	}

	var updated domain.ActiveStockHolding
	_, err = r.store.Update(ctx, "holding_updated", func(st *domain.State) error {
		idx := indexOf(st.StockValues.ActiveStocks, symbol)
		if idx < 0 {
			// removed while the quote was in flight
			return fmt.Errorf("update %s: %w", symbol, domain.ErrHoldingNotFound)
		}

		h := &st.StockValues.ActiveStocks[idx]
		h.Shares = shares
		if quote.Currency != "" {
			h.Currency = quote.Currency
			h.SourceCurrency = ""
		}
		h.LastUpdated = r.now().UTC()
		if !quote.LastUpdated.IsZero() {
			h.LastUpdated = quote.LastUpdated.UTC()
		}
		calculations.Revalue(h, quote.Price)
		updated = *h

		assets.SyncTotals(st, r.registry)
		return nil
	})
	if err != nil {
		return domain.ActiveStockHolding{}, err
	}

	r.log.Info().Str("symbol", symbol).Float64("shares", shares).Float64("price", quote.Price).Msg("Holding updated")
	r.emit(events.HoldingUpdated, updated)
	return updated, nil
}

// Remove deletes the holding for symbol. It reports whether a holding was removed;
// removing an unknown symbol is a no-op.
func (r *Registry) Remove(ctx context.Context, symbol string) bool {
	symbol = CanonicalSymbol(symbol)
	if symbol == "" {
		return false
	}

	var removed domain.ActiveStockHolding
	_, err := r.store.Update(ctx, "holding_removed", func(st *domain.State) error {
		idx := indexOf(st.StockValues.ActiveStocks, symbol)
		if idx < 0 {
			return domain.ErrHoldingNotFound
		}
		removed = st.StockValues.ActiveStocks[idx]
		st.StockValues.ActiveStocks = append(st.StockValues.ActiveStocks[:idx], st.StockValues.ActiveStocks[idx+1:]...)
		assets.SyncTotals(st, r.registry)
		return nil
	})
	if err != nil {
		r.log.Debug().Str("symbol", symbol).Msg("Remove requested for unknown holding")
		return false
	}

	if e, ok := r.prices.(domain.QuoteEvicter); ok {
		if err := e.Evict(removed.Symbol); err != nil {
			r.log.Warn().Err(err).Str("symbol", removed.Symbol).Msg("Failed to evict cached quote")
		}
	}

	r.log.Info().Str("symbol", removed.Symbol).Msg("Holding removed")
	r.emit(events.HoldingRemoved, removed)
	return true
}

// List returns a copy of all holdings in insertion order.
func (r *Registry) List() []domain.ActiveStockHolding {
	return r.store.Snapshot().StockValues.ActiveStocks
}

// Get returns the holding for symbol.
func (r *Registry) Get(symbol string) (domain.ActiveStockHolding, bool) {
	holdings := r.List()
	idx := indexOf(holdings, CanonicalSymbol(symbol))
	if idx < 0 {
		return domain.ActiveStockHolding{}, false
	}
	return holdings[idx], true
}

func (r *Registry) fetch(ctx context.Context, symbol, currency string) (*domain.Price, error) {
	if r.prices == nil {
		return nil, &domain.FetchError{Op: "get_price", Symbols: []string{symbol}, Err: errors.New("no price source configured")}
	}

	quote, err := r.prices.GetPrice(ctx, symbol, currency)
	if err != nil {
		if domain.IsFetchError(err) {
			return nil, err
		}
		return nil, &domain.FetchError{Op: "get_price", Symbols: []string{symbol}, Err: err}
	}
	if quote == nil || !calculations.IsFinite(quote.Price) {
		return nil, domain.NewValidationError("price", fmt.Sprintf("source returned no finite price for %s", symbol))
	}
	return quote, nil
}

func (r *Registry) emit(t events.EventType, h domain.ActiveStockHolding) {
	r.events.Emit("holdings", &events.HoldingData{
		Symbol:      h.Symbol,
		Currency:    h.Currency,
		Shares:      h.Shares,
		Price:       h.CurrentPrice,
		MarketValue: h.MarketValue,
		Type:        t,
	})
}

func indexOf(holdings []domain.ActiveStockHolding, symbol string) int {
	for i, h := range holdings {
		if strings.EqualFold(h.Symbol, symbol) {
			return i
		}
	}
	return -1
}
