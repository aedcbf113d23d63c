// Package prices refreshes the market price of every active holding.
package prices

import (
	"context"
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

// RefreshResult summarizes one refresh run.
type RefreshResult struct {
	Currency           string   `json:"currency"`
	Missing            []string `json:"missing,omitempty"`
	Updated            int      `json:"updated"`
	Converted          int      `json:"converted"`
	ConversionFailures int      `json:"conversion_failures"`
}

// resolvedQuote is a batch entry after currency reconciliation.
type resolvedQuote struct {
	observedAt     time.Time
	currency       string
	sourceCurrency string
	price          float64
}

// Pipeline batch-refreshes holding prices.
type Pipeline struct {
	store     *state.Store
	source    domain.PriceSource
	converter domain.CurrencyConverter
	registry  domain.AssetCalculatorRegistry
	events    *events.Manager
	now       func() time.Time
	log       zerolog.Logger
}

// NewPipeline creates a price pipeline. converter may be nil, in which case
// prices are kept in the currency the source quoted them in.
func NewPipeline(store *state.Store, source domain.PriceSource, converter domain.CurrencyConverter, registry domain.AssetCalculatorRegistry, em *events.Manager, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:     store,
		source:    source,
		converter: converter,
		registry:  registry,
		events:    em,
		now:       time.Now,
		log:       log.With().Str("service", "price_pipeline").Logger(),
	}
}

// Refresh quotes every held symbol in targetCurrency and revalues the holdings
// in a single write. fromCurrency is assumed for quotes that carry no currency.
//
// A failed batch call leaves the state untouched and is returned as a FetchError.
// Symbols the source did not price keep their previous values.
func (p *Pipeline) Refresh(ctx context.Context, targetCurrency, fromCurrency string) (RefreshResult, error) {
	snap := p.store.Snapshot()

	target := strings.ToUpper(strings.TrimSpace(targetCurrency))
	if target == "" {
		target = snap.EffectiveCurrency()
	}
	result := RefreshResult{Currency: target}

	holdings := snap.StockValues.ActiveStocks
	if len(holdings) == 0 {
		p.log.Debug().Msg("No active holdings to refresh")
		return result, nil
	}

	symbols := make([]string, len(holdings))
	for i, h := range holdings {
		symbols[i] = h.Symbol
	}

	batch, err := p.source.GetBatchPrices(ctx, symbols, target)
	if err != nil {
		if !domain.IsFetchError(err) {
			err = &domain.FetchError{Op: "get_batch_prices", Symbols: symbols, Err: err}
		}
		p.log.Error().Err(err).Int("symbols", len(symbols)).Msg("Batch price fetch failed")
		p.events.EmitError("prices", err, map[string]interface{}{"currency": target})
		return result, err
	}

	from := strings.ToUpper(strings.TrimSpace(fromCurrency))
	quotes := make(map[string]resolvedQuote, len(symbols))
	for _, symbol := range symbols {
		entry, ok := findEntry(batch, symbol)
		if !ok || !calculations.IsFinite(entry.Price) {
			result.Missing = append(result.Missing, symbol)
			p.log.Debug().Str("symbol", symbol).Msg("No price returned for symbol")
			continue
		}

		q, converted, failed := p.resolve(ctx, entry, target, from)
		if converted {
			result.Converted++
		}
		if failed {
			result.ConversionFailures++
		}
		quotes[strings.ToUpper(symbol)] = q
	}

	metals, metalsConverted := p.convertMetals(ctx, snap.MetalPrices, target)

	_, err = p.store.Update(ctx, "prices_refreshed", func(st *domain.State) error {
		for i := range st.StockValues.ActiveStocks {
			h := &st.StockValues.ActiveStocks[i]
			q, ok := quotes[strings.ToUpper(h.Symbol)]
			if !ok {
				continue
			}
			h.Currency = q.currency
			h.SourceCurrency = q.sourceCurrency
			h.LastUpdated = q.observedAt
			calculations.Revalue(h, q.price)
			result.Updated++
		}
		st.Currency = target
		if metalsConverted && st.MetalPrices == snap.MetalPrices {
			st.MetalPrices = metals
		}
		assets.SyncTotals(st, p.registry)
		return nil
	})
	if err != nil {
		return result, err
	}

	p.log.Info().
		Str("currency", target).
		Int("updated", result.Updated).
		Int("missing", len(result.Missing)).
		Int("converted", result.Converted).
		Int("conversion_failures", result.ConversionFailures).
		Msg("Prices refreshed")
	p.events.Emit("prices", &events.PricesRefreshedData{
		Currency:           target,
		Missing:            result.Missing,
		Updated:            result.Updated,
		Converted:          result.Converted,
		ConversionFailures: result.ConversionFailures,
	})
	return result, nil
}

// resolve applies the currency fallback chain to one batch entry.
func (p *Pipeline) resolve(ctx context.Context, e domain.BatchPrice, target, from string) (q resolvedQuote, converted, failed bool) {
	q = resolvedQuote{
		observedAt:     e.LastUpdated.UTC(),
		price:          e.Price,
		currency:       strings.ToUpper(e.Currency),
		sourceCurrency: strings.ToUpper(e.SourceCurrency),
	}
	if e.LastUpdated.IsZero() {
		q.observedAt = p.now().UTC()
	}
	if q.currency == "" {
		q.currency = from
		if q.currency == "" {
			q.currency = target
		}
	}

	// Source already converted into the requested currency.
	if e.ConversionApplied && q.currency == target {
		return q, true, false
	}

	if q.currency == target || e.ConversionApplied {
		return q, false, false
	}

	if p.converter == nil {
		p.log.Debug().Str("symbol", e.Symbol).Str("from", q.currency).Str("to", target).
			Msg("No currency converter available, keeping source currency")
		return q, false, false
	}

	amount, err := p.converter.ConvertAmount(ctx, e.Price, q.currency, target)
	switch {
	case err != nil:
		err = &domain.ConversionError{From: q.currency, To: target, Err: err}
	case !calculations.IsFinite(amount):
		err = &domain.ConversionError{From: q.currency, To: target, Err: fmt.Errorf("non-finite result %v", amount)}
	case amount == e.Price:
		err = &domain.ConversionError{From: q.currency, To: target, Err: fmt.Errorf("amount unchanged")}
	}
	if err != nil {
		p.log.Warn().Err(err).Str("symbol", e.Symbol).Msg("Currency conversion failed, keeping source price")
		return q, false, true
	}

	q.sourceCurrency = q.currency
	q.currency = target
	q.price = amount
	return q, true, false
}

// convertMetals expresses the per-gram metal prices in target so the nisab
// threshold is compared against totals in the same currency. ok is false when
// nothing needed converting or a conversion failed.
func (p *Pipeline) convertMetals(ctx context.Context, mp domain.MetalPrices, target string) (domain.MetalPrices, bool) {
	from := strings.ToUpper(mp.Currency)
	if from == "" || from == target || (mp.Gold <= 0 && mp.Silver <= 0) {
		return mp, false
	}
	if p.converter == nil {
		p.log.Warn().Str("from", from).Str("to", target).Msg("No currency converter for metal prices, nisab uses a different currency")
		return mp, false
	}

	out := domain.MetalPrices{Currency: target}
	for _, m := range []struct {
		name string
		src  float64
		dst  *float64
	}{
		{"gold", mp.Gold, &out.Gold},
		{"silver", mp.Silver, &out.Silver},
	} {
		if !calculations.IsFinite(m.src) || m.src <= 0 {
			continue
		}
		v, err := p.converter.ConvertAmount(ctx, m.src, from, target)
		if err == nil && (!calculations.IsFinite(v) || v <= 0) {
			err = fmt.Errorf("unusable result %v", v)
		}
		if err != nil {
			err = &domain.ConversionError{From: from, To: target, Err: err}
			p.log.Warn().Err(err).Str("metal", m.name).Msg("Metal price conversion failed, nisab uses a different currency")
			return mp, false
		}
		*m.dst = v
	}
	return out, true
}

func findEntry(batch []domain.BatchPrice, symbol string) (domain.BatchPrice, bool) {
	for _, e := range batch {
		if strings.EqualFold(e.Symbol, symbol) {
			return e, true
		}
	}
	return domain.BatchPrice{}, false
}
