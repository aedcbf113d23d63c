package zakat

import (
	"context"
	"strings"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/events"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/assets"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/calculations"
	"github.com/MrAsimZahid/zakat-calculator/internal/state"
	"github.com/rs/zerolog"
)

// Summary is the read model served to clients.
type Summary struct {
	Breakdown      Breakdown `json:"breakdown"`
	Currency       string    `json:"currency"`
	Total          float64   `json:"total"`
	Zakatable      float64   `json:"zakatable"`
	ZakatDue       float64   `json:"zakatDue"`
	NisabThreshold float64   `json:"nisabThreshold"`
	MeetsNisab     bool      `json:"meetsNisab"`
	HawlMet        bool      `json:"hawlMet"`
}

// Service exposes the aggregator over the live state and owns the
// non-holding inputs: Hawl flag, dividend earnings and metal prices.
type Service struct {
	store    *state.Store
	registry domain.AssetCalculatorRegistry
	events   *events.Manager
	log      zerolog.Logger
}

// NewService creates a zakat service.
func NewService(store *state.Store, registry domain.AssetCalculatorRegistry, em *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		registry: registry,
		events:   em,
		log:      log.With().Str("service", "zakat").Logger(),
	}
}

// Aggregator returns a view over the current state.
func (s *Service) Aggregator() *Aggregator {
	return NewAggregator(s.store.Snapshot())
}

// Summary computes totals, nisab and breakdown from one snapshot.
func (s *Service) Summary() Summary {
	st := s.store.Snapshot()
	a := NewAggregator(st)
	if mc := st.MetalPrices.Currency; mc != "" && !strings.EqualFold(mc, a.currency) {
		s.log.Warn().
			Str("metal_currency", mc).
			Str("currency", a.currency).
			Msg("Metal prices are in a different currency than the totals")
	}
	return Summary{
		Currency:       a.currency,
		Total:          a.TotalStocks(),
		Zakatable:      a.TotalZakatableStocks(),
		ZakatDue:       a.ZakatDue(),
		NisabThreshold: a.NisabThreshold(),
		MeetsNisab:     a.MeetsNisabThreshold(),
		HawlMet:        st.HawlMet,
		Breakdown:      a.Breakdown(),
	}
}

// SetHawlMet records whether the holding period has elapsed.
func (s *Service) SetHawlMet(ctx context.Context, met bool) {
	var changed bool
	_, _ = s.store.Update(ctx, "hawl_changed", func(st *domain.State) error {
		changed = st.HawlMet != met
		st.HawlMet = met
		assets.SyncTotals(st, s.registry)
		return nil
	})

	if changed {
		s.log.Info().Bool("hawl_met", met).Msg("Hawl status changed")
		s.events.Emit("zakat", &events.HawlStatusData{HawlMet: met})
	}
}

// SetDividendEarnings replaces the dividend total.
func (s *Service) SetDividendEarnings(ctx context.Context, amount float64) error {
	if !calculations.IsFinite(amount) || amount < 0 {
		return domain.NewValidationError("dividends", "must be a finite, non-negative amount")
	}

	_, err := s.store.Update(ctx, "dividends_updated", func(st *domain.State) error {
		st.StockValues.TotalDividendEarnings = calculations.Round(amount, st.EffectiveCurrency())
		assets.SyncTotals(st, s.registry)
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Float64("amount", amount).Msg("Dividend earnings updated")
	return nil
}

// SetMetalPrices records per-gram gold and silver prices for the nisab.
// An empty currency means the state currency.
func (s *Service) SetMetalPrices(ctx context.Context, gold, silver float64, currency string) error {
	if !calculations.IsFinite(gold) || gold < 0 {
		return domain.NewValidationError("gold", "must be a finite, non-negative price per gram")
	}
	if !calculations.IsFinite(silver) || silver < 0 {
		return domain.NewValidationError("silver", "must be a finite, non-negative price per gram")
	}

	_, err := s.store.Update(ctx, "metal_prices_updated", func(st *domain.State) error {
		ccy := strings.ToUpper(strings.TrimSpace(currency))
		if ccy == "" {
			ccy = st.EffectiveCurrency()
		}
		st.MetalPrices = domain.MetalPrices{Gold: gold, Silver: silver, Currency: ccy}
		assets.SyncTotals(st, s.registry)
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Float64("gold", gold).Float64("silver", silver).Msg("Metal prices updated")
	return nil
}

// Reset restores the default state.
func (s *Service) Reset(ctx context.Context) domain.State {
	return s.store.Reset(ctx)
}
