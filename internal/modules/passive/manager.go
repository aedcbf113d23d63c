package passive

import (
	"context"
	"errors"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/events"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/assets"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/calculations"
	"github.com/MrAsimZahid/zakat-calculator/internal/state"
	"github.com/rs/zerolog"
)

// errRejected aborts a store write when the draft block fails migration.
var errRejected = errors.New("passive investment update rejected by migrator")

// Data is the user-entered part of a passive update.
type Data struct {
	CompanyData *domain.CompanyData `json:"companyData,omitempty"`
	Investments []domain.Investment `json:"investments,omitempty"`
}

// Calculations carries values computed by the caller. Missing or non-finite
// values fall back to the stored ones; negative values are stored as 0.
type Calculations struct {
	MarketValue    *float64 `json:"marketValue,omitempty"`
	ZakatableValue *float64 `json:"zakatableValue,omitempty"`
}

// Manager writes passive-investment edits into the state store. Every write
// goes through the migrator, so the stored block is always canonical.
type Manager struct {
	store    *state.Store
	migrator *Migrator
	registry domain.AssetCalculatorRegistry
	events   *events.Manager
	now      func() time.Time
	log      zerolog.Logger
}

// NewManager creates a passive investment manager.
func NewManager(store *state.Store, migrator *Migrator, registry domain.AssetCalculatorRegistry, em *events.Manager, log zerolog.Logger) *Manager {
	return &Manager{
		store:    store,
		migrator: migrator,
		registry: registry,
		events:   em,
		now:      time.Now,
		log:      log.With().Str("service", "passive_manager").Logger(),
	}
}

// UpdatePassive builds a version 2.0 block from the given method, data and
// calculations, validates it and stores it together with refreshed totals.
// It reports whether the update was applied; a rejected draft leaves the state
// untouched.
func (m *Manager) UpdatePassive(ctx context.Context, method domain.PassiveMethod, data *Data, calc *Calculations) bool {
	var applied *domain.PassiveInvestmentState

	_, err := m.store.Update(ctx, "passive_updated", func(st *domain.State) error {
		draft := m.draft(st, method, data, calc)
		migrated := m.migrator.MigrateState(draft)
		if migrated == nil {
			return errRejected
		}

		st.StockValues.PassiveInvestments = migrated
		st.StockValues.MarketValue = migrated.MarketValue
		st.StockValues.ZakatableValue = migrated.ZakatableValue
		assets.SyncTotals(st, m.registry)
		applied = migrated
		return nil
	})

	if err != nil {
		m.log.Warn().Err(err).Str("method", string(method)).Msg("Passive investment update rejected")
		m.events.Emit("passive", &events.PassiveUpdatedData{
			Method:   string(method),
			Reason:   err.Error(),
			Accepted: false,
		})
		return false
	}

	m.log.Info().
		Str("method", string(applied.Method)).
		Int("investments", len(applied.Investments)).
		Float64("market_value", applied.MarketValue).
		Msg("Passive investments updated")
	m.events.Emit("passive", &events.PassiveUpdatedData{
		Method:         string(applied.Method),
		MarketValue:    applied.MarketValue,
		ZakatableValue: applied.ZakatableValue,
		Accepted:       true,
	})
	return true
}

// MigrateStored re-runs the migrator over the stored block, replacing it with
// the canonical result. A block the migrator cannot read is left in place.
func (m *Manager) MigrateStored(ctx context.Context) (*domain.PassiveInvestmentState, bool) {
	var out *domain.PassiveInvestmentState
	_, err := m.store.Update(ctx, "passive_migrated", func(st *domain.State) error {
		if st.StockValues.PassiveInvestments == nil {
			return errRejected
		}
		migrated := m.migrator.MigrateState(*st.StockValues.PassiveInvestments)
		if migrated == nil {
			return errRejected
		}
		st.StockValues.PassiveInvestments = migrated
		assets.SyncTotals(st, m.registry)
		out = migrated
		return nil
	})
	if err != nil {
		return nil, false
	}
	return out, true
}

// Current returns the stored block, or nil.
func (m *Manager) Current() *domain.PassiveInvestmentState {
	st := m.store.Snapshot()
	return st.StockValues.PassiveInvestments
}

func (m *Manager) draft(st *domain.State, method domain.PassiveMethod, data *Data, calc *Calculations) domain.PassiveInvestmentState {
	prior := st.StockValues.PassiveInvestments

	currency := st.EffectiveCurrency()
	hawl := domain.HawlStatus{IsComplete: false, StartDate: m.now().UTC()}
	if prior != nil {
		if prior.DisplayProperties.Currency != "" {
			currency = prior.DisplayProperties.Currency
		}
		hawl = prior.Clone().HawlStatus
	}

	draft := domain.PassiveInvestmentState{
		Version:           domain.PassiveSchemaVersion,
		Method:            method,
		HawlStatus:        hawl,
		DisplayProperties: domain.NewPassiveDisplayProperties(method, currency),
	}

	if data != nil && data.Investments != nil {
		draft.Investments = make([]domain.Investment, len(data.Investments))
		for i, inv := range data.Investments {
			inv.Shares = calculations.OrZero(inv.Shares)
			inv.PricePerShare = calculations.OrZero(inv.PricePerShare)
			inv.MarketValue = calculations.OrZero(inv.MarketValue)
			if inv.ID == "" {
				inv.ID = m.migrator.newID()
			}
			draft.Investments[i] = inv
		}
	} else if prior != nil && prior.Investments != nil {
		draft.Investments = prior.Clone().Investments
	} else {
		draft.Investments = []domain.Investment{}
	}

	if data != nil && data.CompanyData != nil {
		cd := *data.CompanyData
		cd.Cash = calculations.OrZero(cd.Cash)
		cd.Receivables = calculations.OrZero(cd.Receivables)
		cd.Inventory = calculations.OrZero(cd.Inventory)
		cd.TotalShares = calculations.OrZero(cd.TotalShares)
		cd.YourShares = calculations.OrZero(cd.YourShares)
		cd.DisplayProperties = &domain.CompanyDisplayProperties{
			SharePercentage: cd.SharePercentage(),
		}
		draft.CompanyData = &cd
	} else if method == domain.MethodDetailed && prior != nil && prior.CompanyData != nil {
		draft.CompanyData = prior.Clone().CompanyData
	}

	if prior != nil {
		draft.MarketValue = calculations.NonNegative(prior.MarketValue)
		draft.ZakatableValue = calculations.NonNegative(prior.ZakatableValue)
	}
	if calc != nil {
		if calc.MarketValue != nil && calculations.IsFinite(*calc.MarketValue) {
			draft.MarketValue = calculations.NonNegative(*calc.MarketValue)
		}
		if calc.ZakatableValue != nil && calculations.IsFinite(*calc.ZakatableValue) {
			draft.ZakatableValue = calculations.NonNegative(*calc.ZakatableValue)
		}
	}

	return draft
}
