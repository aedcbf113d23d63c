// Package passive owns the passive-investment block: schema migration and the
// manager that writes user edits into the state.
package passive

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/state"
	"github.com/rs/zerolog"
)

// Migrator normalizes any persisted passive-investment block to version 2.0.
// It never panics and never returns an error: an input it cannot read yields nil.
type Migrator struct {
	now   func() time.Time
	newID func() string
	log   zerolog.Logger
}

// MigratorOption configures a Migrator.
type MigratorOption func(*Migrator)

// WithMigratorClock overrides the time source used for default Hawl start dates.
func WithMigratorClock(now func() time.Time) MigratorOption {
	return func(m *Migrator) { m.now = now }
}

// WithIDGenerator overrides the id source for placeholder investment rows.
func WithIDGenerator(newID func() string) MigratorOption {
	return func(m *Migrator) { m.newID = newID }
}

// NewMigrator creates a migrator.
func NewMigrator(log zerolog.Logger, opts ...MigratorOption) *Migrator {
	m := &Migrator{
		now:   time.Now,
		newID: state.NewInvestmentID,
		log:   log.With().Str("service", "passive_migrator").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Migrate converts a decoded JSON object into the canonical block.
func (m *Migrator) Migrate(raw map[string]interface{}) (out *domain.PassiveInvestmentState) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Msg("Passive investment migration panicked")
			out = nil
		}
	}()

	if raw == nil {
		m.log.Debug().Msg("No passive investment state to migrate")
		return nil
	}

	version := classifyVersion(raw)
	migrated, err := version.migrate(m, raw)
	if err != nil {
		m.log.Warn().Err(err).Str("version", version.tag()).Msg("Discarding passive investment state")
		return nil
	}

	m.log.Debug().
		Str("from", version.tag()).
		Str("method", string(migrated.Method)).
		Int("investments", len(migrated.Investments)).
		Msg("Passive investment state migrated")
	return migrated
}

// MigrateJSON decodes data and migrates it. Non-object JSON yields nil.
func (m *Migrator) MigrateJSON(data []byte) *domain.PassiveInvestmentState {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		m.log.Warn().Err(err).Msg("Passive investment state is not a JSON object")
		return nil
	}
	return m.Migrate(raw)
}

// MigrateState re-validates an already typed block.
func (m *Migrator) MigrateState(st domain.PassiveInvestmentState) *domain.PassiveInvestmentState {
	data, err := json.Marshal(st)
	if err != nil {
		m.log.Warn().Err(err).Msg("Failed to encode passive investment state")
		return nil
	}
	return m.MigrateJSON(data)
}

// sanitize builds the canonical block from raw, defaulting every field that is
// missing or of the wrong type. Both legacy shapes go through the same rules;
// the canonical shape additionally keeps its Hawl status and currency.
func (m *Migrator) sanitize(raw map[string]interface{}, policy sanitizePolicy) *domain.PassiveInvestmentState {
	method := domain.MethodQuick
	if s, ok := raw["method"].(string); ok && domain.PassiveMethod(s).Valid() {
		method = domain.PassiveMethod(s)
	}

	currency := domain.DefaultCurrency
	if policy.preserveCurrency {
		if dp, ok := raw["displayProperties"].(map[string]interface{}); ok {
			if c, ok := dp["currency"].(string); ok && strings.TrimSpace(c) != "" {
				currency = c
			}
		}
	}

	hawl := domain.HawlStatus{IsComplete: false, StartDate: m.now().UTC()}
	if policy.preserveHawl {
		if h, ok := parseHawlStatus(raw["hawlStatus"]); ok {
			hawl = h
		}
	}

	out := &domain.PassiveInvestmentState{
		Version:           domain.PassiveSchemaVersion,
		Method:            method,
		Investments:       m.sanitizeInvestments(raw["investments"]),
		MarketValue:       number(raw["marketValue"]),
		ZakatableValue:    number(raw["zakatableValue"]),
		HawlStatus:        hawl,
		DisplayProperties: domain.NewPassiveDisplayProperties(method, currency),
	}

	if cd, present := raw["companyData"]; present && cd != nil {
		if obj, ok := cd.(map[string]interface{}); ok {
			out.CompanyData = sanitizeCompanyData(obj)
		} else {
			m.log.Debug().Str("type", fmt.Sprintf("%T", cd)).Msg("Dropping malformed companyData")
		}
	}

	return out
}

func (m *Migrator) sanitizeInvestments(v interface{}) []domain.Investment {
	items, ok := v.([]interface{})
	if !ok {
		return []domain.Investment{domain.NewEmptyInvestment(m.newID())}
	}

	out := make([]domain.Investment, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			m.log.Warn().Int("index", i).Msg("Skipping malformed investment entry")
			continue
		}
		inv := domain.Investment{
			Name:          str(obj["name"]),
			Shares:        number(obj["shares"]),
			PricePerShare: number(obj["pricePerShare"]),
			MarketValue:   number(obj["marketValue"]),
		}
		if id := str(obj["id"]); id != "" {
			inv.ID = id
		} else {
			inv.ID = m.newID()
		}
		out = append(out, inv)
	}
	return out
}

func sanitizeCompanyData(obj map[string]interface{}) *domain.CompanyData {
	cd := &domain.CompanyData{
		Cash:        number(obj["cash"]),
		Receivables: number(obj["receivables"]),
		Inventory:   number(obj["inventory"]),
		TotalShares: number(obj["totalShares"]),
		YourShares:  number(obj["yourShares"]),
	}
	if dp, ok := obj["displayProperties"].(map[string]interface{}); ok {
		if pct, ok := finite(dp["sharePercentage"]); ok {
			cd.DisplayProperties = &domain.CompanyDisplayProperties{SharePercentage: pct}
		}
	}
	return cd
}

func parseHawlStatus(v interface{}) (domain.HawlStatus, bool) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return domain.HawlStatus{}, false
	}
	complete, ok := obj["isComplete"].(bool)
	if !ok {
		return domain.HawlStatus{}, false
	}
	start, ok := parseTime(obj["startDate"])
	if !ok {
		return domain.HawlStatus{}, false
	}
	h := domain.HawlStatus{IsComplete: complete, StartDate: start}
	if end, ok := parseTime(obj["endDate"]); ok {
		h.EndDate = &end
	}
	return h, true
}

func parseTime(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// number returns v as a finite float64, or 0.
func number(v interface{}) float64 {
	f, _ := finite(v)
	return f
}

func finite(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
