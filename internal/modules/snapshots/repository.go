// Package snapshots persists the calculator aggregate and its history of totals.
package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/database"
	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/passive"
	"github.com/MrAsimZahid/zakat-calculator/internal/state"
	"github.com/rs/zerolog"
)

// DefaultHistoryLimit is how many history rows are kept after each save.
const DefaultHistoryLimit = 100

// HistoryEntry is one saved set of totals.
type HistoryEntry struct {
	CreatedAt      time.Time `json:"created_at"`
	ID             int64     `json:"id"`
	MarketValue    float64   `json:"market_value"`
	ZakatableValue float64   `json:"zakatable_value"`
	Holdings       int       `json:"holdings"`
}

// Repository stores the aggregate as a single JSON row in state.db.
type Repository struct {
	db              *sql.DB
	migrator        *passive.Migrator
	defaultCurrency string
	keep            int
	now             func() time.Time
	log             zerolog.Logger
}

// NewRepository creates a snapshot repository.
func NewRepository(db *sql.DB, migrator *passive.Migrator, defaultCurrency string, log zerolog.Logger) *Repository {
	if defaultCurrency == "" {
		defaultCurrency = domain.DefaultCurrency
	}
	return &Repository{
		db:              db,
		migrator:        migrator,
		defaultCurrency: defaultCurrency,
		keep:            DefaultHistoryLimit,
		now:             time.Now,
		log:             log.With().Str("repo", "snapshots").Logger(),
	}
}

var _ state.Persister = (*Repository)(nil)

// Save upserts the current aggregate and appends a history row.
func (r *Repository) Save(ctx context.Context, st domain.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	ts := r.now().Unix()

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO calculator_state (id, data, updated_at) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			string(data), ts)
		if err != nil {
			return fmt.Errorf("failed to save state: %w", err)
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO state_history (data, market_value, zakatable_value, holdings, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			string(data), st.StockValues.MarketValue, st.StockValues.ZakatableValue,
			len(st.StockValues.ActiveStocks), ts)
		if err != nil {
			return fmt.Errorf("failed to append history: %w", err)
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM state_history
			WHERE id NOT IN (SELECT id FROM state_history ORDER BY id DESC LIMIT ?)`, r.keep)
		if err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
		return nil
	})
}

// Load reads the persisted aggregate. Fields are decoded one at a time so a
// malformed field falls back to its zero value and a malformed holding is
// dropped. The passive block goes through the migrator so older persisted
// shapes are upgraded; a block that cannot be migrated is replaced by the
// default one. ok is false when nothing usable was saved.
//
// The legacy totals are returned as stored; callers resync them.
func (r *Repository) Load(ctx context.Context) (st domain.State, ok bool, err error) {
	var data string
	err = r.db.QueryRowContext(ctx, "SELECT data FROM calculator_state WHERE id = 1").Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.State{}, false, nil
	}
	if err != nil {
		return domain.State{}, false, fmt.Errorf("failed to query state: %w", err)
	}

	st, ok = r.decode([]byte(data))
	return st, ok, nil
}

func (r *Repository) decode(data []byte) (domain.State, bool) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		r.log.Warn().Err(err).Msg("Persisted state unreadable, ignoring it")
		return domain.State{}, false
	}

	var st domain.State
	decodeField(r.log, doc, "currency", &st.Currency)
	decodeField(r.log, doc, "stockHawlMet", &st.HawlMet)
	decodeField(r.log, doc, "metalPrices", &st.MetalPrices)

	var sv map[string]json.RawMessage
	decodeField(r.log, doc, "stockValues", &sv)
	decodeField(r.log, sv, "market_value", &st.StockValues.MarketValue)
	decodeField(r.log, sv, "zakatable_value", &st.StockValues.ZakatableValue)
	decodeField(r.log, sv, "total_dividend_earnings", &st.StockValues.TotalDividendEarnings)
	st.StockValues.ActiveStocks = r.decodeHoldings(sv)

	if st.Currency == "" {
		st.Currency = r.defaultCurrency
	}

	// The passive block may be in any historical shape, so it goes to the
	// migrator untyped.
	var rawPassive map[string]interface{}
	decodeField(r.log, sv, "passiveInvestments", &rawPassive)

	var migrated *domain.PassiveInvestmentState
	if rawPassive != nil {
		migrated = r.migrator.Migrate(rawPassive)
	}
	if migrated == nil {
		r.log.Warn().Bool("present", rawPassive != nil).Msg("Persisted passive investments unusable, using defaults")
		def := domain.NewDefaultPassiveState(st.Currency, r.now().UTC(), state.NewInvestmentID)
		migrated = &def
	}
	st.StockValues.PassiveInvestments = migrated

	return st, true
}

func (r *Repository) decodeHoldings(sv map[string]json.RawMessage) []domain.ActiveStockHolding {
	out := []domain.ActiveStockHolding{}

	var items []json.RawMessage
	decodeField(r.log, sv, "activeStocks", &items)
	for i, item := range items {
		var h domain.ActiveStockHolding
		if err := json.Unmarshal(item, &h); err != nil || h.Symbol == "" {
			r.log.Warn().Err(err).Int("index", i).Msg("Dropping malformed persisted holding")
			continue
		}
		out = append(out, h)
	}
	return out
}

// decodeField sets dst from doc[key]. A missing or null key leaves dst alone;
// a malformed one is logged and leaves dst alone.
func decodeField[T any](log zerolog.Logger, doc map[string]json.RawMessage, key string, dst *T) {
	raw, ok := doc[key]
	if !ok || string(raw) == "null" {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Warn().Err(err).Str("field", key).Msg("Dropping malformed persisted field")
		return
	}
	*dst = v
}

// History returns saved totals, newest first.
func (r *Repository) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > r.keep {
		limit = r.keep
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, market_value, zakatable_value, holdings, created_at
		FROM state_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		var created int64
		if err := rows.Scan(&e.ID, &e.MarketValue, &e.ZakatableValue, &e.Holdings, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.CreatedAt = time.Unix(created, 0).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return entries, nil
}
