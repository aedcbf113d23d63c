package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MrAsimZahid/zakat-calculator/internal/config"
	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:                   t.TempDir(),
		DefaultCurrency:           "EUR",
		Port:                      8080,
		PriceAPIURL:               "http://127.0.0.1:0",
		PriceRequestsPerSecond:    5,
		ExchangeRateAPIURL:        "http://127.0.0.1:0",
		PriceRefreshSchedule:      "0 */15 * * * *",
		ClientDataCleanupSchedule: "0 0 3 * * *",
		MaintenanceSchedule:       "0 30 2 * * *",
		GoldPricePerGram:          60,
		SilverPricePerGram:        0.8,
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	assert.NotNil(t, container.StateStore)
	assert.NotNil(t, container.Holdings)
	assert.NotNil(t, container.PricePipeline)
	assert.NotNil(t, container.PassiveManager)
	assert.NotNil(t, container.ZakatService)
	assert.Nil(t, container.BackupService)
	assert.Len(t, container.Handlers, 3)

	assert.Len(t, jobs.All(), 3)
	assert.Nil(t, jobs.Backup)
	assert.Equal(t,
		[]string{"client_data_cleanup", "database_maintenance", "price_refresh"},
		container.Scheduler.JobNames())

	st := container.StateStore.Snapshot()
	assert.Equal(t, "EUR", st.Currency)
	assert.Equal(t, 60.0, st.MetalPrices.Gold)
	assert.Equal(t, "EUR", st.MetalPrices.Currency)
	require.NotNil(t, st.StockValues.PassiveInvestments)
	assert.Equal(t, domain.MethodQuick, st.StockValues.PassiveInvestments.Method)
}

func TestWire_RestoresSavedState(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	first, _, err := Wire(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	_, err = first.StateStore.Update(ctx, "test", func(st *domain.State) error {
		st.StockValues.ActiveStocks = []domain.ActiveStockHolding{
			{Symbol: "AAPL", Shares: 10, CurrentPrice: 100, MarketValue: 1000},
		}
		st.HawlMet = true
		return nil
	})
	require.NoError(t, err)
	first.Close()

	second, _, err := Wire(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(second.Close)

	st := second.StateStore.Snapshot()
	require.Len(t, st.StockValues.ActiveStocks, 1)
	assert.Equal(t, "AAPL", st.StockValues.ActiveStocks[0].Symbol)
	assert.True(t, st.HawlMet)
	assert.Equal(t, 1000.0, st.StockValues.MarketValue)
	assert.Equal(t, 1000.0, st.StockValues.ZakatableValue)
}

func TestWire_UnreadableSavedStateStartsFromDefaults(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	first, _, err := Wire(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	_, err = first.StateDB.Conn().ExecContext(ctx,
		`INSERT INTO calculator_state (id, data, updated_at) VALUES (1, '{not json', 0)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data`)
	require.NoError(t, err)
	first.Close()

	second, _, err := Wire(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(second.Close)

	st := second.StateStore.Snapshot()
	assert.Equal(t, "EUR", st.Currency)
	assert.Empty(t, st.StockValues.ActiveStocks)
	require.NotNil(t, st.StockValues.PassiveInvestments)
}

func TestWire_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.PriceRefreshSchedule = "every now and then"

	_, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "failed to register jobs")
}

func TestWire_BackupEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup = config.BackupConfig{
		Enabled:         true,
		Bucket:          "zakat-backups",
		Endpoint:        "http://127.0.0.1:9000",
		Region:          "auto",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Schedule:        "0 0 4 * * *",
		RetentionDays:   30,
	}

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	assert.NotNil(t, container.BackupService)
	require.NotNil(t, jobs.Backup)
	assert.Equal(t, "state_backup", jobs.Backup.Name())
	assert.Len(t, jobs.All(), 4)
}

func TestInitializeDatabases(t *testing.T) {
	cfg := testConfig(t)

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	assert.FileExists(t, filepath.Join(cfg.DataDir, "state.db"))
	assert.FileExists(t, filepath.Join(cfg.DataDir, "client_data.db"))
	assert.Len(t, container.Databases(), 2)
}

func TestInitializeDatabases_InvalidPath(t *testing.T) {
	cfg := &config.Config{DataDir: "/nonexistent/path/that/does/not/exist"}

	_, err := InitializeDatabases(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestInitializeRepositories_NilContainer(t *testing.T) {
	assert.Error(t, InitializeRepositories(nil, testConfig(t), zerolog.Nop()))
}
