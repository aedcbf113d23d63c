// Package di provides dependency injection for service implementations.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/clients/exchangerate"
	"github.com/MrAsimZahid/zakat-calculator/internal/clients/yahoo"
	"github.com/MrAsimZahid/zakat-calculator/internal/config"
	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/events"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/assets"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/holdings"
	holdingshandlers "github.com/MrAsimZahid/zakat-calculator/internal/modules/holdings/handlers"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/passive"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/prices"
	snapshotshandlers "github.com/MrAsimZahid/zakat-calculator/internal/modules/snapshots/handlers"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/zakat"
	zakathandlers "github.com/MrAsimZahid/zakat-calculator/internal/modules/zakat/handlers"
	"github.com/MrAsimZahid/zakat-calculator/internal/reliability"
	"github.com/MrAsimZahid/zakat-calculator/internal/server"
	"github.com/MrAsimZahid/zakat-calculator/internal/state"
	"github.com/rs/zerolog"
)

// InitializeServices creates clients, the state store and every service on top
// of it. The store is seeded from the last saved snapshot when there is one.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// ==========================================
	// STEP 1: Clients
	// ==========================================
	container.PriceClient = yahoo.NewClient(yahoo.Config{
		BaseURL:           cfg.PriceAPIURL,
		RequestsPerSecond: cfg.PriceRequestsPerSecond,
	}, container.ClientDataRepo, log)
	container.CurrencyClient = exchangerate.NewClient(cfg.ExchangeRateAPIURL, container.ClientDataRepo, log)

	// ==========================================
	// STEP 2: Events and asset calculators
	// ==========================================
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)
	container.AssetRegistry = assets.NewRegistry()

	// ==========================================
	// STEP 3: State store
	// ==========================================
	initial := initialState(ctx, container, cfg, log)
	container.StateStore = state.NewStore(cfg.DefaultCurrency, log,
		state.WithInitialState(initial),
		state.WithPersister(container.SnapshotRepo),
		state.WithEvents(container.EventManager),
	)

	// ==========================================
	// STEP 4: Domain services
	// ==========================================
	container.Holdings = holdings.NewRegistry(
		container.StateStore,
		container.PriceClient,
		container.AssetRegistry,
		container.EventManager,
		log,
	)
	container.PricePipeline = prices.NewPipeline(
		container.StateStore,
		container.PriceClient,
		container.CurrencyClient,
		container.AssetRegistry,
		container.EventManager,
		log,
	)
	container.PassiveManager = passive.NewManager(
		container.StateStore,
		container.Migrator,
		container.AssetRegistry,
		container.EventManager,
		log,
	)
	container.ZakatService = zakat.NewService(
		container.StateStore,
		container.AssetRegistry,
		container.EventManager,
		log,
	)

	// ==========================================
	// STEP 5: Backups (optional)
	// ==========================================
	if cfg.Backup.Enabled {
		storage, err := reliability.NewS3Client(ctx, reliability.S3Config{
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			Bucket:          cfg.Backup.Bucket,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup storage client: %w", err)
		}
		container.BackupService = reliability.NewBackupService(container.StateStore, storage, container.EventManager, log)
	}

	// ==========================================
	// STEP 6: HTTP handlers
	// ==========================================
	container.Handlers = []server.RouteRegistrar{
		holdingshandlers.NewHandler(
			container.StateStore,
			container.Holdings,
			container.PricePipeline,
			container.PassiveManager,
			container.Migrator,
			log,
		),
		zakathandlers.NewHandler(container.ZakatService, log),
		snapshotshandlers.NewHandler(container.SnapshotRepo, log),
	}

	log.Info().Msg("Services initialized")
	return nil
}

// initialState loads the last snapshot, or builds defaults, then applies the
// configured metal prices and recomputes the totals. A snapshot that cannot
// be read is logged and replaced by defaults.
func initialState(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) domain.State {
	st, ok, err := container.SnapshotRepo.Load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load saved state, starting from defaults")
		ok = false
	}
	if ok {
		log.Info().
			Int("holdings", len(st.StockValues.ActiveStocks)).
			Str("currency", st.Currency).
			Msg("Restored saved state")
	} else {
		st = domain.NewDefaultState(cfg.DefaultCurrency, time.Now().UTC(), state.NewInvestmentID)
		log.Info().Str("currency", st.Currency).Msg("No saved state, starting from defaults")
	}

	if cfg.GoldPricePerGram > 0 || cfg.SilverPricePerGram > 0 {
		st.MetalPrices = domain.MetalPrices{
			Gold:     cfg.GoldPricePerGram,
			Silver:   cfg.SilverPricePerGram,
			Currency: st.EffectiveCurrency(),
		}
	}

	assets.SyncTotals(&st, container.AssetRegistry)
	return st
}
