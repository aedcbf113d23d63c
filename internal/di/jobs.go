// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/clientdata"
	"github.com/MrAsimZahid/zakat-calculator/internal/config"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/prices"
	"github.com/MrAsimZahid/zakat-calculator/internal/reliability"
	"github.com/MrAsimZahid/zakat-calculator/internal/scheduler"
	"github.com/rs/zerolog"
)

const (
	priceRefreshTimeout = 2 * time.Minute
	backupTimeout       = 5 * time.Minute
)

// RegisterJobs creates the background jobs and schedules them.
// Returns JobInstances for manual triggering via API.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	container.Scheduler = scheduler.New(log)
	instances := &JobInstances{}

	// ==========================================
	// Job 1: Price refresh
	// ==========================================
	instances.PriceRefresh = prices.NewRefreshJob(container.PricePipeline, priceRefreshTimeout, log)
	if err := container.Scheduler.AddJob(cfg.PriceRefreshSchedule, instances.PriceRefresh); err != nil {
		return nil, fmt.Errorf("failed to schedule price refresh: %w", err)
	}

	// ==========================================
	// Job 2: Client data cleanup
	// ==========================================
	instances.ClientDataCleanup = clientdata.NewCleanupJob(container.ClientDataRepo, log)
	if err := container.Scheduler.AddJob(cfg.ClientDataCleanupSchedule, instances.ClientDataCleanup); err != nil {
		return nil, fmt.Errorf("failed to schedule client data cleanup: %w", err)
	}

	// ==========================================
	// Job 3: Database maintenance
	// ==========================================
	instances.Maintenance = reliability.NewMaintenanceJob(container.Databases(), cfg.DataDir, log)
	if err := container.Scheduler.AddJob(cfg.MaintenanceSchedule, instances.Maintenance); err != nil {
		return nil, fmt.Errorf("failed to schedule database maintenance: %w", err)
	}

	// ==========================================
	// Job 4: State backup (optional)
	// ==========================================
	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, backupTimeout, log)
		if err := container.Scheduler.AddJob(cfg.Backup.Schedule, instances.Backup); err != nil {
			return nil, fmt.Errorf("failed to schedule state backup: %w", err)
		}
	}

	log.Info().Strs("jobs", container.Scheduler.JobNames()).Msg("Jobs registered")
	return instances, nil
}
