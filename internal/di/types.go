/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server for access to handlers and jobs.
 */
package di

import (
	"github.com/MrAsimZahid/zakat-calculator/internal/clientdata"
	"github.com/MrAsimZahid/zakat-calculator/internal/clients/exchangerate"
	"github.com/MrAsimZahid/zakat-calculator/internal/clients/yahoo"
	"github.com/MrAsimZahid/zakat-calculator/internal/database"
	"github.com/MrAsimZahid/zakat-calculator/internal/events"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/assets"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/holdings"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/passive"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/prices"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/snapshots"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/zakat"
	"github.com/MrAsimZahid/zakat-calculator/internal/reliability"
	"github.com/MrAsimZahid/zakat-calculator/internal/scheduler"
	"github.com/MrAsimZahid/zakat-calculator/internal/server"
	"github.com/MrAsimZahid/zakat-calculator/internal/state"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: state (calculator snapshot + history) and client_data (API cache)
 * - Clients: quote source and currency converter
 * - Repositories: snapshot persistence and client data cache
 * - Services: state store, holdings, price pipeline, passive investments, zakat
 * - Scheduler: cron jobs for refresh, cleanup, maintenance and backups
 */
type Container struct {
	// Databases
	StateDB      *database.DB // Calculator state and its history
	ClientDataDB *database.DB // Cache for exchange rates and current prices

	// Repositories
	ClientDataRepo *clientdata.Repository
	SnapshotRepo   *snapshots.Repository

	// Clients
	PriceClient    *yahoo.Client
	CurrencyClient *exchangerate.Client

	// Core
	EventBus       *events.Bus
	EventManager   *events.Manager
	AssetRegistry  *assets.Registry
	StateStore     *state.Store
	Migrator       *passive.Migrator
	Holdings       *holdings.Registry
	PricePipeline  *prices.Pipeline
	PassiveManager *passive.Manager
	ZakatService   *zakat.Service

	// Reliability (BackupService is nil when backups are disabled)
	BackupService *reliability.BackupService

	// HTTP
	Handlers []server.RouteRegistrar

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the scheduled jobs so they can be triggered manually.
type JobInstances struct {
	PriceRefresh      scheduler.Job
	ClientDataCleanup scheduler.Job
	Maintenance       scheduler.Job
	Backup            scheduler.Job // nil when backups are disabled
}

// All returns the non-nil jobs.
func (j *JobInstances) All() []scheduler.Job {
	var out []scheduler.Job
	for _, job := range []scheduler.Job{j.PriceRefresh, j.ClientDataCleanup, j.Maintenance, j.Backup} {
		if job != nil {
			out = append(out, job)
		}
	}
	return out
}

// Databases returns the open databases keyed by name.
func (c *Container) Databases() map[string]*database.DB {
	out := map[string]*database.DB{}
	if c.StateDB != nil {
		out[c.StateDB.Name()] = c.StateDB
	}
	if c.ClientDataDB != nil {
		out[c.ClientDataDB.Name()] = c.ClientDataDB
	}
	return out
}

// Close closes every open database.
func (c *Container) Close() {
	for _, db := range c.Databases() {
		_ = db.Close()
	}
}
