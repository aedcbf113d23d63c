// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/MrAsimZahid/zakat-calculator/internal/clientdata"
	"github.com/MrAsimZahid/zakat-calculator/internal/config"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/passive"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/snapshots"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories and the migrator the
// snapshot repository decodes with.
func InitializeRepositories(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.ClientDataRepo = clientdata.NewRepository(container.ClientDataDB.Conn())

	container.Migrator = passive.NewMigrator(log)
	container.SnapshotRepo = snapshots.NewRepository(
		container.StateDB.Conn(),
		container.Migrator,
		cfg.DefaultCurrency,
		log,
	)

	log.Info().Msg("Repositories initialized")
	return nil
}
