package clientdata

import (
	"github.com/rs/zerolog"
)

// CleanupJob purges expired quotes and exchange rates from client_data.db.
// Stale rows are only useful as a fallback until their replacement is fetched,
// so anything past its expiry at run time is dropped.
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
}

// NewCleanupJob creates the client data cleanup job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "client_data_cleanup").Logger(),
	}
}

// Run deletes expired rows in every cache table.
func (j *CleanupJob) Run() error {
	results, err := j.repo.DeleteAllExpired()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to purge expired cache entries")
		return err
	}

	counts := zerolog.Dict()
	var total int64
	for _, table := range AllTables {
		counts.Int64(table, results[table])
		total += results[table]
	}

	ev := j.log.Debug()
	if total > 0 {
		ev = j.log.Info()
	}
	ev.Dict("deleted", counts).Int64("total", total).Msg("Cache cleanup finished")
	return nil
}

// Name returns the scheduler job name.
func (j *CleanupJob) Name() string {
	return "client_data_cleanup"
}
