package prices

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RefreshJob refreshes holding prices on a schedule, in the state's current currency.
type RefreshJob struct {
	pipeline *Pipeline
	timeout  time.Duration
	log      zerolog.Logger
}

// NewRefreshJob creates a scheduled price refresh.
func NewRefreshJob(pipeline *Pipeline, timeout time.Duration, log zerolog.Logger) *RefreshJob {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &RefreshJob{
		pipeline: pipeline,
		timeout:  timeout,
		log:      log.With().Str("job", "price_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "price_refresh"
}

// Run executes the job
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.pipeline.Refresh(ctx, "", "")
	if err != nil {
		return err
	}
	if len(result.Missing) > 0 {
		j.log.Warn().Strs("missing", result.Missing).Msg("Some holdings were not priced")
	}
	return nil
}
