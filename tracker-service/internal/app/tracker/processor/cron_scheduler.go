package processor

import (
	"context"
	"errors"

	"pricetrack/pkg/logger"
	"pricetrack/tracker-service/internal/app/tracker/entity"
	"pricetrack/tracker-service/internal/app/tracker/service"

	"github.com/robfig/cron/v3"
)

type IngestRunnerInterface interface {
	Run(ctx context.Context) (*entity.RunReport, error)
}

// CronScheduler triggers ingestion runs on a fixed schedule, typically
// once a day.
type CronScheduler struct {
	cron      *cron.Cron
	ingestSvc IngestRunnerInterface
}

func NewCronScheduler(ingestSvc IngestRunnerInterface) *CronScheduler {
	return &CronScheduler{
		cron:      cron.New(),
		ingestSvc: ingestSvc,
	}
}

// Start registers the schedule and launches the cron loop. An overlapping
// trigger is skipped: the orchestrator refuses a second concurrent run.
func (s *CronScheduler) Start(ctx context.Context, schedule string) error {
	logger.Info().Str("schedule", schedule).Msg("starting cron scheduler")

	_, err := s.cron.AddFunc(schedule, func() {
		logger.Info().Msg("cron job triggered: starting ingestion run")

		report, err := s.ingestSvc.Run(ctx)
		if err != nil {
			if errors.Is(err, service.ErrRunInProgress) {
				logger.Warn().Msg("cron trigger skipped: previous run still active")
				return
			}
			logger.Error().Err(err).Msg("scheduled ingestion run failed")
			return
		}

		logger.Info().
			Str("run_id", report.RunID.String()).
			Int("observations", report.TotalObservations()).
			Msg("scheduled ingestion run completed")
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *CronScheduler) Stop() {
	logger.Info().Msg("stopping cron scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info().Msg("cron scheduler stopped")
}

func (s *CronScheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}
