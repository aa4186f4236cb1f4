package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"closet-cast/internal/services"
	"closet-cast/pkg/logging"
)

// Runner runs one ingestion pass for the latest issuance
type Runner interface {
	RunLatest(ctx context.Context) (*services.IngestionResult, error)
}

// Scheduler triggers ingestion passes on a cron schedule
type Scheduler struct {
	scheduler  *gocron.Scheduler
	runner     Runner
	cron       string
	location   *time.Location
	jobTimeout time.Duration
	logger     *logging.StructuredLogger
	job        *gocron.Job
}

// New creates a scheduler that evaluates cron in loc.
// loc must be a named zone such as Asia/Seoul; fixed zones are rejected by Start.
func New(runner Runner, cron string, loc *time.Location, logger *logging.StructuredLogger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		scheduler:  gocron.NewScheduler(loc),
		runner:     runner,
		cron:       cron,
		location:   loc,
		jobTimeout: 2 * time.Minute,
		logger:     logger,
	}
}

// Start schedules the ingestion job and starts the underlying scheduler.
// A run still in progress when the next tick fires causes that tick to be skipped.
func (s *Scheduler) Start() error {
	if _, err := time.LoadLocation(s.location.String()); err != nil {
		return fmt.Errorf("scheduler location %q is not a loadable time zone: %w", s.location.String(), err)
	}

	job, err := s.scheduler.Cron(s.cron).SingletonMode().Do(s.run)
	if err != nil {
		return fmt.Errorf("failed to schedule ingestion with cron %q: %w", s.cron, err)
	}
	s.job = job

	s.scheduler.StartAsync()

	s.logger.Info(context.Background(), "[SCHEDULER_START] Ingestion scheduled", logging.Fields{
		"cron":     s.cron,
		"next_run": job.NextRun().Format(time.RFC3339),
	})
	return nil
}

// NextRun returns when the ingestion job fires next, or the zero time if not started
func (s *Scheduler) NextRun() time.Time {
	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}

// Stop stops the scheduler and cancels any future runs
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	s.logger.Debug(ctx, "[SCHEDULER_RUN] Running scheduled ingestion", logging.Fields{})

	result, err := s.runner.RunLatest(ctx)
	if err != nil {
		s.logger.Error(ctx, "[SCHEDULER_RUN_ERROR] Scheduled ingestion failed", logging.Fields{}, err)
		return
	}

	s.logger.Info(ctx, "[SCHEDULER_RUN] Scheduled ingestion finished", logging.Fields{
		"base_date":     result.BaseDate,
		"base_time":     result.BaseTime,
		"days_upserted": result.DaysUpserted,
		"malformed":     result.Malformed,
	})
}
