package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dispatch/internal/pkg/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type scheduled struct {
	job   Job
	every time.Duration
}

// JobManager coordinates all scheduled jobs of the process. A job never overlaps
// with itself: a tick arriving while the previous run is still going is skipped.
type JobManager struct {
	cron    *cron.Cron
	log     cronLogger
	metrics *metrics.CronJobMetrics
	logger  zerolog.Logger
	jobs    []scheduled

	root   context.Context
	cancel context.CancelFunc
}

// NewJobManager creates an empty manager. jobMetrics may be nil.
func NewJobManager(logger zerolog.Logger, jobMetrics *metrics.CronJobMetrics) *JobManager {
	logger = logger.With().Str("component", "jobs").Logger()
	log := cronLogger{logger: logger}
	root, cancel := context.WithCancel(context.Background())
	return &JobManager{
		cron:    cron.New(cron.WithSeconds(), cron.WithLogger(log), cron.WithChain(cron.Recover(log))),
		log:     log,
		metrics: jobMetrics,
		logger:  logger,
		root:    root,
		cancel:  cancel,
	}
}

// Register adds job to run every interval once StartAll is called.
func (m *JobManager) Register(job Job, every time.Duration) {
	if job == nil {
		return
	}
	m.jobs = append(m.jobs, scheduled{job: job, every: every})
}

// StartAll schedules every registered job and starts the scheduler.
// Returns an error if any job cannot be scheduled; nothing runs in that case.
func (m *JobManager) StartAll() error {
	for _, s := range m.jobs {
		if s.every <= 0 {
			return fmt.Errorf("job %s: interval must be positive", s.job.Name())
		}
		job := s.job
		run := cron.NewChain(cron.SkipIfStillRunning(m.log)).Then(cron.FuncJob(func() {
			m.run(m.root, job)
		}))
		if _, err := m.cron.AddJob(fmt.Sprintf("@every %s", s.every), run); err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", job.Name(), err)
		}
		m.logger.Info().Str("job", job.Name()).Dur("every", s.every).Msg("job scheduled")
	}

	m.cron.Start()
	return nil
}

// StopAll stops scheduling and waits for running jobs until ctx is done; jobs
// still running then see their context canceled.
func (m *JobManager) StopAll(ctx context.Context) error {
	defer m.cancel()
	done := m.cron.Stop()
	select {
	case <-done.Done():
		m.logger.Info().Msg("jobs stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

func (m *JobManager) run(ctx context.Context, job Job) {
	start := time.Now()
	err := job.Run(ctx)
	duration := time.Since(start)
	m.metrics.ObserveDuration(job.Name(), duration)

	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		m.metrics.IncFailure(job.Name())
		m.logger.Error().
			Err(err).
			Str("job", job.Name()).
			Int64("duration_ms", duration.Milliseconds()).
			Msg("job failed")
		return
	}
	m.metrics.IncSuccess(job.Name())
	m.logger.Debug().
		Str("job", job.Name()).
		Int64("duration_ms", duration.Milliseconds()).
		Msg("job completed")
}
