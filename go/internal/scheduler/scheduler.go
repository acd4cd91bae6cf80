// Package scheduler wraps gocron for the periodic background jobs of a tracker host.
package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyJobName    = errors.New("job name is required")
	ErrInvalidInterval = errors.New("job interval must be positive")
)

// Service runs named interval jobs.
type Service struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
	stopErr   error
}

// New creates a scheduler driven by clock.
func New(clock clockwork.Clock) (*Service, error) {
	sched, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithGlobalJobOptions(
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					log.Error().
						Str("job_id", jobID.String()).
						Str("job_name", jobName).
						Interface("panic", recoverData).
						Msg("scheduler job panicked")
				}),
			),
		),
	)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{scheduler: sched, ctx: ctx, cancel: cancel}, nil
}

// Start begins running registered jobs.
func (s *Service) Start() {
	log.Info().Int("jobs", len(s.scheduler.Jobs())).Msg("scheduler starting")
	s.scheduler.Start()
}

// Stop cancels in-flight jobs and shuts the scheduler down.
func (s *Service) Stop() error {
	s.stopOnce.Do(func() {
		log.Info().Msg("scheduler stopping")
		s.cancel()
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}

// AddIntervalJob registers task to run every interval, bounded by timeout per run. When
// immediate is set the first run happens at Start instead of one interval later.
func (s *Service) AddIntervalJob(name string, interval, timeout time.Duration, immediate bool, task func(ctx context.Context)) (gocron.Job, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyJobName
	}
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	jobLogger := log.With().Str("job_name", name).Dur("interval", interval).Logger()

	wrapped := func() {
		ctx := s.ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		jobLogger.Debug().Msg("scheduler job started")
		task(jobLogger.WithContext(ctx))
		jobLogger.Debug().Msg("scheduler job completed")
	}

	opts := []gocron.JobOption{gocron.WithName(name)}
	if immediate {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}
	job, err := s.scheduler.NewJob(gocron.DurationJob(interval), gocron.NewTask(wrapped), opts...)
	if err != nil {
		jobLogger.Error().Err(err).Msg("failed to register scheduler job")
		return nil, err
	}
	jobLogger.Info().Msg("scheduler job registered")
	return job, nil
}
