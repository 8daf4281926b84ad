package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	service     *Service
	serviceOnce sync.Once
	serviceErr  error
)

var (
	ErrNotInitialized = errors.New("scheduler not initialized")
	ErrEmptyJobName   = errors.New("job name is required")
	ErrEmptyCronExpr  = errors.New("cron expression is required")
	ErrNilTask        = errors.New("job task is required")
)

const defaultJobTimeout = 5 * time.Minute

// Task is one run of a scheduled job. ctx carries the job logger and is
// cancelled when the job timeout elapses or the scheduler stops.
type Task func(ctx context.Context) error

// Service wraps a gocron scheduler for app-wide scheduling.
type Service struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
	stopErr   error
}

// New builds a scheduler outside the singleton, mainly for tests.
func New() (*Service, error) {
	sched, err := gocron.NewScheduler(
		gocron.WithGlobalJobOptions(
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					log.Error().
						Str("job_id", jobID.String()).
						Str("job_name", jobName).
						Interface("panic", recoverData).
						Msg("Scheduler job panicked")
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

// Init initializes the scheduler singleton.
func Init() error {
	serviceOnce.Do(func() {
		service, serviceErr = New()
		if serviceErr == nil {
			log.Info().Msg("Scheduler initialized")
		}
	})
	return serviceErr
}

// ServiceInstance returns the initialized scheduler singleton.
func ServiceInstance() (*Service, error) {
	if service == nil && serviceErr == nil {
		return nil, ErrNotInitialized
	}
	return service, serviceErr
}

// Start begins running scheduled jobs on the singleton scheduler.
func Start() error {
	svc, err := ServiceInstance()
	if err != nil {
		return err
	}
	svc.Start()
	return nil
}

// Stop shuts down the singleton scheduler.
func Stop() error {
	svc, err := ServiceInstance()
	if err != nil {
		return err
	}
	return svc.Stop()
}

// AddJob registers a cron-based job with the singleton scheduler.
func AddJob(name, cronExpr string, timeout time.Duration, task Task) (gocron.Job, error) {
	svc, err := ServiceInstance()
	if err != nil {
		return nil, err
	}
	return svc.AddJob(name, cronExpr, timeout, task)
}

// Start begins running scheduled jobs.
func (s *Service) Start() {
	if s == nil {
		log.Error().Msg("Scheduler start requested before initialization")
		return
	}
	log.Info().Msg("Scheduler starting")
	s.scheduler.Start()
}

// Stop cancels running jobs and shuts the scheduler down.
func (s *Service) Stop() error {
	if s == nil {
		return ErrNotInitialized
	}
	s.stopOnce.Do(func() {
		log.Info().Msg("Scheduler stopping")
		s.cancel()
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}

// Jobs lists the registered jobs.
func (s *Service) Jobs() []gocron.Job {
	if s == nil {
		return nil
	}
	return s.scheduler.Jobs()
}

// AddJob registers a cron-based job. A timeout of zero uses the default.
// A second run never overlaps one still in progress.
func (s *Service) AddJob(name, cronExpr string, timeout time.Duration, task Task) (gocron.Job, error) {
	if s == nil {
		return nil, ErrNotInitialized
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyJobName
	}
	if strings.TrimSpace(cronExpr) == "" {
		return nil, ErrEmptyCronExpr
	}
	if task == nil {
		return nil, ErrNilTask
	}
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	jobLogger := log.With().Str("job_name", name).Str("cron", cronExpr).Logger()
	jobLogger.Info().Msg("Registering scheduler job")

	wrappedTask := func() {
		ctx, cancel := context.WithTimeout(s.ctx, timeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		start := time.Now()
		jobLogger.Debug().Msg("Scheduler job started")
		if err := task(ctx); err != nil {
			jobLogger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Scheduler job failed")
			return
		}
		jobLogger.Debug().Dur("duration", time.Since(start)).Msg("Scheduler job completed")
	}

	job, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(wrappedTask),
		gocron.WithName(name),
	)
	if err != nil {
		jobLogger.Error().Err(err).Msg("Failed to register scheduler job")
		return nil, err
	}
	jobLogger.Info().Msg("Scheduler job registered")
	return job, nil
}
