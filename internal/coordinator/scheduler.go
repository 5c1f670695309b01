package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/hybridopt/internal/metrics"
)

// Schedule defaults
const (
	DefaultInterval     = time.Hour
	DefaultPollInterval = time.Minute
	DefaultBackoff      = 5 * time.Minute
)

// ScheduleConfig controls the recurring runs
type ScheduleConfig struct {
	Interval     time.Duration `mapstructure:"interval"`      // minimum time between successful runs
	PollInterval time.Duration `mapstructure:"poll_interval"` // how often the actor checks
	Backoff      time.Duration `mapstructure:"backoff"`       // retry delay after a failed run
	RunOnStart   bool          `mapstructure:"run_on_start"`
}

// Runner performs one exclusive run
type Runner interface {
	RunOnce(ctx context.Context) (*RunReport, error)
}

type runDone struct {
	completedAt time.Time
	err         error
}

// Scheduler is a single actor goroutine receiving tick, trigger and completion
// messages. It owns the running flag and the last successful completion time; runs execute on
// their own goroutine so ticks keep being answered while a run is in flight.
type Scheduler struct {
	runner Runner
	cfg    ScheduleConfig
	log    zerolog.Logger

	triggers chan struct{}
	done     chan runDone
	now      func() time.Time
	skipLog  rate.Sometimes

	paused  atomic.Bool
	started atomic.Bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler; zero durations take defaults
func NewScheduler(runner Runner, cfg ScheduleConfig, log zerolog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}

	return &Scheduler{
		runner:   runner,
		cfg:      cfg,
		log:      log.With().Str("component", "scheduler").Logger(),
		triggers: make(chan struct{}, 1),
		done:     make(chan runDone, 1),
		now:      time.Now,
		skipLog:  rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

// Config returns the effective schedule
func (s *Scheduler) Config() ScheduleConfig {
	return s.cfg
}

// Trigger requests a run outside the regular cadence. It never blocks and returns
// false when a request is already pending.
func (s *Scheduler) Trigger() bool {
	select {
	case s.triggers <- struct{}{}:
		return true
	default:
		metrics.RecordSkippedTrigger(metrics.SkipReasonRunning)
		return false
	}
}

// Pause stops scheduled runs; manual triggers are still honored
func (s *Scheduler) Pause() {
	if !s.paused.Swap(true) {
		s.log.Info().Msg("Scheduler paused")
	}
}

// Resume restarts scheduled runs
func (s *Scheduler) Resume() {
	if s.paused.Swap(false) {
		s.log.Info().Msg("Scheduler resumed")
	}
}

// Paused reports whether scheduled runs are paused
func (s *Scheduler) Paused() bool {
	return s.paused.Load()
}

// Run is the actor loop. It returns only when ctx is cancelled, after the in-flight
// run (if any) has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("scheduler already running")
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var (
		running       bool
		lastCompleted time.Time
		notBefore     time.Time
	)
	if !s.cfg.RunOnStart {
		lastCompleted = s.now()
	}

	s.log.Info().
		Dur("interval", s.cfg.Interval).
		Dur("poll_interval", s.cfg.PollInterval).
		Dur("backoff", s.cfg.Backoff).
		Bool("run_on_start", s.cfg.RunOnStart).
		Msg("Starting scheduler")

	start := func(reason string) {
		running = true
		s.log.Info().Str("reason", reason).Msg("Starting scheduled optimization run")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_, err := s.runner.RunOnce(ctx)
			s.done <- runDone{completedAt: s.now(), err: err}
		}()
	}

	skip := func(reason string) {
		metrics.RecordSkippedTrigger(reason)
		s.skipLog.Do(func() {
			s.log.Info().Str("reason", reason).Msg("Skipping optimization trigger")
		})
	}

	if s.cfg.RunOnStart {
		start("startup")
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Scheduler stopping, waiting for in-flight run")
			s.wg.Wait()
			return ctx.Err()

		case <-ticker.C:
			now := s.now()
			switch {
			case running:
				skip(metrics.SkipReasonRunning)
			case s.paused.Load():
				// paused ticks are silent
			case now.Sub(lastCompleted) < s.cfg.Interval:
				// not due yet
			case now.Before(notBefore):
				skip(metrics.SkipReasonBackoff)
			default:
				start("interval")
			}

		case <-s.triggers:
			if running {
				skip(metrics.SkipReasonRunning)
				continue
			}
			start("manual")

		case d := <-s.done:
			running = false
			switch {
			case errors.Is(d.err, ErrRunInProgress):
				// another caller holds the coordinator; retry on the next tick
				skip(metrics.SkipReasonRunning)
			case d.err != nil:
				// a failure leaves the interval clock alone; the retry waits only for the backoff
				notBefore = d.completedAt.Add(s.cfg.Backoff)
				s.log.Error().
					Err(d.err).
					Time("retry_not_before", notBefore).
					Msg("Optimization run failed, backing off")
			default:
				lastCompleted = d.completedAt
				notBefore = time.Time{}
			}
		}
	}
}
