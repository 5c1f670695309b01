package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls   atomic.Int32
	active  atomic.Int32
	overlap atomic.Bool
	started chan struct{}
	release chan struct{} // when set, each run blocks until a value or close
	err     error
	failN   int32 // when positive, only the first failN runs return err
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{started: make(chan struct{}, 64)}
}

func (f *fakeRunner) RunOnce(ctx context.Context) (*RunReport, error) {
	if f.active.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.active.Add(-1)

	n := f.calls.Add(1)
	f.started <- struct{}{}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
	}
	if f.failN > 0 && n > f.failN {
		return &RunReport{}, nil
	}
	return &RunReport{}, f.err
}

func startScheduler(t *testing.T, s *Scheduler) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errCh
}

func waitStarted(t *testing.T, f *fakeRunner) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not start")
	}
}

func TestScheduler_RunOnStartAndInterval(t *testing.T) {
	runner := newFakeRunner()
	s := NewScheduler(runner, ScheduleConfig{
		Interval:     20 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		RunOnStart:   true,
	}, zerolog.Nop())

	startScheduler(t, s)

	assert.Eventually(t, func() bool { return runner.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, runner.overlap.Load())
}

func TestScheduler_NotDueBeforeInterval(t *testing.T) {
	runner := newFakeRunner()
	s := NewScheduler(runner, ScheduleConfig{
		Interval:     time.Hour,
		PollInterval: 5 * time.Millisecond,
	}, zerolog.Nop())

	startScheduler(t, s)

	assert.Never(t, func() bool { return runner.calls.Load() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestScheduler_TriggerWhileRunningIsSkipped(t *testing.T) {
	runner := newFakeRunner()
	runner.release = make(chan struct{})
	s := NewScheduler(runner, ScheduleConfig{
		Interval:     time.Hour,
		PollInterval: 5 * time.Millisecond,
	}, zerolog.Nop())

	startScheduler(t, s)

	require.True(t, s.Trigger())
	waitStarted(t, runner)

	// The second request reaches the actor while the first run is in flight
	s.Trigger()
	assert.Never(t, func() bool { return runner.calls.Load() > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	runner.release <- struct{}{}

	// Once idle, a new trigger starts a new run
	assert.Eventually(t, func() bool {
		s.Trigger()
		return runner.calls.Load() == 2
	}, 2*time.Second, 10*time.Millisecond)
	close(runner.release)
	assert.False(t, runner.overlap.Load())
}

func TestScheduler_BackoffAfterError(t *testing.T) {
	runner := newFakeRunner()
	runner.err = errors.New("bars unavailable")
	s := NewScheduler(runner, ScheduleConfig{
		Interval:     time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		Backoff:      time.Hour,
		RunOnStart:   true,
	}, zerolog.Nop())

	startScheduler(t, s)
	waitStarted(t, runner)

	assert.Never(t, func() bool { return runner.calls.Load() > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	// A manual trigger bypasses the backoff
	require.True(t, s.Trigger())
	waitStarted(t, runner)
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestScheduler_RetriesFailedRunAfterBackoff(t *testing.T) {
	runner := newFakeRunner()
	runner.err = errors.New("bars unavailable")
	runner.failN = 2
	s := NewScheduler(runner, ScheduleConfig{
		Interval:     time.Hour,
		PollInterval: 5 * time.Millisecond,
		Backoff:      30 * time.Millisecond,
		RunOnStart:   true,
	}, zerolog.Nop())

	startScheduler(t, s)
	waitStarted(t, runner)

	// Failed runs are retried after the backoff instead of the hour-long interval
	waitStarted(t, runner)
	waitStarted(t, runner)

	// The third run succeeds, so the interval applies again
	assert.Never(t, func() bool { return runner.calls.Load() > 3 }, 150*time.Millisecond, 10*time.Millisecond)
}

func TestScheduler_PausedSkipsTicks(t *testing.T) {
	runner := newFakeRunner()
	s := NewScheduler(runner, ScheduleConfig{
		Interval:     time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}, zerolog.Nop())
	s.Pause()
	assert.True(t, s.Paused())

	startScheduler(t, s)
	assert.Never(t, func() bool { return runner.calls.Load() > 0 }, 60*time.Millisecond, 10*time.Millisecond)

	s.Resume()
	assert.False(t, s.Paused())
	assert.Eventually(t, func() bool { return runner.calls.Load() > 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_StopWaitsForInFlightRun(t *testing.T) {
	runner := newFakeRunner()
	runner.release = make(chan struct{})
	s := NewScheduler(runner, ScheduleConfig{
		Interval:     time.Hour,
		PollInterval: 5 * time.Millisecond,
		RunOnStart:   true,
	}, zerolog.Nop())

	cancel, errCh := startScheduler(t, s)
	waitStarted(t, runner)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Zero(t, runner.active.Load())

	assert.Error(t, s.Run(context.Background()))
}

func TestScheduler_WithCoordinatorIsExclusive(t *testing.T) {
	bars := &staticBars{
		bars:    fewBars(10),
		release: make(chan struct{}),
		entered: make(chan struct{}),
	}
	applier := &recordingApplier{}
	c := newTestCoordinator(t, smallConfig(), Dependencies{
		Bounds:  &staticBounds{dims: strategyDims()},
		Bars:    bars,
		Applier: applier,
	})
	s := NewScheduler(c, ScheduleConfig{Interval: time.Hour, PollInterval: 5 * time.Millisecond}, zerolog.Nop())
	startScheduler(t, s)

	require.True(t, s.Trigger())
	<-bars.entered

	// Both a scheduler trigger and a direct call are refused while the run is in flight
	s.Trigger()
	_, err := c.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(bars.release)
	assert.Eventually(t, func() bool { return c.Status().Runs == 1 && !c.Running() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, applier.count())
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(newFakeRunner(), ScheduleConfig{}, zerolog.Nop())
	cfg := s.Config()
	assert.Equal(t, DefaultInterval, cfg.Interval)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultBackoff, cfg.Backoff)
}
