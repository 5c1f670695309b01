// Package coordinator runs the particle swarm and genetic searches side by side, merges
// their best candidates into the live strategy and drives the recurring schedule.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/hybridopt/internal/metrics"
	"github.com/ajitpratap0/hybridopt/pkg/backtest"
	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

// State is the coordinator state machine value
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateMergeApplied
	StateMergeFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateMergeApplied:
		return "merge_applied"
	case StateMergeFailed:
		return "merge_failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText renders the state name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config holds the per-run search settings
type Config struct {
	PSO          optimizer.PSOConfig
	GA           optimizer.GAConfig
	Mayfly       optimizer.MayflyConfig
	EnablePSO    bool
	EnableGA     bool
	EnableMayfly bool
	Evaluator    backtest.EvaluatorConfig
	MergePolicy  MergePolicy
	RunTimeout   time.Duration // 0 = no limit
}

// DefaultConfig enables PSO and GA with their documented defaults
func DefaultConfig() Config {
	return Config{
		PSO:         optimizer.DefaultPSOConfig(),
		GA:          optimizer.DefaultGAConfig(),
		EnablePSO:   true,
		EnableGA:    true,
		Evaluator:   backtest.DefaultEvaluatorConfig(),
		MergePolicy: DefaultMergePolicy,
	}
}

// Dependencies are the collaborators of a coordinator. Sink and Breakers are optional.
type Dependencies struct {
	Bounds   BoundsProvider
	Bars     BarsProvider
	Applier  ParameterApplier
	Sink     ResultSink
	Breakers *Breakers
}

// RunReport describes one completed hybrid run
type RunReport struct {
	ID        uuid.UUID              `json:"id"`
	StartedAt time.Time              `json:"started_at"`
	Duration  time.Duration          `json:"duration"`
	Policy    MergePolicy            `json:"merge_policy"`
	Outcome   State                  `json:"outcome"`
	Bars      int                    `json:"bars"`
	Heuristic bool                   `json:"heuristic"` // too few bars, candidates scored by the table
	Results   []*optimizer.RunResult `json:"results"`
	Applied   []optimizer.Algorithm  `json:"applied"`
	Errors    []error                `json:"-"`
	Messages  []string               `json:"errors,omitempty"`
}

// Err joins every phase error of the run
func (r *RunReport) Err() error {
	return errors.Join(r.Errors...)
}

// Result returns the result of one algorithm, or nil
func (r *RunReport) Result(alg optimizer.Algorithm) *optimizer.RunResult {
	for _, res := range r.Results {
		if res != nil && res.Algorithm == alg {
			return res
		}
	}
	return nil
}

func (r *RunReport) fail(err *SchedulingError) {
	r.Errors = append(r.Errors, err)
	r.Messages = append(r.Messages, err.Error())
	metrics.RecordError(string(err.Phase))
}

// Status is a point in time view of the coordinator
type Status struct {
	State         State       `json:"state"`
	Running       bool        `json:"running"`
	MergePolicy   MergePolicy `json:"merge_policy"`
	Algorithms    []string    `json:"algorithms"`
	LastCompleted time.Time   `json:"last_completed"`
	LastOutcome   State       `json:"last_outcome"`
	Runs          int64       `json:"runs"`
}

// Coordinator owns one hybrid run at a time
type Coordinator struct {
	cfg       Config
	searchers []optimizer.Searcher
	deps      Dependencies
	log       zerolog.Logger

	// running is the exclusivity flag, runMu serializes whole runs behind it
	running atomic.Bool
	runMu   sync.Mutex
	state   atomic.Int32
	runs    atomic.Int64

	mu            sync.RWMutex
	lastCompleted time.Time
	lastReport    *RunReport
}

// New validates the configuration and builds the enabled searchers
func New(cfg Config, deps Dependencies, log zerolog.Logger) (*Coordinator, error) {
	if deps.Bounds == nil || deps.Bars == nil || deps.Applier == nil {
		return nil, fmt.Errorf("bounds provider, bars provider and applier are required")
	}
	if deps.Breakers == nil {
		deps.Breakers = NewBreakers(DefaultBreakerSettings())
	}

	policy, err := ParseMergePolicy(string(cfg.MergePolicy))
	if err != nil {
		return nil, err
	}
	cfg.MergePolicy = policy
	if policy == MergeBestScore && cfg.PSO.LegacySign {
		return nil, fmt.Errorf("merge policy %q cannot compare legacy signed PSO scores", policy)
	}

	// Fail fast on unknown objectives rather than on the first run
	if _, err := backtest.LookupObjective(cfg.Evaluator.Objective); err != nil {
		return nil, err
	}
	if _, err := backtest.LookupObjective(cfg.GA.FitnessFunction); err != nil {
		return nil, err
	}

	var searchers []optimizer.Searcher
	if cfg.EnablePSO {
		pso, err := optimizer.NewParticleSwarm(cfg.PSO)
		if err != nil {
			return nil, fmt.Errorf("invalid PSO configuration: %w", err)
		}
		searchers = append(searchers, pso)
	}
	if cfg.EnableMayfly {
		mf, err := optimizer.NewMayflySearch(cfg.Mayfly)
		if err != nil {
			return nil, fmt.Errorf("invalid mayfly configuration: %w", err)
		}
		searchers = append(searchers, mf)
	}
	if cfg.EnableGA {
		ga, err := optimizer.NewGenetic(cfg.GA)
		if err != nil {
			return nil, fmt.Errorf("invalid GA configuration: %w", err)
		}
		searchers = append(searchers, ga)
	}
	if len(searchers) == 0 {
		return nil, fmt.Errorf("at least one search algorithm must be enabled")
	}

	return &Coordinator{
		cfg:       cfg,
		searchers: searchers,
		deps:      deps,
		log:       log.With().Str("component", "coordinator").Logger(),
	}, nil
}

// State returns the current state machine value
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Running reports whether a run is in flight
func (c *Coordinator) Running() bool {
	return c.running.Load()
}

// LastCompleted returns the completion time of the last run, zero before the first
func (c *Coordinator) LastCompleted() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastCompleted
}

// LastReport returns the report of the last completed run, or nil
func (c *Coordinator) LastReport() *RunReport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastReport
}

// Status returns a snapshot for the control API
func (c *Coordinator) Status() Status {
	algs := make([]string, len(c.searchers))
	for i, s := range c.searchers {
		algs[i] = string(s.Algorithm())
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	st := Status{
		State:         c.State(),
		Running:       c.Running(),
		MergePolicy:   c.cfg.MergePolicy,
		Algorithms:    algs,
		LastCompleted: c.lastCompleted,
		LastOutcome:   StateIdle,
		Runs:          c.runs.Load(),
	}
	if c.lastReport != nil {
		st.LastOutcome = c.lastReport.Outcome
	}
	return st
}

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
	metrics.SetCoordinatorState(int(s))
}

// RunOnce performs one hybrid run: fetch bounds and bars, search concurrently, merge
// under the configured policy and publish every result. It returns ErrRunInProgress
// without side effects when another run is in flight. Phase failures are collected in
// the report; the returned error joins them.
func (c *Coordinator) RunOnce(ctx context.Context) (report *RunReport, err error) {
	if !c.running.CompareAndSwap(false, true) {
		metrics.RecordSkippedTrigger(metrics.SkipReasonRunning)
		return nil, ErrRunInProgress
	}
	defer c.running.Store(false)

	c.runMu.Lock()
	defer c.runMu.Unlock()

	report = &RunReport{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		Policy:    c.cfg.MergePolicy,
		Outcome:   StateMergeFailed,
	}
	log := c.log.With().Str("run_id", report.ID.String()).Logger()

	c.setState(StateRunning)
	defer func() {
		if r := recover(); r != nil {
			report.fail(phaseError(PhaseSearch, "", fmt.Errorf("panic: %v", r)))
			report.Outcome = StateMergeFailed
			err = report.Err()
		}
		c.complete(report, log)
	}()

	if c.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RunTimeout)
		defer cancel()
	}

	log.Info().Str("merge_policy", string(report.Policy)).Msg("Starting hybrid optimization run")

	space, bars, prepErr := c.prepare(ctx)
	if prepErr != nil {
		report.fail(prepErr)
		return report, report.Err()
	}
	report.Bars = len(bars)
	metrics.BarsLoaded.Set(float64(len(bars)))

	report.Results = c.search(ctx, space, bars, report, log)
	for _, r := range report.Results {
		if r != nil && r.Heuristic {
			report.Heuristic = true
		}
	}

	// Cancellation between join and merge leaves the live strategy untouched
	if ctxErr := ctx.Err(); ctxErr != nil {
		report.fail(phaseError(PhaseApply, "", fmt.Errorf("merge skipped: %w", ctxErr)))
	} else {
		c.merge(ctx, space, report, log)
	}

	c.publish(ctx, report, log)
	return report, report.Err()
}

// prepare fetches the parameter space and the bar snapshot
func (c *Coordinator) prepare(ctx context.Context) (*optimizer.ParameterSpace, []backtest.Bar, *SchedulingError) {
	if err := ctx.Err(); err != nil {
		return nil, nil, phaseError(PhaseBounds, "", err)
	}

	dims, err := guarded(c.deps.Breakers.Strategy(), func() ([]optimizer.Dimension, error) {
		return c.deps.Bounds.Bounds(ctx)
	})
	if err != nil {
		return nil, nil, phaseError(PhaseBounds, "", fmt.Errorf("failed to fetch bounds: %w", err))
	}

	space, err := optimizer.NewParameterSpaceFromDimensions(dims)
	if err != nil {
		return nil, nil, phaseError(PhaseBounds, "", err)
	}

	bars, err := guarded(c.deps.Breakers.Market(), func() ([]backtest.Bar, error) {
		return c.deps.Bars.Bars(ctx)
	})
	if err != nil {
		return nil, nil, phaseError(PhaseBars, "", fmt.Errorf("failed to fetch bars: %w", err))
	}

	return space, bars, nil
}

// search runs every searcher concurrently and waits for all of them
func (c *Coordinator) search(ctx context.Context, space *optimizer.ParameterSpace, bars []backtest.Bar, report *RunReport, log zerolog.Logger) []*optimizer.RunResult {
	base, err := backtest.NewEvaluator(space, bars, c.cfg.Evaluator)
	if err != nil {
		report.fail(phaseError(PhaseSearch, "", err))
		return nil
	}
	gaEval, err := base.WithObjective(c.cfg.GA.FitnessFunction)
	if err != nil {
		report.fail(phaseError(PhaseSearch, optimizer.AlgorithmGA, err))
		return nil
	}
	if !base.Sufficient() {
		log.Warn().
			Int("bars", base.Bars()).
			Int("min_bars", c.cfg.Evaluator.MinBars).
			Msg("Insufficient bars, scoring candidates with the heuristic table")
	}

	results := make([]*optimizer.RunResult, len(c.searchers))
	errs := make([]error, len(c.searchers))

	var eg errgroup.Group
	for i, s := range c.searchers {
		ev := optimizer.Evaluator(base)
		if s.Algorithm() == optimizer.AlgorithmGA {
			ev = gaEval
		}
		eg.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()
			results[i], errs[i] = s.Search(ctx, space, ev)
			return nil
		})
	}
	_ = eg.Wait() // errors are kept per searcher

	for i, s := range c.searchers {
		alg := s.Algorithm()
		if errs[i] != nil {
			report.fail(phaseError(PhaseSearch, alg, errs[i]))
		}
		r := results[i]
		if r == nil {
			continue
		}
		metrics.RecordSearch(metrics.SearchSummary{
			Algorithm:       string(alg),
			BestScore:       r.BestScore,
			Found:           r.Found(),
			Heuristic:       r.Heuristic,
			Evaluations:     r.Evaluations,
			Failures:        r.Failures,
			DurationSeconds: r.Duration.Seconds(),
		})
		log.Info().
			Str("algorithm", string(alg)).
			Float64("best_score", r.BestScore).
			Int("iterations", r.Iterations).
			Int("evaluations", r.Evaluations).
			Int("failures", r.Failures).
			Bool("heuristic", r.Heuristic).
			Dur("duration", r.Duration).
			Msg("Search complete")
	}
	return results
}

// merge applies the planned candidates in order
func (c *Coordinator) merge(ctx context.Context, space *optimizer.ParameterSpace, report *RunReport, log zerolog.Logger) {
	plan := report.Policy.Plan(report.Results)
	if len(plan) == 0 {
		log.Warn().Msg("No candidate to apply")
		return
	}

	failed := false
	for _, r := range plan {
		_, err := guarded(c.deps.Breakers.Strategy(), func() (struct{}, error) {
			return struct{}{}, c.deps.Applier.Apply(ctx, space, r.BestCandidate)
		})
		if err != nil {
			failed = true
			report.fail(phaseError(PhaseApply, r.Algorithm, err))
			log.Error().Err(err).Str("algorithm", string(r.Algorithm)).Msg("Failed to apply candidate")
			continue
		}
		report.Applied = append(report.Applied, r.Algorithm)
		metrics.RecordMergeApplied(string(r.Algorithm))
		log.Info().
			Str("algorithm", string(r.Algorithm)).
			Interface("parameters", r.Parameters).
			Msg("Applied candidate to live strategy")
	}

	if !failed {
		report.Outcome = StateMergeApplied
	}
}

// publish hands every result to the sink; failures never abort the run
func (c *Coordinator) publish(ctx context.Context, report *RunReport, log zerolog.Logger) {
	if c.deps.Sink == nil {
		return
	}
	for _, r := range report.Results {
		if r == nil {
			continue
		}
		_, err := guarded(c.deps.Breakers.Sink(), func() (struct{}, error) {
			return struct{}{}, c.deps.Sink.Publish(ctx, r)
		})
		if err != nil {
			report.fail(phaseError(PhasePublish, r.Algorithm, err))
			log.Error().Err(err).Str("algorithm", string(r.Algorithm)).Msg("Failed to publish result")
		}
	}
}

func (c *Coordinator) complete(report *RunReport, log zerolog.Logger) {
	report.Duration = time.Since(report.StartedAt)

	c.mu.Lock()
	c.lastCompleted = time.Now()
	c.lastReport = report
	c.mu.Unlock()
	c.runs.Add(1)

	c.setState(report.Outcome)
	outcome := metrics.OutcomeApplied
	if report.Outcome != StateMergeApplied {
		outcome = metrics.OutcomeFailed
	}
	metrics.RecordRun(outcome, report.Duration.Seconds())

	evt := log.Info()
	if len(report.Errors) > 0 {
		evt = log.Error().Err(report.Err())
	}
	evt.
		Str("outcome", report.Outcome.String()).
		Strs("applied", algorithmNames(report.Applied)).
		Dur("duration", report.Duration).
		Msg("Hybrid optimization run complete")

	c.setState(StateIdle)
}

func algorithmNames(algs []optimizer.Algorithm) []string {
	names := make([]string, len(algs))
	for i, a := range algs {
		names[i] = string(a)
	}
	return names
}
