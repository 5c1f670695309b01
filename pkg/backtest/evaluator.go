package backtest

import (
	"fmt"
	"math"

	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

// DefaultMinBars is the bar count below which the heuristic table replaces simulation
const DefaultMinBars = 100

// EvaluatorConfig holds fixed evaluator settings
type EvaluatorConfig struct {
	MinBars          int     `mapstructure:"min_bars"`
	InitialBalance   float64 `mapstructure:"initial_balance"`
	PositionFraction float64 `mapstructure:"position_fraction"`
	Objective        string  `mapstructure:"objective"`
}

// DefaultEvaluatorConfig returns the documented defaults
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		MinBars:          DefaultMinBars,
		InitialBalance:   DefaultInitialBalance,
		PositionFraction: DefaultPositionFraction,
		Objective:        DefaultObjective,
	}
}

// Evaluator scores candidates of one parameter space against a fixed bar snapshot.
// It is immutable after construction and safe for concurrent use.
type Evaluator struct {
	space     *optimizer.ParameterSpace
	closes    []float64
	config    EvaluatorConfig
	objective ObjectiveFunction
}

// NewEvaluator copies the close prices of bars and binds the configured objective
func NewEvaluator(space *optimizer.ParameterSpace, bars []Bar, cfg EvaluatorConfig) (*Evaluator, error) {
	if space == nil {
		return nil, fmt.Errorf("parameter space is required")
	}
	if cfg.MinBars <= 0 {
		cfg.MinBars = DefaultMinBars
	}
	if cfg.InitialBalance <= 0 {
		cfg.InitialBalance = DefaultInitialBalance
	}
	if cfg.PositionFraction <= 0 {
		cfg.PositionFraction = DefaultPositionFraction
	}

	objective, err := LookupObjective(cfg.Objective)
	if err != nil {
		return nil, err
	}
	if cfg.Objective == "" {
		cfg.Objective = DefaultObjective
	}

	return &Evaluator{
		space:     space,
		closes:    Closes(bars),
		config:    cfg,
		objective: objective,
	}, nil
}

// WithObjective returns an evaluator sharing the same bar snapshot but scoring with
// another named objective
func (e *Evaluator) WithObjective(name string) (*Evaluator, error) {
	objective, err := LookupObjective(name)
	if err != nil {
		return nil, err
	}
	clone := *e
	clone.objective = objective
	clone.config.Objective = name
	if name == "" {
		clone.config.Objective = DefaultObjective
	}
	return &clone, nil
}

// Objective returns the name of the bound objective
func (e *Evaluator) Objective() string {
	return e.config.Objective
}

// Sufficient reports whether the snapshot is long enough to simulate
func (e *Evaluator) Sufficient() bool {
	return len(e.closes) >= e.config.MinBars
}

// Bars returns the snapshot length
func (e *Evaluator) Bars() int {
	return len(e.closes)
}

// Evaluate implements optimizer.Evaluator. With fewer than MinBars bars it returns the
// heuristic table score and no metrics.
func (e *Evaluator) Evaluate(c optimizer.Candidate) (out optimizer.Evaluation) {
	defer func() {
		if r := recover(); r != nil {
			out = optimizer.Failure("panic during simulation", fmt.Errorf("%v", r))
		}
	}()

	if err := e.space.Validate(c); err != nil {
		return optimizer.Failure("malformed candidate", err)
	}

	if !e.Sufficient() {
		return optimizer.Evaluation{Score: HeuristicScore(e.space, c), Heuristic: true}
	}

	metrics := e.Simulate(c)
	score := e.objective(metrics)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return optimizer.Failure("non-finite score", fmt.Errorf("%s", metrics))
	}
	return optimizer.Evaluation{Score: score, Metrics: metrics}
}

// Simulate runs the deterministic pass for c regardless of the bar threshold
func (e *Evaluator) Simulate(c optimizer.Candidate) *Metrics {
	return Simulate(e.closes, DecodeSimulationParams(e.space, c), SimulationConfig{
		InitialBalance:   e.config.InitialBalance,
		PositionFraction: e.config.PositionFraction,
	})
}

// DecodeSimulationParams extracts simulator inputs from the named dimensions of c
func DecodeSimulationParams(space *optimizer.ParameterSpace, c optimizer.Candidate) SimulationParams {
	fields := c.Decode(space)
	var p SimulationParams
	if v, ok := fields[ParamFastPeriod]; ok {
		p.FastPeriod = int(math.Round(v))
	}
	if v, ok := fields[ParamSlowPeriod]; ok {
		p.SlowPeriod = int(math.Round(v))
	}
	if v, ok := fields[ParamDistance]; ok {
		p.TriggerPct = v
	}
	if v, ok := fields[ParamMinProfit]; ok {
		p.TakeProfitPct = v
	}
	return p
}
