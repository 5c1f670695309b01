package optimizer

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/creasty/defaults"
	"github.com/cwbudde/mayfly"
	"github.com/rs/zerolog/log"
)

// MayflyConfig configures the optional mayfly search
type MayflyConfig struct {
	Population int   `default:"20" mapstructure:"population" json:"population"`
	Iterations int   `default:"100" mapstructure:"iterations" json:"iterations"`
	Seed       int64 `mapstructure:"seed" json:"seed"`
}

// MayflySearch wraps github.com/cwbudde/mayfly. The library only supports one scalar
// bound for all dimensions, so the search runs in the unit cube and candidates are
// mapped onto the real box before evaluation.
type MayflySearch struct {
	cfg MayflyConfig
}

// NewMayflySearch fills unset fields with defaults
func NewMayflySearch(cfg MayflyConfig) (*MayflySearch, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply mayfly defaults: %w", err)
	}
	if cfg.Population < 2 {
		return nil, fmt.Errorf("population must be at least 2, got %d", cfg.Population)
	}
	return &MayflySearch{cfg: cfg}, nil
}

// Algorithm implements Searcher
func (m *MayflySearch) Algorithm() Algorithm {
	return AlgorithmMayfly
}

// Search runs the mayfly optimizer to completion; cancellation is honored before the
// run and short-circuits remaining evaluations.
func (m *MayflySearch) Search(ctx context.Context, space *ParameterSpace, ev Evaluator) (*RunResult, error) {
	result := newResult(AlgorithmMayfly)
	if err := cancelled(ctx); err != nil {
		result.Err = err
		result.finish(space)
		return result, err
	}

	var (
		mu        sync.Mutex
		heuristic bool
		bestCost  = math.Inf(1)
	)

	objective := func(unit []float64) float64 {
		if ctx.Err() != nil {
			return math.Inf(1)
		}
		c := fromUnit(space, unit)
		e := SafeEvaluate(ev, c)

		mu.Lock()
		defer mu.Unlock()
		result.Evaluations++
		if e.Failed() {
			result.Failures++
			return math.Inf(1)
		}
		if -e.Score < bestCost {
			bestCost = -e.Score
			heuristic = e.Heuristic
		}
		return -e.Score
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = objective
	config.ProblemSize = space.Len()
	config.MaxIterations = m.cfg.Iterations
	// female and offspring counts default to 20 and must not exceed the male population
	config.NPop = m.cfg.Population
	config.NPopF = m.cfg.Population
	config.NC = m.cfg.Population
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = newRand(m.cfg.Seed)

	out, err := mayfly.Optimize(config)
	if err != nil {
		result.Err = fmt.Errorf("mayfly optimization failed: %w", err)
		result.finish(space)
		return result, result.Err
	}

	if math.IsInf(out.GlobalBest.Cost, 1) {
		result.BestScore = math.Inf(-1)
		result.Err = ErrNoCandidate
		result.finish(space)
		return result, ErrNoCandidate
	}

	result.Iterations = m.cfg.Iterations
	result.BestCandidate = fromUnit(space, out.GlobalBest.Position)
	result.BestScore = -out.GlobalBest.Cost
	result.Heuristic = heuristic
	result.Err = ctx.Err()
	result.finish(space)

	log.Debug().
		Float64("best_score", result.BestScore).
		Int("evaluations", result.Evaluations).
		Msg("Mayfly search complete")

	return result, result.Err
}

// fromUnit maps a point of the unit cube onto the space, clamped into bounds
func fromUnit(space *ParameterSpace, unit []float64) Candidate {
	c := make(Candidate, space.Len())
	for i := range c {
		d := space.Dimension(i)
		u := 0.0
		if i < len(unit) {
			u = unit[i]
		}
		c[i] = d.Clamp(d.Min + u*d.Span())
	}
	return c
}
