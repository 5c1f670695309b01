package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/creasty/defaults"
	"github.com/rs/zerolog/log"
)

// ErrNoCandidate is returned when every evaluation of a run failed
var ErrNoCandidate = errors.New("no candidate could be evaluated")

// ============================================================================
// PARTICLE SWARM CONFIGURATION
// ============================================================================

// InertiaSchedule decays linearly from Start to End over the run
type InertiaSchedule struct {
	Start float64 `default:"0.9" mapstructure:"start" json:"start"`
	End   float64 `default:"0.4" mapstructure:"end" json:"end"`
}

// At returns the inertia weight for iteration t of n
func (s InertiaSchedule) At(t, n int) float64 {
	if n <= 0 {
		return s.Start
	}
	return s.Start - (s.Start-s.End)*float64(t)/float64(n)
}

// PSOConfig configures the particle swarm search
type PSOConfig struct {
	Particles    int             `default:"50" mapstructure:"particles" json:"particles"`
	Iterations   int             `default:"100" mapstructure:"iterations" json:"iterations"`
	Inertia      InertiaSchedule `mapstructure:"inertia" json:"inertia"`
	Cognitive    float64         `default:"1.494" mapstructure:"cognitive" json:"cognitive"`       // c1
	Social       float64         `default:"1.494" mapstructure:"social" json:"social"`             // c2
	VelocityInit float64         `default:"0.1" mapstructure:"velocity_init" json:"velocity_init"` // fraction of span
	Seed         int64           `mapstructure:"seed" json:"seed"`                                 // 0 = time based

	// LegacySign reports the raw minimized cost (negated score) as BestScore
	LegacySign bool `mapstructure:"legacy_sign" json:"legacy_sign"`
}

// DefaultPSOConfig returns the documented defaults
func DefaultPSOConfig() PSOConfig {
	var cfg PSOConfig
	_ = defaults.Set(&cfg) // tags are static
	return cfg
}

// ============================================================================
// PARTICLE SWARM SEARCH
// ============================================================================

// Particle is one member of the swarm
type Particle struct {
	Position     Candidate
	Velocity     []float64
	BestPosition Candidate
	BestCost     float64
	Cost         float64
}

// ParticleSwarm minimizes cost = -score over a parameter space
type ParticleSwarm struct {
	cfg      PSOConfig
	observer Observer
}

// NewParticleSwarm fills unset fields with defaults and validates the configuration
func NewParticleSwarm(cfg PSOConfig) (*ParticleSwarm, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply PSO defaults: %w", err)
	}
	if cfg.Particles < 1 {
		return nil, fmt.Errorf("particles must be positive, got %d", cfg.Particles)
	}
	if cfg.Iterations < 0 {
		return nil, fmt.Errorf("iterations must not be negative, got %d", cfg.Iterations)
	}
	return &ParticleSwarm{cfg: cfg}, nil
}

// Config returns the effective configuration
func (p *ParticleSwarm) Config() PSOConfig {
	return p.cfg
}

// SetObserver installs a per-iteration observer
func (p *ParticleSwarm) SetObserver(o Observer) {
	p.observer = o
}

// Algorithm implements Searcher
func (p *ParticleSwarm) Algorithm() Algorithm {
	return AlgorithmPSO
}

// Search runs the fixed iteration budget. On cancellation the best-so-far result is
// returned together with the context error.
func (p *ParticleSwarm) Search(ctx context.Context, space *ParameterSpace, ev Evaluator) (*RunResult, error) {
	result := newResult(AlgorithmPSO)
	rng := newRand(p.cfg.Seed)
	dims := space.Dimensions()

	log.Debug().
		Int("particles", p.cfg.Particles).
		Int("iterations", p.cfg.Iterations).
		Int("dimensions", len(dims)).
		Msg("Starting particle swarm search")

	// A failed evaluation costs +Inf so it can never replace a best
	evaluate := func(c Candidate) (float64, bool) {
		result.Evaluations++
		e := SafeEvaluate(ev, c)
		if e.Failed() {
			result.Failures++
			log.Debug().Err(e.Err).Msg("Particle evaluation failed")
			return math.Inf(1), false
		}
		return -e.Score, e.Heuristic
	}

	var globalBest Candidate
	globalCost := math.Inf(1)
	globalHeuristic := false
	swarm := make([]*Particle, p.cfg.Particles)

	for i := range swarm {
		pos := make(Candidate, len(dims))
		vel := make([]float64, len(dims))
		for d, dim := range dims {
			pos[d] = dim.Min + rng.Float64()*dim.Span()
			vel[d] = (rng.Float64() - 0.5) * dim.Span() * p.cfg.VelocityInit
		}

		cost, heuristic := evaluate(pos)
		swarm[i] = &Particle{
			Position:     pos,
			Velocity:     vel,
			BestPosition: pos.Clone(),
			BestCost:     cost,
			Cost:         cost,
		}

		if cost < globalCost {
			globalCost = cost
			globalBest = pos.Clone()
			globalHeuristic = heuristic
		}
	}

	var runErr error
	for t := 0; t < p.cfg.Iterations; t++ {
		if err := cancelled(ctx); err != nil {
			runErr = err
			break
		}

		w := p.cfg.Inertia.At(t, p.cfg.Iterations)
		for _, particle := range swarm {
			for d, dim := range dims {
				r1 := rng.Float64()
				r2 := rng.Float64()

				social := 0.0
				if globalBest != nil {
					social = p.cfg.Social * r2 * (globalBest[d] - particle.Position[d])
				}
				particle.Velocity[d] = w*particle.Velocity[d] +
					p.cfg.Cognitive*r1*(particle.BestPosition[d]-particle.Position[d]) +
					social

				particle.Position[d] = dim.Clamp(particle.Position[d] + particle.Velocity[d])
			}

			cost, heuristic := evaluate(particle.Position)
			particle.Cost = cost

			if cost < particle.BestCost {
				particle.BestCost = cost
				particle.BestPosition = particle.Position.Clone()
			}
			if cost < globalCost {
				globalCost = cost
				globalBest = particle.Position.Clone()
				globalHeuristic = heuristic
			}
		}

		result.Iterations = t + 1
		best := p.reported(globalCost)
		result.History = append(result.History, best)

		if p.observer != nil {
			positions := make([]Candidate, len(swarm))
			for i, particle := range swarm {
				positions[i] = particle.Position
			}
			p.observer(Snapshot{Iteration: t + 1, Positions: positions, BestScore: best})
		}
	}

	result.BestCandidate = globalBest
	result.BestScore = p.reported(globalCost)
	result.Heuristic = globalHeuristic
	result.finish(space)

	if globalBest == nil {
		result.Err = ErrNoCandidate
		return result, ErrNoCandidate
	}
	result.Err = runErr

	log.Debug().
		Float64("best_score", result.BestScore).
		Int("evaluations", result.Evaluations).
		Int("failures", result.Failures).
		Dur("duration", result.Duration).
		Msg("Particle swarm search complete")

	return result, runErr
}

func (p *ParticleSwarm) reported(cost float64) float64 {
	if p.cfg.LegacySign {
		return cost
	}
	return -cost
}
