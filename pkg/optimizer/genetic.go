package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"github.com/creasty/defaults"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ============================================================================
// GENETIC CONFIGURATION
// ============================================================================

// GAConfig configures the genetic search. Rates are pointers so that an explicit
// zero survives defaulting; nil takes the default.
type GAConfig struct {
	Population     int      `default:"100" mapstructure:"population" json:"population"`
	Generations    int      `default:"100" mapstructure:"generations" json:"generations"`
	MutationRate   *float64 `default:"0.05" mapstructure:"mutation_rate" json:"mutation_rate"`
	CrossoverRate  *float64 `default:"0.8" mapstructure:"crossover_rate" json:"crossover_rate"`
	TournamentSize int      `default:"3" mapstructure:"tournament_size" json:"tournament_size"`
	Parallelism    int      `mapstructure:"parallelism" json:"parallelism"` // 0 = NumCPU
	Seed           int64    `mapstructure:"seed" json:"seed"`               // 0 = time based

	// FitnessFunction names the objective used to score simulated metrics
	FitnessFunction string `default:"composite" mapstructure:"fitness_function" json:"fitness_function"`
}

// Rate returns a pointer to v for the GAConfig rate fields
func Rate(v float64) *float64 {
	return &v
}

// DefaultGAConfig returns the documented defaults
func DefaultGAConfig() GAConfig {
	var cfg GAConfig
	_ = defaults.Set(&cfg) // tags are static
	cfg.Parallelism = runtime.NumCPU()
	return cfg
}

// ============================================================================
// GENETIC SEARCH
// ============================================================================

// Chromosome is one individual of the population
type Chromosome struct {
	Genes     Candidate
	Score     float64
	Failed    bool
	Heuristic bool
}

// Clone returns a deep copy
func (c *Chromosome) Clone() *Chromosome {
	return &Chromosome{Genes: c.Genes.Clone(), Score: c.Score, Failed: c.Failed, Heuristic: c.Heuristic}
}

// Genetic maximizes score with tournament selection, single point crossover and
// uniform mutation. The whole population is replaced every generation; the best
// individual ever seen is kept aside.
type Genetic struct {
	cfg      GAConfig
	observer Observer
}

// NewGenetic fills unset fields with defaults and validates the configuration
func NewGenetic(cfg GAConfig) (*Genetic, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply GA defaults: %w", err)
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = runtime.NumCPU()
	}
	if cfg.Population < 2 {
		return nil, fmt.Errorf("population must be at least 2, got %d", cfg.Population)
	}
	if cfg.Generations < 0 {
		return nil, fmt.Errorf("generations must not be negative, got %d", cfg.Generations)
	}
	if r := *cfg.MutationRate; r < 0 || r > 1 {
		return nil, fmt.Errorf("mutation rate must be in [0,1], got %g", r)
	}
	if r := *cfg.CrossoverRate; r < 0 || r > 1 {
		return nil, fmt.Errorf("crossover rate must be in [0,1], got %g", r)
	}
	if cfg.TournamentSize < 1 {
		return nil, fmt.Errorf("tournament size must be positive, got %d", cfg.TournamentSize)
	}
	return &Genetic{cfg: cfg}, nil
}

// Config returns the effective configuration
func (g *Genetic) Config() GAConfig {
	return g.cfg
}

// SetObserver installs a per-generation observer
func (g *Genetic) SetObserver(o Observer) {
	g.observer = o
}

// Algorithm implements Searcher
func (g *Genetic) Algorithm() Algorithm {
	return AlgorithmGA
}

// Search runs the fixed generation budget. On cancellation the best-ever result is
// returned together with the context error.
func (g *Genetic) Search(ctx context.Context, space *ParameterSpace, ev Evaluator) (*RunResult, error) {
	result := newResult(AlgorithmGA)
	rng := newRand(g.cfg.Seed)

	log.Debug().
		Int("population", g.cfg.Population).
		Int("generations", g.cfg.Generations).
		Float64("mutation_rate", *g.cfg.MutationRate).
		Float64("crossover_rate", *g.cfg.CrossoverRate).
		Msg("Starting genetic search")

	population := make([]*Chromosome, g.cfg.Population)
	for i := range population {
		population[i] = &Chromosome{Genes: space.Random(rng)}
	}
	g.evaluatePopulation(population, ev, result)

	var best *Chromosome
	best = g.updateBest(best, population)

	var runErr error
	for gen := 0; gen < g.cfg.Generations; gen++ {
		if err := cancelled(ctx); err != nil {
			runErr = err
			break
		}

		parents := make([]*Chromosome, len(population))
		for i := range parents {
			parents[i] = g.tournament(population, rng)
		}

		next := make([]*Chromosome, 0, len(population))
		for i := 0; i < len(parents); i += 2 {
			if i+1 >= len(parents) {
				next = append(next, &Chromosome{Genes: parents[i].Genes.Clone()})
				break
			}
			a, b := g.crossover(parents[i].Genes, parents[i+1].Genes, rng)
			next = append(next, &Chromosome{Genes: a}, &Chromosome{Genes: b})
		}

		for _, child := range next {
			g.mutate(child.Genes, space, rng)
		}

		population = next
		g.evaluatePopulation(population, ev, result)
		best = g.updateBest(best, population)

		result.Iterations = gen + 1
		bestScore := math.Inf(-1)
		if best != nil {
			bestScore = best.Score
		}
		result.History = append(result.History, bestScore)

		if g.observer != nil {
			positions := make([]Candidate, len(population))
			for i, c := range population {
				positions[i] = c.Genes
			}
			g.observer(Snapshot{Iteration: gen + 1, Positions: positions, BestScore: bestScore})
		}
	}

	if best == nil {
		result.BestScore = math.Inf(-1)
		result.finish(space)
		result.Err = ErrNoCandidate
		return result, ErrNoCandidate
	}

	result.BestCandidate = best.Genes.Clone()
	result.BestScore = best.Score
	result.Heuristic = best.Heuristic
	result.finish(space)
	result.Err = runErr

	log.Debug().
		Float64("best_score", result.BestScore).
		Int("evaluations", result.Evaluations).
		Int("failures", result.Failures).
		Dur("duration", result.Duration).
		Msg("Genetic search complete")

	return result, runErr
}

// evaluatePopulation scores every individual concurrently. Each goroutine writes only
// its own chromosome, so results do not depend on completion order.
func (g *Genetic) evaluatePopulation(population []*Chromosome, ev Evaluator, result *RunResult) {
	var eg errgroup.Group
	eg.SetLimit(g.cfg.Parallelism)

	for _, c := range population {
		eg.Go(func() error {
			e := SafeEvaluate(ev, c.Genes)
			if e.Failed() {
				c.Failed = true
				c.Score = math.Inf(-1)
				return nil
			}
			c.Score = e.Score
			c.Heuristic = e.Heuristic
			return nil
		})
	}
	_ = eg.Wait() // workers never return errors

	for _, c := range population {
		result.Evaluations++
		if c.Failed {
			result.Failures++
		}
	}
}

// updateBest returns the new best-ever chromosome; only strict improvements replace it
func (g *Genetic) updateBest(best *Chromosome, population []*Chromosome) *Chromosome {
	for _, c := range population {
		if c.Failed {
			continue
		}
		if best == nil || c.Score > best.Score {
			best = c.Clone()
		}
	}
	return best
}

// tournament picks the highest scoring of TournamentSize uniform samples
func (g *Genetic) tournament(population []*Chromosome, rng *rand.Rand) *Chromosome {
	best := population[rng.Intn(len(population))]
	for i := 1; i < g.cfg.TournamentSize; i++ {
		contestant := population[rng.Intn(len(population))]
		if contestant.Score > best.Score {
			best = contestant
		}
	}
	return best
}

// crossover applies single point crossover with probability CrossoverRate
func (g *Genetic) crossover(a, b Candidate, rng *rand.Rand) (Candidate, Candidate) {
	if len(a) < 2 || rng.Float64() >= *g.cfg.CrossoverRate {
		return a.Clone(), b.Clone()
	}

	point := 1 + rng.Intn(len(a)-1)
	childA := make(Candidate, len(a))
	childB := make(Candidate, len(b))
	copy(childA, a[:point])
	copy(childA[point:], b[point:])
	copy(childB, b[:point])
	copy(childB[point:], a[point:])
	return childA, childB
}

// mutate replaces each gene with probability MutationRate by a fresh uniform value
func (g *Genetic) mutate(genes Candidate, space *ParameterSpace, rng *rand.Rand) {
	for i := range genes {
		if rng.Float64() < *g.cfg.MutationRate {
			d := space.Dimension(i)
			genes[i] = d.Min + rng.Float64()*d.Span()
		}
	}
}
