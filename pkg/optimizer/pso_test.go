package optimizer

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpace2D(t *testing.T) *ParameterSpace {
	t.Helper()
	space, err := NewParameterSpace([]string{"x", "y"}, []float64{0, 0}, []float64{10, 10})
	require.NoError(t, err)
	return space
}

// distanceTo scores candidates by negative euclidean distance to target
func distanceTo(target ...float64) Evaluator {
	return EvaluatorFunc(func(c Candidate) float64 {
		sum := 0.0
		for i, v := range c {
			d := v - target[i]
			sum += d * d
		}
		return -math.Sqrt(sum)
	})
}

// ============================================================================
// CONVERGENCE
// ============================================================================

func TestParticleSwarm_ConvergesOnDistanceObjective(t *testing.T) {
	space := testSpace2D(t)
	pso, err := NewParticleSwarm(PSOConfig{Particles: 50, Iterations: 100, Seed: 42})
	require.NoError(t, err)

	result, err := pso.Search(context.Background(), space, distanceTo(7, 3))
	require.NoError(t, err)
	require.True(t, result.Found())

	dist := math.Hypot(result.BestCandidate[0]-7, result.BestCandidate[1]-3)
	assert.Less(t, dist, 0.5)
	assert.InDelta(t, -dist, result.BestScore, 1e-9)
	assert.Equal(t, AlgorithmPSO, result.Algorithm)
	assert.Equal(t, 100, result.Iterations)
	assert.Equal(t, 50*101, result.Evaluations)
	assert.Equal(t, 0, result.Failures)
	assert.Equal(t, []string{"x", "y"}, result.Names)
	assert.InDelta(t, result.BestCandidate[0], result.Parameters["x"], 1e-12)
	assert.Len(t, result.History, 100)
}

func TestParticleSwarm_HistoryIsMonotonic(t *testing.T) {
	space := testSpace2D(t)
	pso, err := NewParticleSwarm(PSOConfig{Particles: 20, Iterations: 40, Seed: 3})
	require.NoError(t, err)

	result, err := pso.Search(context.Background(), space, distanceTo(2, 8))
	require.NoError(t, err)

	for i := 1; i < len(result.History); i++ {
		assert.GreaterOrEqual(t, result.History[i], result.History[i-1])
	}
}

func TestParticleSwarm_PositionsStayInBounds(t *testing.T) {
	space := testSpace2D(t)
	pso, err := NewParticleSwarm(PSOConfig{Particles: 30, Iterations: 50, Seed: 11, Cognitive: 3, Social: 3})
	require.NoError(t, err)

	violations := 0
	pso.SetObserver(func(s Snapshot) {
		for _, p := range s.Positions {
			if !space.Contains(p) {
				violations++
			}
		}
	})

	// Target on the corner pushes particles against the bounds
	_, err = pso.Search(context.Background(), space, distanceTo(10, 0))
	require.NoError(t, err)
	assert.Zero(t, violations)
}

func TestParticleSwarm_DeterministicWithSeed(t *testing.T) {
	space := testSpace2D(t)
	run := func() *RunResult {
		pso, err := NewParticleSwarm(PSOConfig{Particles: 15, Iterations: 25, Seed: 99})
		require.NoError(t, err)
		result, err := pso.Search(context.Background(), space, distanceTo(5, 5))
		require.NoError(t, err)
		return result
	}

	a, b := run(), run()
	assert.Equal(t, a.BestCandidate, b.BestCandidate)
	assert.Equal(t, a.BestScore, b.BestScore)
	assert.Equal(t, a.History, b.History)
}

// ============================================================================
// FAILURES AND SIGN
// ============================================================================

func TestParticleSwarm_FailedEvaluationsNeverWin(t *testing.T) {
	space := testSpace2D(t)
	pso, err := NewParticleSwarm(PSOConfig{Particles: 20, Iterations: 30, Seed: 5})
	require.NoError(t, err)

	// The true optimum lies in a region where evaluation always fails
	ev := evaluatorFunc(func(c Candidate) Evaluation {
		if c[0] > 5 {
			return Failure("unsupported region", errors.New("no data"))
		}
		return Scored(-math.Hypot(c[0]-9, c[1]-9))
	})

	result, err := pso.Search(context.Background(), space, ev)
	require.NoError(t, err)
	assert.Greater(t, result.Failures, 0)
	assert.LessOrEqual(t, result.BestCandidate[0], 5.0)
	assert.False(t, math.IsInf(result.BestScore, 0))
}

func TestParticleSwarm_AllEvaluationsFail(t *testing.T) {
	space := testSpace2D(t)
	pso, err := NewParticleSwarm(PSOConfig{Particles: 5, Iterations: 3, Seed: 1})
	require.NoError(t, err)

	ev := evaluatorFunc(func(Candidate) Evaluation {
		return Failure("always", errors.New("broken"))
	})

	result, err := pso.Search(context.Background(), space, ev)
	assert.ErrorIs(t, err, ErrNoCandidate)
	assert.False(t, result.Found())
	assert.Equal(t, result.Evaluations, result.Failures)
}

func TestParticleSwarm_LegacySignReportsCost(t *testing.T) {
	space := testSpace2D(t)
	pso, err := NewParticleSwarm(PSOConfig{Particles: 10, Iterations: 10, Seed: 8, LegacySign: true})
	require.NoError(t, err)

	result, err := pso.Search(context.Background(), space, distanceTo(1, 1))
	require.NoError(t, err)

	dist := math.Hypot(result.BestCandidate[0]-1, result.BestCandidate[1]-1)
	assert.InDelta(t, dist, result.BestScore, 1e-9)
}

func TestParticleSwarm_CancellationReturnsBestSoFar(t *testing.T) {
	space := testSpace2D(t)
	pso, err := NewParticleSwarm(PSOConfig{Particles: 10, Iterations: 1000, Seed: 4})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int64
	ev := EvaluatorFunc(func(c Candidate) float64 {
		if calls.Add(1) == 50 {
			cancel()
		}
		return -math.Hypot(c[0]-5, c[1]-5)
	})

	result, err := pso.Search(ctx, space, ev)
	assert.ErrorIs(t, err, context.Canceled)
	require.True(t, result.Found())
	assert.Less(t, result.Iterations, 1000)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestNewParticleSwarm_Defaults(t *testing.T) {
	pso, err := NewParticleSwarm(PSOConfig{})
	require.NoError(t, err)

	cfg := pso.Config()
	assert.Equal(t, DefaultPSOConfig(), cfg)
	assert.Equal(t, 50, cfg.Particles)
	assert.Equal(t, 100, cfg.Iterations)
	assert.Equal(t, 0.9, cfg.Inertia.Start)
	assert.Equal(t, 0.4, cfg.Inertia.End)
	assert.Equal(t, 1.494, cfg.Cognitive)
	assert.Equal(t, 1.494, cfg.Social)

	_, err = NewParticleSwarm(PSOConfig{Iterations: -1})
	assert.Error(t, err)
}

func TestInertiaSchedule_At(t *testing.T) {
	s := InertiaSchedule{Start: 0.9, End: 0.4}
	assert.InDelta(t, 0.9, s.At(0, 100), 1e-12)
	assert.InDelta(t, 0.65, s.At(50, 100), 1e-12)
	assert.InDelta(t, 0.9, s.At(3, 0), 1e-12)
}

type evaluatorFunc func(Candidate) Evaluation

func (f evaluatorFunc) Evaluate(c Candidate) Evaluation { return f(c) }
