package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMayflySearch_ReturnsCandidateInBounds(t *testing.T) {
	space, err := NewParameterSpace([]string{"x", "y"}, []float64{-50, 100}, []float64{50, 300})
	require.NoError(t, err)

	m, err := NewMayflySearch(MayflyConfig{Population: 10, Iterations: 20, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, AlgorithmMayfly, m.Algorithm())

	result, err := m.Search(context.Background(), space, distanceTo(10, 200))
	require.NoError(t, err)
	require.True(t, result.Found())

	assert.True(t, space.Contains(result.BestCandidate))
	assert.Positive(t, result.Evaluations)
	assert.LessOrEqual(t, result.BestScore, 0.0)
	assert.Equal(t, []string{"x", "y"}, result.Names)
}

func TestMayflySearch_SmallPopulation(t *testing.T) {
	space := testSpace2D(t)

	for _, population := range []int{2, 3, 4, 10} {
		m, err := NewMayflySearch(MayflyConfig{Population: population, Iterations: 5, Seed: 7})
		require.NoError(t, err)

		result, err := m.Search(context.Background(), space, distanceTo(1, 1))
		require.NoError(t, err, "population %d", population)
		require.True(t, result.Found(), "population %d", population)
		assert.True(t, space.Contains(result.BestCandidate), "population %d", population)
	}
}

func TestMayflySearch_CancelledBeforeStart(t *testing.T) {
	space := testSpace2D(t)
	m, err := NewMayflySearch(MayflyConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := m.Search(ctx, space, distanceTo(1, 1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, result.Found())
	assert.Zero(t, result.Evaluations)
}

func TestFromUnit(t *testing.T) {
	space, err := NewParameterSpace([]string{"a", "b"}, []float64{10, -1}, []float64{20, 1})
	require.NoError(t, err)

	assert.Equal(t, Candidate{15, -1}, fromUnit(space, []float64{0.5, 0}))
	assert.Equal(t, Candidate{20, 1}, fromUnit(space, []float64{1.7, 2}))
	assert.Equal(t, Candidate{10, -1}, fromUnit(space, nil))
}

func TestGenerateReport(t *testing.T) {
	space, err := NewParameterSpace([]string{"fast_ma_period", "slow_ma_period"}, []float64{1, 1}, []float64{100, 100})
	require.NoError(t, err)

	found := newResult(AlgorithmPSO)
	found.BestCandidate = Candidate{50, 20}
	found.BestScore = 12.5
	found.Evaluations = 10
	found.finish(space)

	missing := newResult(AlgorithmGA)
	missing.Err = ErrNoCandidate
	missing.finish(space)

	report := GenerateReport([]*RunResult{found, nil, missing})
	assert.Contains(t, report, "HYBRID OPTIMIZATION REPORT")
	assert.Contains(t, report, "PSO")
	assert.Contains(t, report, "fast_ma_period")
	assert.Contains(t, report, "12.5000 (backtest)")
	assert.Contains(t, report, "Best Score:       n/a")
	assert.Contains(t, report, ErrNoCandidate.Error())
}
