package backtest

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

func makeBars(closes []float64) []Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func TestEvaluator_InsufficientBarsUsesHeuristic(t *testing.T) {
	space := fullSpace(t)
	ev, err := NewEvaluator(space, makeBars(syntheticCloses(10)), DefaultEvaluatorConfig())
	require.NoError(t, err)
	assert.False(t, ev.Sufficient())

	candidates := []optimizer.Candidate{
		{300, 80, 14, 75, 25, 0.5, 0.3},
		{5, 200, 40, 60, 45, 3, 2},
		{1000, 1, 55, 99, 2, 8, 9},
	}
	for _, c := range candidates {
		e := ev.Evaluate(c)
		require.False(t, e.Failed())
		assert.True(t, e.Heuristic)
		assert.Nil(t, e.Metrics)
		assert.Equal(t, HeuristicScore(space, c), e.Score)
	}
}

func TestEvaluator_SimulatesWithEnoughBars(t *testing.T) {
	space := fullSpace(t)
	ev, err := NewEvaluator(space, makeBars(syntheticCloses(250)), DefaultEvaluatorConfig())
	require.NoError(t, err)
	assert.True(t, ev.Sufficient())
	assert.Equal(t, 250, ev.Bars())
	assert.Equal(t, DefaultObjective, ev.Objective())

	c := optimizer.Candidate{10, 30, 14, 70, 30, 1.5, 0.2}
	e := ev.Evaluate(c)
	require.False(t, e.Failed())
	assert.False(t, e.Heuristic)

	metrics, ok := e.Metrics.(*Metrics)
	require.True(t, ok)
	assert.Positive(t, metrics.TotalTrades)
	assert.InDelta(t, CompositeScore(metrics), e.Score, 1e-12)

	// Same candidate, same snapshot, same score
	assert.Equal(t, e.Score, ev.Evaluate(c).Score)
}

func TestEvaluator_MalformedCandidateFails(t *testing.T) {
	space := fullSpace(t)
	ev, err := NewEvaluator(space, nil, EvaluatorConfig{})
	require.NoError(t, err)

	e := ev.Evaluate(optimizer.Candidate{1, 2})
	assert.True(t, e.Failed())
	assert.ErrorIs(t, e.Err, optimizer.ErrEvaluation)
}

func TestEvaluator_WithObjective(t *testing.T) {
	space := fullSpace(t)
	ev, err := NewEvaluator(space, makeBars(syntheticCloses(200)), DefaultEvaluatorConfig())
	require.NoError(t, err)

	sharpe, err := ev.WithObjective("sharpe")
	require.NoError(t, err)
	assert.Equal(t, "sharpe", sharpe.Objective())
	assert.Equal(t, DefaultObjective, ev.Objective())

	c := optimizer.Candidate{10, 30, 14, 70, 30, 1.5, 0.2}
	e := sharpe.Evaluate(c)
	require.False(t, e.Failed())
	assert.InDelta(t, e.Metrics.(*Metrics).SharpeRatio, e.Score, 1e-12)

	_, err = ev.WithObjective("moon")
	assert.Error(t, err)

	_, err = NewEvaluator(space, nil, EvaluatorConfig{Objective: "moon"})
	assert.Error(t, err)
}

func TestEvaluator_ConcurrentUse(t *testing.T) {
	space := fullSpace(t)
	ev, err := NewEvaluator(space, makeBars(syntheticCloses(300)), DefaultEvaluatorConfig())
	require.NoError(t, err)

	c := optimizer.Candidate{12, 40, 14, 70, 30, 1, 0.25}
	want := ev.Evaluate(c).Score

	var wg sync.WaitGroup
	scores := make([]float64, 16)
	for i := range scores {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scores[i] = ev.Evaluate(c).Score
		}()
	}
	wg.Wait()

	for _, s := range scores {
		assert.Equal(t, want, s)
	}
}

func TestDecodeSimulationParams(t *testing.T) {
	space := fullSpace(t)

	p := DecodeSimulationParams(space, optimizer.Candidate{10.6, 29.4, 14, 70, 30, 1.5, 0.2})
	assert.Equal(t, SimulationParams{FastPeriod: 11, SlowPeriod: 29, TriggerPct: 0.2, TakeProfitPct: 1.5}, p)

	other, err := optimizer.NewParameterSpace([]string{"x"}, []float64{0}, []float64{1})
	require.NoError(t, err)
	assert.Equal(t, SimulationParams{}, DecodeSimulationParams(other, optimizer.Candidate{0.5}))
}

// ============================================================================
// OBJECTIVES
// ============================================================================

func TestLookupObjective(t *testing.T) {
	fn, err := LookupObjective("")
	require.NoError(t, err)
	m := &Metrics{TotalTrades: 10, WinRate: 0.6, ProfitFactor: 2, InitialBalance: 10000, NetProfit: 500}
	assert.Equal(t, CompositeScore(m), fn(m))

	for _, name := range ObjectiveNames() {
		_, err := LookupObjective(name)
		assert.NoError(t, err, name)
	}

	_, err = LookupObjective("unknown")
	assert.Error(t, err)
}

func TestCompositeScore_PrefersBetterMetrics(t *testing.T) {
	good := &Metrics{
		TotalTrades: 40, WinRate: 0.6, ProfitFactor: 2, SharpeRatio: 1.5,
		InitialBalance: 10000, NetProfit: 1500, RecoveryFactor: 3, MaxDrawdownPct: 5,
	}
	bad := &Metrics{
		TotalTrades: 40, WinRate: 0.3, ProfitFactor: 0.6, SharpeRatio: -1,
		InitialBalance: 10000, NetProfit: -2500, RecoveryFactor: -1, MaxDrawdownPct: 30,
	}

	assert.Greater(t, CompositeScore(good), CompositeScore(bad))
	assert.False(t, math.IsNaN(CompositeScore(&Metrics{})))
}

func TestMinimizeDrawdown(t *testing.T) {
	assert.Greater(t, MinimizeDrawdown(&Metrics{MaxDrawdownPct: 2}), MinimizeDrawdown(&Metrics{MaxDrawdownPct: 10}))
}
