package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

func fullSpace(t *testing.T) *optimizer.ParameterSpace {
	t.Helper()
	space, err := optimizer.NewParameterSpace(
		[]string{ParamFastPeriod, ParamSlowPeriod, ParamRSIPeriod, ParamOverbought, ParamOversold, ParamMinProfit, ParamDistance},
		[]float64{1, 1, 1, 50, 1, 0.01, 0.01},
		[]float64{1000, 500, 60, 100, 50, 10, 10},
	)
	require.NoError(t, err)
	return space
}

func TestHeuristicScore_PlausibleCandidate(t *testing.T) {
	space := fullSpace(t)
	c := optimizer.Candidate{300, 80, 14, 75, 25, 0.5, 0.3}

	score := HeuristicScore(space, c)
	assert.Greater(t, score, HeuristicBonusFloor)
	assert.Equal(t, 85.0, score)
}

func TestHeuristicScore_Penalties(t *testing.T) {
	space := fullSpace(t)
	c := optimizer.Candidate{1000, 1, 55, 99, 2, 8, 9}

	// fast > slow and overbought > oversold still score, then every penalty applies
	assert.Equal(t, 20.0+15.0-20-15-10-10-5, HeuristicScore(space, c))
}

func TestScoreFields_UndeclaredRulesSkipped(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]float64
		want   float64
	}{
		{name: "empty", fields: map[string]float64{}, want: 0},
		{name: "only rsi period", fields: map[string]float64{ParamRSIPeriod: 14}, want: 15},
		{name: "fast without slow", fields: map[string]float64{ParamFastPeriod: 300}, want: 0},
		{name: "unknown names ignored", fields: map[string]float64{"x": 1, "y": 2}, want: 0},
		{name: "distance extreme", fields: map[string]float64{ParamDistance: 6}, want: -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreFields(tt.fields))
		})
	}
}
