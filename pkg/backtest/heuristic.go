package backtest

import (
	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

// Parameter names understood by the heuristic table and the simulator
const (
	ParamFastPeriod = "fast_ma_period"
	ParamSlowPeriod = "slow_ma_period"
	ParamRSIPeriod  = "rsi_period"
	ParamOverbought = "rsi_overbought"
	ParamOversold   = "rsi_oversold"
	ParamMinProfit  = "min_profit"
	ParamDistance   = "distance"
)

// HeuristicBonusFloor is the score reached when the four core plausibility rules
// hold: fast > slow, RSI period in [10,20], overbought > oversold and min profit in
// (0.05, 2.0).
const HeuristicBonusFloor = 60.0

// heuristicRule adds Points when Applies holds; rules whose fields are not all
// declared are skipped.
type heuristicRule struct {
	Name    string
	Fields  []string
	Points  float64
	Applies func(p map[string]float64) bool
}

var heuristicTable = []heuristicRule{
	// Bonuses
	{"fast_above_slow", []string{ParamFastPeriod, ParamSlowPeriod}, 20, func(p map[string]float64) bool {
		return p[ParamFastPeriod] > p[ParamSlowPeriod]
	}},
	{"ma_periods_in_range", []string{ParamFastPeriod, ParamSlowPeriod}, 10, func(p map[string]float64) bool {
		return between(p[ParamFastPeriod], 50, 500) && between(p[ParamSlowPeriod], 10, 200)
	}},
	{"rsi_period_in_range", []string{ParamRSIPeriod}, 15, func(p map[string]float64) bool {
		return between(p[ParamRSIPeriod], 10, 20)
	}},
	{"overbought_above_oversold", []string{ParamOverbought, ParamOversold}, 15, func(p map[string]float64) bool {
		return p[ParamOverbought] > p[ParamOversold]
	}},
	{"rsi_levels_in_range", []string{ParamOverbought, ParamOversold}, 10, func(p map[string]float64) bool {
		return between(p[ParamOverbought], 65, 85) && between(p[ParamOversold], 15, 35)
	}},
	{"min_profit_reasonable", []string{ParamMinProfit}, 10, func(p map[string]float64) bool {
		return p[ParamMinProfit] > 0.05 && p[ParamMinProfit] < 2.0
	}},
	{"distance_reasonable", []string{ParamDistance}, 5, func(p map[string]float64) bool {
		return p[ParamDistance] > 0.1 && p[ParamDistance] < 1.0
	}},

	// Penalties
	{"ma_period_extreme", []string{ParamFastPeriod, ParamSlowPeriod}, -20, func(p map[string]float64) bool {
		return p[ParamFastPeriod] > 1000 || p[ParamSlowPeriod] < 2
	}},
	{"rsi_period_extreme", []string{ParamRSIPeriod}, -15, func(p map[string]float64) bool {
		return p[ParamRSIPeriod] < 2 || p[ParamRSIPeriod] > 50
	}},
	{"rsi_levels_extreme", []string{ParamOverbought, ParamOversold}, -10, func(p map[string]float64) bool {
		return p[ParamOverbought] > 95 || p[ParamOversold] < 5
	}},
	{"min_profit_extreme", []string{ParamMinProfit}, -10, func(p map[string]float64) bool {
		return p[ParamMinProfit] > 5
	}},
	{"distance_extreme", []string{ParamDistance}, -5, func(p map[string]float64) bool {
		return p[ParamDistance] > 5
	}},
}

// HeuristicScore scores a candidate from its decoded fields alone. It never
// simulates trades and is used when there are too few bars.
func HeuristicScore(space *optimizer.ParameterSpace, c optimizer.Candidate) float64 {
	return ScoreFields(c.Decode(space))
}

// ScoreFields applies the heuristic table to named values
func ScoreFields(fields map[string]float64) float64 {
	score := 0.0
	for _, rule := range heuristicTable {
		if !declared(fields, rule.Fields) {
			continue
		}
		if rule.Applies(fields) {
			score += rule.Points
		}
	}
	return score
}

func declared(fields map[string]float64, names []string) bool {
	for _, n := range names {
		if _, ok := fields[n]; !ok {
			return false
		}
	}
	return true
}

func between(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}
