package backtest

import (
	"fmt"
	"math"
	"sort"
)

// ============================================================================
// OBJECTIVE FUNCTIONS
// ============================================================================

// ObjectiveFunction turns simulated metrics into a score; higher is better
type ObjectiveFunction func(*Metrics) float64

// DefaultObjective is the objective used when none is configured
const DefaultObjective = "composite"

// Composite score weights
const (
	TradeCountCap       = 50
	TradeCountWeight    = 0.5
	WinRateWeight       = 30.0
	ProfitFactorCap     = 5.0
	ProfitFactorWeight  = 10.0
	SharpeCap           = 5.0
	SharpeWeight        = 5.0
	ReturnWeight        = 0.5
	RecoveryWeight      = 2.0
	ConsistencyBonus    = 10.0
	DrawdownWeight      = 0.5
	DrawdownThreshold   = 20.0
	DrawdownExtraWeight = 1.5
)

var (
	// CompositeScore is the weighted aggregate of all metrics
	CompositeScore ObjectiveFunction = func(m *Metrics) float64 {
		trades := math.Min(float64(m.TotalTrades), TradeCountCap) * TradeCountWeight
		winRate := m.WinRate * WinRateWeight
		profitFactor := math.Min(m.ProfitFactor, ProfitFactorCap) * ProfitFactorWeight
		sharpe := math.Max(-SharpeCap, math.Min(m.SharpeRatio, SharpeCap)) * SharpeWeight
		returns := m.ReturnPct() * ReturnWeight
		recovery := math.Max(-MaxRecoveryFactor, math.Min(m.RecoveryFactor, MaxRecoveryFactor)) * RecoveryWeight

		consistency := 0.0
		if m.WinRate >= 0.5 && m.ProfitFactor >= 1.2 && m.TotalTrades >= 10 {
			consistency = ConsistencyBonus
		}

		penalty := m.MaxDrawdownPct * DrawdownWeight
		if m.MaxDrawdownPct > DrawdownThreshold {
			penalty += (m.MaxDrawdownPct - DrawdownThreshold) * DrawdownExtraWeight
		}

		return trades + winRate + profitFactor + sharpe + returns + recovery + consistency - penalty
	}

	// MaximizeSharpeRatio optimizes for risk-adjusted returns
	MaximizeSharpeRatio ObjectiveFunction = func(m *Metrics) float64 {
		return m.SharpeRatio
	}

	// MaximizeProfitFactor optimizes for profit/loss ratio
	MaximizeProfitFactor ObjectiveFunction = func(m *Metrics) float64 {
		return m.ProfitFactor
	}

	// MaximizeNetProfit optimizes for absolute returns
	MaximizeNetProfit ObjectiveFunction = func(m *Metrics) float64 {
		return m.NetProfit
	}

	// MaximizeWinRate optimizes for the share of winning trades
	MaximizeWinRate ObjectiveFunction = func(m *Metrics) float64 {
		return m.WinRate
	}

	// MinimizeDrawdown optimizes for low drawdown
	MinimizeDrawdown ObjectiveFunction = func(m *Metrics) float64 {
		return -m.MaxDrawdownPct // Negative because we minimize
	}
)

var objectives = map[string]ObjectiveFunction{
	"composite":     CompositeScore,
	"sharpe":        MaximizeSharpeRatio,
	"profit_factor": MaximizeProfitFactor,
	"net_profit":    MaximizeNetProfit,
	"win_rate":      MaximizeWinRate,
	"drawdown":      MinimizeDrawdown,
}

// LookupObjective returns the named objective; empty selects the default
func LookupObjective(name string) (ObjectiveFunction, error) {
	if name == "" {
		name = DefaultObjective
	}
	fn, ok := objectives[name]
	if !ok {
		return nil, fmt.Errorf("unknown fitness function %q (available: %v)", name, ObjectiveNames())
	}
	return fn, nil
}

// ObjectiveNames lists registered objective names
func ObjectiveNames() []string {
	names := make([]string, 0, len(objectives))
	for n := range objectives {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
