package backtest

import (
	"fmt"
	"math"
)

// Caps keep ratios finite when a run has no losses or no drawdown
const (
	MaxProfitFactor    = 10.0
	MaxRecoveryFactor  = 10.0
	TradingDaysPerYear = 252
)

// ============================================================================
// PERFORMANCE METRICS
// ============================================================================

// Metrics holds the aggregate results of one simulated pass
type Metrics struct {
	// Trade statistics
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"` // Ratio 0.0 to 1.0
	GrossProfit   float64 `json:"gross_profit"`
	GrossLoss     float64 `json:"gross_loss"` // Positive amount
	ProfitFactor  float64 `json:"profit_factor"`

	// Balance
	InitialBalance float64 `json:"initial_balance"`
	FinalBalance   float64 `json:"final_balance"`
	PeakBalance    float64 `json:"peak_balance"`
	TroughBalance  float64 `json:"trough_balance"`
	NetProfit      float64 `json:"net_profit"`

	// Risk
	MaxDrawdown    float64 `json:"max_drawdown"`     // Absolute, peak to trough
	MaxDrawdownPct float64 `json:"max_drawdown_pct"` // Percent of the peak
	SharpeRatio    float64 `json:"sharpe_ratio"`     // mean/stddev of trade returns, annualized
	RecoveryFactor float64 `json:"recovery_factor"`  // NetProfit / MaxDrawdown
}

// ReturnPct returns net profit as a percentage of the initial balance
func (m *Metrics) ReturnPct() float64 {
	if m.InitialBalance == 0 {
		return 0
	}
	return m.NetProfit / m.InitialBalance * 100.0
}

// String implements fmt.Stringer
func (m *Metrics) String() string {
	return fmt.Sprintf("trades=%d win_rate=%.2f pf=%.2f net=%.2f dd=%.2f%% sharpe=%.2f rf=%.2f",
		m.TotalTrades, m.WinRate, m.ProfitFactor, m.NetProfit, m.MaxDrawdownPct, m.SharpeRatio, m.RecoveryFactor)
}

// finalize derives ratios from the raw counters accumulated by the simulator
func (m *Metrics) finalize(tradeReturns []float64) {
	m.NetProfit = m.FinalBalance - m.InitialBalance

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	}

	switch {
	case m.GrossLoss > 0:
		m.ProfitFactor = math.Min(m.GrossProfit/m.GrossLoss, MaxProfitFactor)
	case m.GrossProfit > 0:
		m.ProfitFactor = MaxProfitFactor
	}

	switch {
	case m.MaxDrawdown > 0:
		m.RecoveryFactor = math.Max(math.Min(m.NetProfit/m.MaxDrawdown, MaxRecoveryFactor), -MaxRecoveryFactor)
	case m.NetProfit > 0:
		m.RecoveryFactor = MaxRecoveryFactor
	}

	m.SharpeRatio = sharpeRatio(tradeReturns)
}

// sharpeRatio calculates mean/stddev * sqrt(252) over per-trade returns
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sumSquaredDiff float64
	for _, r := range returns {
		diff := r - mean
		sumSquaredDiff += diff * diff
	}
	stdDev := math.Sqrt(sumSquaredDiff / float64(len(returns)-1))
	if stdDev == 0 {
		return 0
	}

	return mean / stdDev * math.Sqrt(TradingDaysPerYear)
}
