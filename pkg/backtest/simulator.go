package backtest

import (
	"math"

	"github.com/cinar/indicator/v2/trend"
)

// Defaults of the deterministic simulation
const (
	DefaultInitialBalance   = 10000.0
	DefaultPositionFraction = 0.1
	DefaultTriggerPct       = 0.1
)

// SimulationParams are the decoded, simulation-relevant fields of a candidate.
// Zero values mean "not declared".
type SimulationParams struct {
	FastPeriod    int
	SlowPeriod    int
	TriggerPct    float64 // minimum absolute close-to-close move, in percent
	TakeProfitPct float64 // caps the gain of a single trade, in percent
}

// SimulationConfig holds fixed simulation settings
type SimulationConfig struct {
	InitialBalance   float64
	PositionFraction float64
}

// Simulate runs a single deterministic pass over closes. For every consecutive pair
// whose percentage move exceeds the trigger, a trade is booked with profit
// proportional to the move. Trade direction follows the fast/slow moving average
// relation on the previous bar when both periods are available, long otherwise.
func Simulate(closes []float64, params SimulationParams, cfg SimulationConfig) *Metrics {
	if cfg.InitialBalance <= 0 {
		cfg.InitialBalance = DefaultInitialBalance
	}
	if cfg.PositionFraction <= 0 {
		cfg.PositionFraction = DefaultPositionFraction
	}
	trigger := params.TriggerPct
	if trigger <= 0 {
		trigger = DefaultTriggerPct
	}

	fast := movingAverage(closes, params.FastPeriod)
	slow := movingAverage(closes, params.SlowPeriod)

	balance := cfg.InitialBalance
	m := &Metrics{
		InitialBalance: cfg.InitialBalance,
		PeakBalance:    balance,
		TroughBalance:  balance,
	}
	var tradeReturns []float64

	for i := 1; i < len(closes); i++ {
		prev, curr := closes[i-1], closes[i]
		if !validPrice(prev) || !validPrice(curr) {
			continue
		}

		movePct := (curr - prev) / prev * 100.0
		if math.Abs(movePct) <= trigger {
			continue
		}

		direction := 1.0
		if f, s := at(fast, i-1), at(slow, i-1); !math.IsNaN(f) && !math.IsNaN(s) && f < s {
			direction = -1.0
		}

		returnPct := movePct * direction
		if params.TakeProfitPct > 0 && returnPct > params.TakeProfitPct {
			returnPct = params.TakeProfitPct
		}

		profit := balance * cfg.PositionFraction * returnPct / 100.0
		tradeReturns = append(tradeReturns, profit/balance)
		balance += profit

		m.TotalTrades++
		if profit > 0 {
			m.WinningTrades++
			m.GrossProfit += profit
		} else {
			m.LosingTrades++
			m.GrossLoss += -profit
		}

		if balance > m.PeakBalance {
			m.PeakBalance = balance
		}
		if balance < m.TroughBalance {
			m.TroughBalance = balance
		}
		if dd := m.PeakBalance - balance; dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
			m.MaxDrawdownPct = dd / m.PeakBalance * 100.0
		}
	}

	m.FinalBalance = balance
	m.finalize(tradeReturns)
	return m
}

// movingAverage returns a series aligned with closes (NaN during the warm-up) or nil
// when the period is not usable.
func movingAverage(closes []float64, period int) []float64 {
	if period < 1 || period > len(closes) {
		return nil
	}

	pricesChan := make(chan float64, len(closes))
	for _, p := range closes {
		pricesChan <- p
	}
	close(pricesChan)

	sma := trend.NewSmaWithPeriod[float64](period)
	var values []float64
	for v := range sma.Compute(pricesChan) {
		values = append(values, v)
	}

	aligned := make([]float64, len(closes))
	offset := len(closes) - len(values)
	for i := range aligned {
		if i < offset {
			aligned[i] = math.NaN()
			continue
		}
		aligned[i] = values[i-offset]
	}
	return aligned
}

func at(series []float64, i int) float64 {
	if series == nil || i < 0 || i >= len(series) {
		return math.NaN()
	}
	return series[i]
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
