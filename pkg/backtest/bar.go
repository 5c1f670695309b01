// Package backtest scores parameter candidates by simulating trades over historical bars
package backtest

import "time"

// Bar is one OHLCV sample of a historical series
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Valid reports whether the bar can take part in a simulation
func (b Bar) Valid() bool {
	return validPrice(b.Close)
}

// Closes extracts close prices in order
func Closes(bars []Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
