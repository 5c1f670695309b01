package market

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/hybridopt/pkg/backtest"
)

// BarsFile is the on-disk bar snapshot. JSON files are accepted as well.
type BarsFile struct {
	Symbol   string    `yaml:"symbol"`
	Interval string    `yaml:"interval"`
	Bars     []fileBar `yaml:"bars"`
}

type fileBar struct {
	Timestamp time.Time `yaml:"timestamp"`
	Open      float64   `yaml:"open"`
	High      float64   `yaml:"high"`
	Low       float64   `yaml:"low"`
	Close     float64   `yaml:"close"`
	Volume    float64   `yaml:"volume"`
}

// LoadBarsFile reads a bar snapshot and returns it sorted oldest first
func LoadBarsFile(path string) ([]backtest.Bar, error) {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bars file: %w", err)
	}
	return ParseBars(data)
}

// ParseBars decodes a bar snapshot document
func ParseBars(data []byte) ([]backtest.Bar, error) {
	var doc BarsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse bars: %w", err)
	}
	if len(doc.Bars) == 0 {
		return nil, ErrNoBars
	}

	bars := make([]backtest.Bar, len(doc.Bars))
	for i, b := range doc.Bars {
		if b.Timestamp.IsZero() {
			return nil, fmt.Errorf("bar %d has no timestamp", i)
		}
		bars[i] = backtest.Bar{
			Timestamp: b.Timestamp.UTC(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}
	slices.SortStableFunc(bars, func(a, b backtest.Bar) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return bars, nil
}

// NewFileBarsProvider loads a bar snapshot once and serves it from memory
func NewFileBarsProvider(path string) (*StaticBarsProvider, error) {
	bars, err := LoadBarsFile(path)
	if err != nil {
		return nil, err
	}
	return NewStaticBarsProvider(bars), nil
}
