package market

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const barsYAML = `symbol: BTCUSDT
interval: 1h
bars:
  - timestamp: 2024-01-01T01:00:00Z
    open: 101
    high: 102
    low: 100
    close: 101.5
    volume: 12
  - timestamp: 2024-01-01T00:00:00Z
    open: 100
    high: 101
    low: 99
    close: 100.5
    volume: 10
`

func TestParseBars_SortsOldestFirst(t *testing.T) {
	bars, err := ParseBars([]byte(barsYAML))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), bars[0].Timestamp)
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, 101.5, bars[1].Close)
	assert.Equal(t, 12.0, bars[1].Volume)
}

func TestParseBars_AcceptsJSON(t *testing.T) {
	data := `{"bars":[{"timestamp":"2024-01-01T00:00:00Z","open":1,"high":2,"low":0.5,"close":1.5,"volume":3}]}`
	bars, err := ParseBars([]byte(data))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 1.5, bars[0].Close)
}

func TestParseBars_Errors(t *testing.T) {
	_, err := ParseBars([]byte("symbol: BTCUSDT\nbars: []\n"))
	assert.ErrorIs(t, err, ErrNoBars)

	_, err = ParseBars([]byte("bars:\n  - close: 1\n"))
	assert.ErrorContains(t, err, "no timestamp")

	_, err = ParseBars([]byte("bars: [unterminated"))
	assert.Error(t, err)
}

func TestNewFileBarsProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.yaml")
	require.NoError(t, os.WriteFile(path, []byte(barsYAML), 0600))

	p, err := NewFileBarsProvider(path)
	require.NoError(t, err)

	bars, err := p.Bars(context.Background())
	require.NoError(t, err)
	assert.Len(t, bars, 2)

	_, err = NewFileBarsProvider(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
