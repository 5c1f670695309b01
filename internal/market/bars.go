// Package market loads the historical bar snapshot evaluated by optimization runs
package market

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ajitpratap0/hybridopt/internal/metrics"
	"github.com/ajitpratap0/hybridopt/pkg/backtest"
)

// Query defaults
const (
	DefaultInterval = "1h"
	DefaultLookback = 30 * 24 * time.Hour
	DefaultLimit    = 1000
)

// ErrNoBars is returned when the window holds no candles
var ErrNoBars = errors.New("no bars available")

// PoolInterface is the subset of pgxpool.Pool used here, mockable with pgxmock
type PoolInterface interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// BarSource supplies a bar snapshot
type BarSource interface {
	Bars(ctx context.Context) ([]backtest.Bar, error)
}

// BarQuery selects the candles of one symbol
type BarQuery struct {
	Symbol   string        `mapstructure:"symbol" validate:"required"`
	Interval string        `mapstructure:"interval"`
	Lookback time.Duration `mapstructure:"lookback"`
	Limit    int           `mapstructure:"limit" validate:"gte=0"`
}

func (q BarQuery) withDefaults() BarQuery {
	if q.Interval == "" {
		q.Interval = DefaultInterval
	}
	if q.Lookback <= 0 {
		q.Lookback = DefaultLookback
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	return q
}

// PostgresBarsProvider reads candles from the candlesticks table
type PostgresBarsProvider struct {
	pool  PoolInterface
	query BarQuery
	now   func() time.Time
}

// NewPostgresBarsProvider creates a provider; zero query fields take defaults
func NewPostgresBarsProvider(pool PoolInterface, q BarQuery) (*PostgresBarsProvider, error) {
	if pool == nil {
		return nil, fmt.Errorf("no database pool available")
	}
	if q.Symbol == "" {
		return nil, fmt.Errorf("bar query requires a symbol")
	}
	return &PostgresBarsProvider{pool: pool, query: q.withDefaults(), now: time.Now}, nil
}

// Query returns the effective query
func (p *PostgresBarsProvider) Query() BarQuery {
	return p.query
}

// Bars returns the most recent candles of the window, oldest first
func (p *PostgresBarsProvider) Bars(ctx context.Context) ([]backtest.Bar, error) {
	const query = `
		SELECT open_time, open, high, low, close, volume
		FROM candlesticks
		WHERE symbol = $1
			AND interval = $2
			AND open_time >= $3
		ORDER BY open_time DESC
		LIMIT $4
	`

	start := time.Now()
	since := p.now().Add(-p.query.Lookback)
	rows, err := p.pool.Query(ctx, query, p.query.Symbol, p.query.Interval, since, p.query.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candlesticks: %w", err)
	}
	defer rows.Close()

	bars := make([]backtest.Bar, 0, p.query.Limit)
	for rows.Next() {
		var b backtest.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candlestick: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candlesticks: %w", err)
	}
	metrics.RecordDatabaseQuery("select_bars", float64(time.Since(start).Milliseconds()))

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %s %s", ErrNoBars, p.query.Symbol, p.query.Interval)
	}

	slices.Reverse(bars)
	return bars, nil
}

// StaticBarsProvider serves a fixed snapshot
type StaticBarsProvider struct {
	bars []backtest.Bar
}

// NewStaticBarsProvider copies bars into a provider
func NewStaticBarsProvider(bars []backtest.Bar) *StaticBarsProvider {
	return &StaticBarsProvider{bars: slices.Clone(bars)}
}

// Bars returns a copy of the snapshot
func (s *StaticBarsProvider) Bars(ctx context.Context) ([]backtest.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.bars) == 0 {
		return nil, ErrNoBars
	}
	return slices.Clone(s.bars), nil
}
