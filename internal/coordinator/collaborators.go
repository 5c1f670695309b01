package coordinator

import (
	"context"

	"github.com/ajitpratap0/hybridopt/pkg/backtest"
	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

// BarsProvider supplies the historical bar snapshot evaluated by a run
type BarsProvider interface {
	Bars(ctx context.Context) ([]backtest.Bar, error)
}

// BoundsProvider supplies the tunable dimensions of the live strategy
type BoundsProvider interface {
	Bounds(ctx context.Context) ([]optimizer.Dimension, error)
}

// ParameterApplier writes a candidate into the live strategy
type ParameterApplier interface {
	Apply(ctx context.Context, space *optimizer.ParameterSpace, c optimizer.Candidate) error
}

// ResultSink receives one result per algorithm and run
type ResultSink interface {
	Publish(ctx context.Context, result *optimizer.RunResult) error
}
