package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/hybridopt/internal/metrics"
	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

// Execer is the subset of pgxpool.Pool used by PostgresSink, mockable with pgxmock
type Execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// scorePlaces bounds the NUMERIC precision of stored scores
const scorePlaces = 8

// PostgresSink stores each result as a row of optimization_runs
type PostgresSink struct {
	db Execer
}

// NewPostgresSink creates a sink on a pool
func NewPostgresSink(db Execer) *PostgresSink {
	return &PostgresSink{db: db}
}

// Publish implements ResultSink
func (s *PostgresSink) Publish(ctx context.Context, result *optimizer.RunResult) (err error) {
	defer func() { metrics.RecordSinkPublish("postgres", err) }()

	if err := checkResult(result); err != nil {
		return err
	}

	const query = `
		INSERT INTO optimization_runs (
			id, algorithm, best_score, parameters, iterations, evaluations,
			failures, heuristic, started_at, duration_ms, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`

	msg := NewResultMessage(result)

	score := decimal.NullDecimal{}
	if msg.BestScore != nil {
		score = decimal.NewNullDecimal(decimal.NewFromFloat(*msg.BestScore).Round(scorePlaces))
	}

	params, err := json.Marshal(msg.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}

	var errText *string
	if msg.Error != "" {
		errText = &msg.Error
	}

	start := time.Now()
	_, err = s.db.Exec(ctx, query,
		result.ID,
		msg.Algorithm,
		score,
		params,
		msg.Iterations,
		msg.Evaluations,
		msg.Failures,
		msg.Heuristic,
		msg.StartedAt,
		msg.DurationMs,
		errText,
	)
	metrics.RecordDatabaseQuery("insert_result", float64(time.Since(start).Milliseconds()))
	if err != nil {
		return fmt.Errorf("failed to insert optimization result: %w", err)
	}
	return nil
}
