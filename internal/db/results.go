package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Querier is the subset of pgxpool.Pool used by ResultStore, mockable with pgxmock
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// DefaultResultLimit caps listings without an explicit limit
const DefaultResultLimit = 50

// StoredResult is one row of optimization_runs
type StoredResult struct {
	ID          uuid.UUID           `json:"id"`
	Algorithm   string              `json:"algorithm"`
	BestScore   decimal.NullDecimal `json:"best_score"`
	Parameters  map[string]float64  `json:"parameters"`
	Iterations  int                 `json:"iterations"`
	Evaluations int                 `json:"evaluations"`
	Failures    int                 `json:"failures"`
	Heuristic   bool                `json:"heuristic"`
	StartedAt   time.Time           `json:"started_at"`
	DurationMs  int64               `json:"duration_ms"`
	Error       *string             `json:"error,omitempty"`
}

// ResultStore reads stored optimization results
type ResultStore struct {
	pool Querier
}

// NewResultStore creates a store on a pool
func NewResultStore(pool Querier) *ResultStore {
	return &ResultStore{pool: pool}
}

// Recent returns the newest results, optionally for one algorithm
func (s *ResultStore) Recent(ctx context.Context, algorithm string, limit int) ([]StoredResult, error) {
	if limit <= 0 {
		limit = DefaultResultLimit
	}

	const query = `
		SELECT id, algorithm, best_score, parameters, iterations, evaluations,
			failures, heuristic, started_at, duration_ms, error
		FROM optimization_runs
		WHERE ($1 = '' OR algorithm = $1)
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, algorithm, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query optimization results: %w", err)
	}
	defer rows.Close()

	var results []StoredResult
	for rows.Next() {
		var (
			r      StoredResult
			params []byte
		)
		if err := rows.Scan(
			&r.ID, &r.Algorithm, &r.BestScore, &params, &r.Iterations, &r.Evaluations,
			&r.Failures, &r.Heuristic, &r.StartedAt, &r.DurationMs, &r.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan optimization result: %w", err)
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &r.Parameters); err != nil {
				return nil, fmt.Errorf("failed to decode parameters of %s: %w", r.ID, err)
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating optimization results: %w", err)
	}

	return results, nil
}
