package optimizer

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Algorithm tags a search implementation
type Algorithm string

const (
	AlgorithmPSO    Algorithm = "PSO"
	AlgorithmGA     Algorithm = "GA"
	AlgorithmMayfly Algorithm = "MAYFLY"
)

// RunResult summarizes one completed search
type RunResult struct {
	ID            uuid.UUID          `json:"id"`
	Algorithm     Algorithm          `json:"algorithm"`
	BestCandidate Candidate          `json:"best_candidate"`
	BestScore     float64            `json:"best_score"`
	Names         []string           `json:"names"` // dimension names in candidate order
	Parameters    map[string]float64 `json:"parameters"`
	Iterations    int                `json:"iterations"` // iterations or generations actually completed
	Evaluations   int                `json:"evaluations"`
	Failures      int                `json:"failures"`
	Heuristic     bool               `json:"heuristic"` // scored by the fallback table
	StartedAt     time.Time          `json:"started_at"`
	Duration      time.Duration      `json:"duration"`
	History       []float64          `json:"history,omitempty"` // best score after each iteration
	Err           error              `json:"-"`
}

// Found reports whether the search produced a usable candidate
func (r *RunResult) Found() bool {
	return r != nil && r.BestCandidate != nil
}

// Searcher is a search algorithm bound to a configuration
type Searcher interface {
	Algorithm() Algorithm
	Search(ctx context.Context, space *ParameterSpace, ev Evaluator) (*RunResult, error)
}

// Snapshot is handed to observers after every iteration or generation
type Snapshot struct {
	Iteration int
	Positions []Candidate // current particles or population, do not retain
	BestScore float64
}

// Observer receives a snapshot after each iteration. It runs on the search goroutine.
type Observer func(Snapshot)

func newResult(alg Algorithm) *RunResult {
	return &RunResult{
		ID:        uuid.New(),
		Algorithm: alg,
		StartedAt: time.Now(),
	}
}

func (r *RunResult) finish(space *ParameterSpace) {
	r.Duration = time.Since(r.StartedAt)
	r.Names = space.Names()
	if r.BestCandidate != nil {
		r.Parameters = r.BestCandidate.Decode(space)
	}
}

// newRand returns a seeded source; seed 0 means time based
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed)) // #nosec G404 -- Non-cryptographic use: reproducible search randomness
}

func cancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
