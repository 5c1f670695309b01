// Package sink delivers optimization results to logs, message buses and storage
package sink

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

// ResultSink receives one result per algorithm and run
type ResultSink interface {
	Publish(ctx context.Context, result *optimizer.RunResult) error
}

// ResultMessage is the wire form of a RunResult. BestScore is omitted when the
// search found no candidate.
type ResultMessage struct {
	ID          string             `json:"id"`
	Algorithm   string             `json:"algorithm"`
	BestScore   *float64           `json:"best_score,omitempty"`
	Candidate   []float64          `json:"candidate,omitempty"`
	Names       []string           `json:"names"`
	Parameters  map[string]float64 `json:"parameters,omitempty"`
	Iterations  int                `json:"iterations"`
	Evaluations int                `json:"evaluations"`
	Failures    int                `json:"failures"`
	Heuristic   bool               `json:"heuristic"`
	StartedAt   time.Time          `json:"started_at"`
	DurationMs  int64              `json:"duration_ms"`
	Error       string             `json:"error,omitempty"`
	PublishedAt time.Time          `json:"published_at"`
}

// NewResultMessage converts a result for publication
func NewResultMessage(r *optimizer.RunResult) ResultMessage {
	msg := ResultMessage{
		ID:          r.ID.String(),
		Algorithm:   string(r.Algorithm),
		Candidate:   r.BestCandidate,
		Names:       r.Names,
		Parameters:  r.Parameters,
		Iterations:  r.Iterations,
		Evaluations: r.Evaluations,
		Failures:    r.Failures,
		Heuristic:   r.Heuristic,
		StartedAt:   r.StartedAt,
		DurationMs:  r.Duration.Milliseconds(),
		PublishedAt: time.Now().UTC(),
	}
	if r.Found() && !math.IsInf(r.BestScore, 0) && !math.IsNaN(r.BestScore) {
		score := r.BestScore
		msg.BestScore = &score
	}
	if r.Err != nil {
		msg.Error = r.Err.Error()
	}
	return msg
}

// Multi fans a result out to every sink. All sinks are attempted; failures are joined.
type Multi []ResultSink

// Publish implements ResultSink
func (m Multi) Publish(ctx context.Context, result *optimizer.RunResult) error {
	if err := checkResult(result); err != nil {
		return err
	}

	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var errNilResult = errors.New("nil result")

func checkResult(result *optimizer.RunResult) error {
	if result == nil {
		return errNilResult
	}
	return nil
}
