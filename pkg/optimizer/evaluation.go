package optimizer

import (
	"errors"
	"fmt"
	"math"
)

// ErrEvaluation is the sentinel wrapped by every EvaluationError
var ErrEvaluation = errors.New("evaluation failed")

// EvaluationError describes why a single candidate could not be scored
type EvaluationError struct {
	Reason string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrEvaluation, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrEvaluation, e.Reason)
}

func (e *EvaluationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrEvaluation, e.Err}
	}
	return []error{ErrEvaluation}
}

// Evaluation is the outcome of scoring one candidate: either a score or a failure.
// Scores follow a single convention: higher is better.
type Evaluation struct {
	Score     float64
	Heuristic bool // scored by the fallback table, no simulation ran
	Metrics   any  // evaluator-specific detail, nil for heuristic or failed evaluations
	Err       error
}

// Failed reports whether the candidate could not be scored
func (e Evaluation) Failed() bool {
	return e.Err != nil
}

// Scored builds a successful evaluation
func Scored(score float64) Evaluation {
	return Evaluation{Score: score}
}

// Failure builds a failed evaluation
func Failure(reason string, err error) Evaluation {
	return Evaluation{Err: &EvaluationError{Reason: reason, Err: err}}
}

// Evaluator scores candidates. Implementations must be safe for concurrent use.
type Evaluator interface {
	Evaluate(c Candidate) Evaluation
}

// EvaluatorFunc adapts a plain score function
type EvaluatorFunc func(c Candidate) float64

// Evaluate implements Evaluator
func (f EvaluatorFunc) Evaluate(c Candidate) Evaluation {
	return Scored(f(c))
}

// SafeEvaluate calls ev and converts panics and non-finite scores into failures
func SafeEvaluate(ev Evaluator, c Candidate) (out Evaluation) {
	defer func() {
		if r := recover(); r != nil {
			out = Failure("panic during evaluation", fmt.Errorf("%v", r))
		}
	}()

	out = ev.Evaluate(c)
	if out.Err == nil && (math.IsNaN(out.Score) || math.IsInf(out.Score, 0)) {
		return Failure("non-finite score", fmt.Errorf("score=%v", out.Score))
	}
	return out
}
