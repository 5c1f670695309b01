package coordinator

import (
	"errors"
	"fmt"

	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

// ErrRunInProgress is returned when a run is requested while another is in flight
var ErrRunInProgress = errors.New("optimization run already in progress")

// Phase names the step of a run in which a collaborator failed
type Phase string

const (
	PhaseBounds  Phase = "bounds"
	PhaseBars    Phase = "bars"
	PhaseSearch  Phase = "search"
	PhaseApply   Phase = "apply"
	PhasePublish Phase = "publish"
)

// SchedulingError wraps a failure of one run phase. The run is still counted as
// complete.
type SchedulingError struct {
	Phase     Phase
	Algorithm optimizer.Algorithm // empty for phases that are not per algorithm
	Err       error
}

func (e *SchedulingError) Error() string {
	if e.Algorithm != "" {
		return fmt.Sprintf("%s phase failed for %s: %v", e.Phase, e.Algorithm, e.Err)
	}
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}

func phaseError(phase Phase, alg optimizer.Algorithm, err error) *SchedulingError {
	return &SchedulingError{Phase: phase, Algorithm: alg, Err: err}
}
