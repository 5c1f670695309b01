// Package optimizer provides metaheuristic searches over bounded parameter spaces
package optimizer

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ============================================================================
// ERRORS
// ============================================================================

// ErrConfiguration is the sentinel wrapped by every ConfigurationError
var ErrConfiguration = errors.New("invalid parameter space")

// ConfigurationError reports a malformed parameter space. It is fatal for a run.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrConfiguration, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Message)
}

// Unwrap allows errors.Is(err, ErrConfiguration)
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// ============================================================================
// PARAMETER SPACE
// ============================================================================

// Dimension is one named box-constrained axis of the search space
type Dimension struct {
	Name string  `json:"name" yaml:"name"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
}

// Span returns Max - Min
func (d Dimension) Span() float64 {
	return d.Max - d.Min
}

// Clamp restricts v to [Min, Max]
func (d Dimension) Clamp(v float64) float64 {
	if v < d.Min {
		return d.Min
	}
	if v > d.Max {
		return d.Max
	}
	return v
}

// ParameterSpace is an ordered, immutable list of dimensions
type ParameterSpace struct {
	dims  []Dimension
	index map[string]int
}

// NewParameterSpace builds a space from parallel name/min/max slices
func NewParameterSpace(names []string, mins, maxs []float64) (*ParameterSpace, error) {
	if len(names) == 0 {
		return nil, &ConfigurationError{Message: "at least one dimension is required"}
	}
	if len(mins) != len(names) || len(maxs) != len(names) {
		return nil, &ConfigurationError{
			Field:   "bounds",
			Message: fmt.Sprintf("declared %d dimensions but got %d mins and %d maxs", len(names), len(mins), len(maxs)),
		}
	}

	dims := make([]Dimension, len(names))
	for i := range names {
		dims[i] = Dimension{Name: names[i], Min: mins[i], Max: maxs[i]}
	}
	return NewParameterSpaceFromDimensions(dims)
}

// NewParameterSpaceFromDimensions validates and copies dims into a new space
func NewParameterSpaceFromDimensions(dims []Dimension) (*ParameterSpace, error) {
	if len(dims) == 0 {
		return nil, &ConfigurationError{Message: "at least one dimension is required"}
	}

	space := &ParameterSpace{
		dims:  make([]Dimension, len(dims)),
		index: make(map[string]int, len(dims)),
	}

	for i, d := range dims {
		if d.Name == "" {
			return nil, &ConfigurationError{Field: fmt.Sprintf("dimension[%d]", i), Message: "name is required"}
		}
		if _, dup := space.index[d.Name]; dup {
			return nil, &ConfigurationError{Field: d.Name, Message: "duplicate dimension name"}
		}
		if !isFinite(d.Min) || !isFinite(d.Max) {
			return nil, &ConfigurationError{Field: d.Name, Message: "bounds must be finite"}
		}
		if d.Min > d.Max {
			return nil, &ConfigurationError{
				Field:   d.Name,
				Message: fmt.Sprintf("min %g is greater than max %g", d.Min, d.Max),
			}
		}
		space.dims[i] = d
		space.index[d.Name] = i
	}

	return space, nil
}

// Len returns the number of dimensions
func (s *ParameterSpace) Len() int {
	return len(s.dims)
}

// Dimension returns the i-th dimension
func (s *ParameterSpace) Dimension(i int) Dimension {
	return s.dims[i]
}

// Dimensions returns a copy of the ordered dimensions
func (s *ParameterSpace) Dimensions() []Dimension {
	out := make([]Dimension, len(s.dims))
	copy(out, s.dims)
	return out
}

// Names returns dimension names in declaration order
func (s *ParameterSpace) Names() []string {
	names := make([]string, len(s.dims))
	for i, d := range s.dims {
		names[i] = d.Name
	}
	return names
}

// Index returns the position of the named dimension
func (s *ParameterSpace) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Random draws a uniform candidate inside the bounds
func (s *ParameterSpace) Random(rng *rand.Rand) Candidate {
	c := make(Candidate, len(s.dims))
	for i, d := range s.dims {
		c[i] = d.Min + rng.Float64()*d.Span()
	}
	return c
}

// Clamp clamps every coordinate of c into its dimension in place
func (s *ParameterSpace) Clamp(c Candidate) {
	for i, d := range s.dims {
		c[i] = d.Clamp(c[i])
	}
}

// Contains reports whether c has the right length and lies inside the box
func (s *ParameterSpace) Contains(c Candidate) bool {
	if len(c) != len(s.dims) {
		return false
	}
	for i, d := range s.dims {
		if c[i] < d.Min || c[i] > d.Max || math.IsNaN(c[i]) {
			return false
		}
	}
	return true
}

// Validate checks that c is a well-formed point of the space
func (s *ParameterSpace) Validate(c Candidate) error {
	if len(c) != len(s.dims) {
		return &ConfigurationError{
			Field:   "candidate",
			Message: fmt.Sprintf("expected %d values, got %d", len(s.dims), len(c)),
		}
	}
	return nil
}

// ============================================================================
// CANDIDATE
// ============================================================================

// Candidate is one point of a parameter space, one value per dimension
type Candidate []float64

// Clone returns a deep copy
func (c Candidate) Clone() Candidate {
	if c == nil {
		return nil
	}
	out := make(Candidate, len(c))
	copy(out, c)
	return out
}

// Decode maps values onto dimension names
func (c Candidate) Decode(space *ParameterSpace) map[string]float64 {
	out := make(map[string]float64, space.Len())
	for i, d := range space.dims {
		if i < len(c) {
			out[d.Name] = c[i]
		}
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
