// Package strategy holds the live strategy settings tuned by the optimizer.
// Settings are persisted as a versioned YAML document.
package strategy

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/hybridopt/pkg/backtest"
	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

// SchemaVersion is the current strategy document schema version
const SchemaVersion = "1.0"

// Parameter is one live setting. Tunable parameters are exposed to the optimizer
// within [Min, Max]. Values are stored exactly as applied; Integer marks settings
// that consumers read through IntValue.
type Parameter struct {
	Name    string  `yaml:"name" json:"name"`
	Value   float64 `yaml:"value" json:"value"`
	Min     float64 `yaml:"min" json:"min"`
	Max     float64 `yaml:"max" json:"max"`
	Integer bool    `yaml:"integer,omitempty" json:"integer,omitempty"`
	Tunable bool    `yaml:"tunable" json:"tunable"`
}

// Metadata identifies the document
type Metadata struct {
	SchemaVersion string    `yaml:"schema_version" json:"schema_version"`
	Name          string    `yaml:"name" json:"name"`
	Description   string    `yaml:"description,omitempty" json:"description,omitempty"`
	UpdatedAt     time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
	UpdatedBy     string    `yaml:"updated_by,omitempty" json:"updated_by,omitempty"`
}

// Document is the persisted form of a live strategy
type Document struct {
	Metadata   Metadata    `yaml:"metadata" json:"metadata"`
	Parameters []Parameter `yaml:"parameters" json:"parameters"`
}

// DefaultParameters returns the settings understood by the backtest evaluator
func DefaultParameters() []Parameter {
	return []Parameter{
		{Name: backtest.ParamFastPeriod, Value: 200, Min: 10, Max: 500, Integer: true, Tunable: true},
		{Name: backtest.ParamSlowPeriod, Value: 50, Min: 2, Max: 200, Integer: true, Tunable: true},
		{Name: backtest.ParamRSIPeriod, Value: 14, Min: 2, Max: 50, Integer: true, Tunable: true},
		{Name: backtest.ParamOverbought, Value: 70, Min: 50, Max: 95, Tunable: true},
		{Name: backtest.ParamOversold, Value: 30, Min: 5, Max: 50, Tunable: true},
		{Name: backtest.ParamMinProfit, Value: 0.5, Min: 0.05, Max: 5, Tunable: true},
		{Name: backtest.ParamDistance, Value: 0.3, Min: 0.05, Max: 5, Tunable: true},
	}
}

// LiveStrategy is the thread-safe live settings store. It is the bounds provider and
// the parameter applier of the coordinator.
type LiveStrategy struct {
	mu   sync.RWMutex
	doc  Document
	path string
	log  zerolog.Logger
	now  func() time.Time
}

// NewLiveStrategy creates an in-memory strategy
func NewLiveStrategy(name string, params []Parameter, log zerolog.Logger) (*LiveStrategy, error) {
	doc := Document{
		Metadata:   Metadata{SchemaVersion: SchemaVersion, Name: name},
		Parameters: append([]Parameter(nil), params...),
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return newLiveStrategy(doc, "", log), nil
}

// Load reads a strategy document from a YAML file. Saves go back to the same path.
func Load(path string, log zerolog.Logger) (*LiveStrategy, error) {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategy file: %w", err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load strategy %s: %w", path, err)
	}
	return newLiveStrategy(*doc, path, log), nil
}

// Parse decodes and validates a YAML strategy document
func Parse(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty strategy data")
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := CheckCompatibility(doc.Metadata.SchemaVersion); err != nil {
		return nil, err
	}
	doc.Metadata.SchemaVersion = SchemaVersion

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func newLiveStrategy(doc Document, path string, log zerolog.Logger) *LiveStrategy {
	return &LiveStrategy{
		doc:  doc,
		path: path,
		log:  log.With().Str("component", "strategy").Str("strategy", doc.Metadata.Name).Logger(),
		now:  time.Now,
	}
}

// Name returns the strategy name
func (s *LiveStrategy) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Metadata.Name
}

// Bounds returns the tunable dimensions in declaration order
func (s *LiveStrategy) Bounds(ctx context.Context) ([]optimizer.Dimension, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	dims := make([]optimizer.Dimension, 0, len(s.doc.Parameters))
	for _, p := range s.doc.Parameters {
		if p.Tunable {
			dims = append(dims, optimizer.Dimension{Name: p.Name, Min: p.Min, Max: p.Max})
		}
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("strategy %q declares no tunable parameters", s.doc.Metadata.Name)
	}
	return dims, nil
}

// Apply writes a candidate into the live settings. Either every dimension is applied
// or none is. Values are stored as given, so Values returns the candidate.
func (s *LiveStrategy) Apply(ctx context.Context, space *optimizer.ParameterSpace, c optimizer.Candidate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := space.Validate(c); err != nil {
		return err
	}
	if !space.Contains(c) {
		return fmt.Errorf("candidate %v outside parameter space", c)
	}

	values := c.Decode(space)

	s.mu.Lock()
	index := make(map[string]int, len(s.doc.Parameters))
	for i, p := range s.doc.Parameters {
		index[p.Name] = i
	}
	for name := range values {
		i, ok := index[name]
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("unknown parameter %q", name)
		}
		if !s.doc.Parameters[i].Tunable {
			s.mu.Unlock()
			return fmt.Errorf("parameter %q is not tunable", name)
		}
	}

	for name, v := range values {
		p := &s.doc.Parameters[index[name]]
		p.Value = p.clamp(v)
	}
	s.doc.Metadata.UpdatedAt = s.now().UTC()
	s.doc.Metadata.UpdatedBy = "optimizer"
	path := s.path
	s.mu.Unlock()

	s.log.Info().
		Interface("values", values).
		Msg("Applied optimized parameters")

	if path == "" {
		return nil
	}
	return s.SaveTo(path)
}

func (p Parameter) clamp(v float64) float64 {
	return math.Min(math.Max(v, p.Min), p.Max)
}

// Values returns the current value of every parameter
func (s *LiveStrategy) Values() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(s.doc.Parameters))
	for _, p := range s.doc.Parameters {
		out[p.Name] = p.Value
	}
	return out
}

// Value returns one parameter value
func (s *LiveStrategy) Value(name string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.doc.Parameters {
		if p.Name == name {
			return p.Value, true
		}
	}
	return 0, false
}

// IntValue returns an Integer parameter rounded to the nearest whole number
func (s *LiveStrategy) IntValue(name string) (int, bool) {
	v, ok := s.Value(name)
	if !ok {
		return 0, false
	}
	return int(math.Round(v)), true
}

// Document returns a deep copy of the current document
func (s *LiveStrategy) Document() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := s.doc
	doc.Parameters = append([]Parameter(nil), s.doc.Parameters...)
	return doc
}

// Save writes the document back to the file it was loaded from
func (s *LiveStrategy) Save() error {
	s.mu.RLock()
	path := s.path
	s.mu.RUnlock()

	if path == "" {
		return fmt.Errorf("strategy has no file path")
	}
	return s.SaveTo(path)
}

// SaveTo writes the document as YAML
func (s *LiveStrategy) SaveTo(path string) error {
	doc := s.Document()

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal strategy: %w", err)
	}

	// Ensure directory exists with restrictive permissions
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write strategy file: %w", err)
	}

	s.log.Debug().Str("path", path).Msg("Saved strategy")
	return nil
}
