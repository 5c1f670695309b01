package sink

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/hybridopt/internal/metrics"
	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

// LogSink writes each result as a structured log line
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a log sink
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "result_sink").Logger()}
}

// Publish implements ResultSink
func (s *LogSink) Publish(_ context.Context, result *optimizer.RunResult) error {
	if err := checkResult(result); err != nil {
		return err
	}

	ev := s.log.Info()
	if !result.Found() {
		ev = s.log.Warn()
	}

	msg := NewResultMessage(result)
	ev.Str("result_id", msg.ID).
		Str("algorithm", msg.Algorithm).
		Int("iterations", msg.Iterations).
		Int("evaluations", msg.Evaluations).
		Int("failures", msg.Failures).
		Bool("heuristic", msg.Heuristic).
		Int64("duration_ms", msg.DurationMs)
	if msg.BestScore != nil {
		ev.Float64("best_score", *msg.BestScore).Interface("parameters", msg.Parameters)
	}
	if msg.Error != "" {
		ev.Str("error", msg.Error)
	}
	ev.Msg("Optimization result")

	metrics.RecordSinkPublish("log", nil)
	return nil
}
