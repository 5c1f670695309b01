package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/hybridopt/internal/metrics"
	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

// DefaultSubjectPrefix is followed by the lowercase algorithm tag
const DefaultSubjectPrefix = "optimizer.results."

const natsFlushTimeout = 5 * time.Second

// ConnectNATS opens a reconnecting connection
func ConnectNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(
		url,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1), // Infinite reconnects
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NATSSink publishes results as JSON on optimizer.results.<algorithm>
type NATSSink struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSSink creates a sink on an open connection
func NewNATSSink(nc *nats.Conn, prefix string) *NATSSink {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if !strings.HasSuffix(prefix, ".") {
		prefix += "."
	}
	return &NATSSink{nc: nc, prefix: prefix}
}

// Subject returns the subject a result of alg is published on
func (s *NATSSink) Subject(alg optimizer.Algorithm) string {
	return s.prefix + strings.ToLower(string(alg))
}

// Publish implements ResultSink
func (s *NATSSink) Publish(ctx context.Context, result *optimizer.RunResult) (err error) {
	defer func() { metrics.RecordSinkPublish("nats", err) }()

	if err := checkResult(result); err != nil {
		return err
	}
	if !s.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}

	data, err := json.Marshal(NewResultMessage(result))
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	subject := s.Subject(result.Algorithm)
	if err := s.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	// FlushWithContext requires a deadline
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, natsFlushTimeout)
		defer cancel()
	}
	if err := s.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush NATS: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Int("bytes", len(data)).
		Msg("Published optimization result")
	return nil
}
