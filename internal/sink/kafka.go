package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ajitpratap0/hybridopt/internal/metrics"
	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

// DefaultKafkaTopic receives results when no topic is configured
const DefaultKafkaTopic = "optimizer.results"

// MessageWriter is the subset of *kafka.Writer used by KafkaSink
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the result producer
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// NewKafkaWriter builds a synchronous writer keyed by algorithm
func NewKafkaWriter(cfg KafkaConfig) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: 10 * time.Millisecond,
	}, nil
}

// KafkaSink publishes results as JSON keyed by algorithm
type KafkaSink struct {
	writer MessageWriter
	topic  string
}

// NewKafkaSink creates a sink on a writer. The writer must not set its own Topic.
func NewKafkaSink(writer MessageWriter, topic string) *KafkaSink {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	return &KafkaSink{writer: writer, topic: topic}
}

// Publish implements ResultSink
func (s *KafkaSink) Publish(ctx context.Context, result *optimizer.RunResult) (err error) {
	defer func() { metrics.RecordSinkPublish("kafka", err) }()

	if err := checkResult(result); err != nil {
		return err
	}

	value, err := json.Marshal(NewResultMessage(result))
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	msg := kafka.Message{
		Topic: s.topic,
		Key:   []byte(result.Algorithm),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "result_id", Value: []byte(result.ID.String())},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write to %s: %w", s.topic, err)
	}
	return nil
}

// Close closes the underlying writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
