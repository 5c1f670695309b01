package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/hybridopt/pkg/optimizer"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSink_Publish(t *testing.T) {
	w := &fakeWriter{}
	s := NewKafkaSink(w, "")
	r := sampleResult(optimizer.AlgorithmGA)

	require.NoError(t, s.Publish(context.Background(), r))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, DefaultKafkaTopic, msg.Topic)
	assert.Equal(t, []byte("GA"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, r.ID.String(), string(msg.Headers[0].Value))

	var decoded ResultMessage
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "GA", decoded.Algorithm)
	assert.Equal(t, 110, decoded.Evaluations)

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}

func TestKafkaSink_WriteError(t *testing.T) {
	writeErr := errors.New("leader not available")
	s := NewKafkaSink(&fakeWriter{err: writeErr}, "results")

	err := s.Publish(context.Background(), sampleResult(optimizer.AlgorithmPSO))
	assert.ErrorIs(t, err, writeErr)
	assert.Contains(t, err.Error(), "results")
}

func TestNewKafkaWriter(t *testing.T) {
	_, err := NewKafkaWriter(KafkaConfig{})
	assert.Error(t, err)

	w, err := NewKafkaWriter(KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	assert.Equal(t, 3, w.MaxAttempts)
	assert.Empty(t, w.Topic)
	assert.NoError(t, w.Close())
}
