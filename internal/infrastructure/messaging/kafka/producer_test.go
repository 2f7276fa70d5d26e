package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citescope/citescope/internal/config"
	"github.com/citescope/citescope/pkg/errors"
)

type mockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	writeErr error
	closed   bool
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return w.writeErr
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *mockWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestPublishEventWrapsEnvelope(t *testing.T) {
	writer := &mockWriter{}
	producer := NewProducerWithWriter(writer, nil)

	payload := map[string]string{"scope_key": "abc123"}
	err := producer.PublishEvent(context.Background(), TopicViewComputed, "abc123", payload)

	require.NoError(t, err)
	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, TopicViewComputed, msg.Topic)
	assert.Equal(t, []byte("abc123"), msg.Key)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(msg.Value, &envelope))
	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, TopicViewComputed, envelope.Type)
	assert.False(t, envelope.OccurredAt.IsZero())

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(envelope.Payload, &decoded))
	assert.Equal(t, "abc123", decoded["scope_key"])

	assert.Equal(t, int64(1), producer.Metrics().MessagesSent.Load())
	assert.Equal(t, int64(0), producer.Metrics().MessagesFailed.Load())
}

func TestPublishEventRequiresTopic(t *testing.T) {
	producer := NewProducerWithWriter(&mockWriter{}, nil)

	err := producer.PublishEvent(context.Background(), "", "k", map[string]string{})

	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestPublishEventWriteFailureCounted(t *testing.T) {
	writer := &mockWriter{writeErr: assertErr("broker unreachable")}
	producer := NewProducerWithWriter(writer, nil)

	err := producer.PublishEvent(context.Background(), TopicExportCreated, "k", map[string]string{})

	require.Error(t, err)
	assert.Equal(t, int64(1), producer.Metrics().MessagesFailed.Load())
	assert.Equal(t, int64(0), producer.Metrics().MessagesSent.Load())
}

func TestPublishEventUnmarshalablePayload(t *testing.T) {
	producer := NewProducerWithWriter(&mockWriter{}, nil)

	err := producer.PublishEvent(context.Background(), TopicViewComputed, "k", func() {})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
}

func TestPublishAfterCloseRejected(t *testing.T) {
	writer := &mockWriter{}
	producer := NewProducerWithWriter(writer, nil)

	require.NoError(t, producer.Close())
	require.NoError(t, producer.Close())
	assert.True(t, writer.closed)

	err := producer.PublishEvent(context.Background(), TopicViewComputed, "k", map[string]string{})
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{}, nil)

	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
