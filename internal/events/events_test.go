package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   int
	deadline bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, w.deadline = ctx.Deadline()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, time.Second, nil)

	e := New(TypeMessageCreated, "42", map[string]any{"content": "hello"})
	require.NoError(t, p.Publish(context.Background(), e))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "42", string(msg.Key))
	assert.True(t, w.deadline)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, TypeMessageCreated, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, TypeMessageCreated, decoded.Type)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newKafkaPublisher(w, time.Second, nil)

	err := p.Publish(context.Background(), New(TypeInventoryTransaction, "1", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestKafkaPublisher_CloseOnce(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, 0, nil)
	assert.Equal(t, 5*time.Second, p.writeTimeout)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)
}

func TestNew_AssignsUniqueIDs(t *testing.T) {
	a := New(TypeMessageDeleted, "", nil)
	b := New(TypeMessageDeleted, "", nil)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.OccurredAt.IsZero())
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), New(TypeMessagesCleared, "", nil)))
	assert.NoError(t, p.Close())
}
