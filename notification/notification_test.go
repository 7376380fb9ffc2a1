package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trellis.io/ldp/queue"
)

func TestEmitPublishesActivityStreamsEvent(t *testing.T) {
	dialer, ch := queue.NewMockAMQPDialer()
	emitter, err := NewEmitter(dialer, "amqp://broker", "trellis.events", "resource.mutations")
	require.NoError(t, err)

	err = emitter.Emit(context.Background(), Event{
		Type:             EventCreate,
		Object:           "http://example.org/r1",
		InteractionModel: "http://www.w3.org/ns/ldp#BasicContainer",
		Actor:            "http://example.org/agents/alice",
		Created:          time.Unix(1000, 0).UTC(),
	})
	require.NoError(t, err)
	require.Len(t, ch.PublishedMessages, 1)
	assert.Equal(t, "resource.mutations", ch.LastKey)
	assert.Equal(t, "trellis.events", ch.LastExchange)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(ch.PublishedMessages[0].Body, &decoded))
	assert.Equal(t, "Create", decoded["type"])
	obj := decoded["object"].(map[string]any)
	assert.Equal(t, "http://example.org/r1", obj["id"])
	types := obj["type"].([]any)
	assert.Contains(t, types, "Container")
}

func TestEmitPropagatesDialError(t *testing.T) {
	dialer := queue.NewMockAMQPDialerWithError(errors.New("connection refused"))
	emitter, err := NewEmitter(dialer, "amqp://broker", "trellis.events", "resource.mutations")
	require.NoError(t, err)

	err = emitter.Emit(context.Background(), Event{Type: EventDelete, Object: "http://example.org/r1"})
	assert.Error(t, err)
}
