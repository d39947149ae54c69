package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	closed   bool
}

func (r *recordingChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	r.exchange, r.key, r.msg = exchange, key, msg
	return nil
}

func (r *recordingChannel) Close() error {
	r.closed = true
	return nil
}

func TestAMQPPublish(t *testing.T) {
	t.Parallel()

	ch := &recordingChannel{}
	p := &AMQP{ch: ch, exchange: "career_mentor"}

	require.NoError(t, p.Publish(context.Background(), Event{RunID: "run-1", Status: StatusCompleted, TargetRole: "ML Engineer"}))

	assert.Equal(t, "career_mentor", ch.exchange)
	assert.Equal(t, "analysis.completed", ch.key)
	assert.Equal(t, "run-1", ch.msg.MessageId)
	assert.Equal(t, "application/json", ch.msg.ContentType)

	var decoded Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, "ML Engineer", decoded.TargetRole)
	assert.False(t, decoded.At.IsZero())

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublishCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := &recordingChannel{}
	p := &AMQP{ch: ch, exchange: "x"}
	require.ErrorIs(t, p.Publish(ctx, Event{Status: StatusFailed}), context.Canceled)
	assert.Empty(t, ch.key)
}
