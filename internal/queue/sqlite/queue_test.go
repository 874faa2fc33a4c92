package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *Queue {
	path := filepath.Join(t.TempDir(), "queue.db")
	q, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestPushThenPopReturnsBody(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, "asr_requests", []byte(`{"step_id":"s1"}`)))

	msg, err := q.Pop(ctx, "asr_requests", time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, `{"step_id":"s1"}`, string(msg.Body))
}

func TestPopTimesOutWhenEmpty(t *testing.T) {
	q := newTestQueue(t)
	msg, err := q.Pop(context.Background(), "asr_requests", 150*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestChannelsAreIndependentFIFOs(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, "asr_requests", []byte("a1")))
	require.NoError(t, q.Push(ctx, "asr_requests", []byte("a2")))
	require.NoError(t, q.Push(ctx, "tts_requests", []byte("t1")))

	first, err := q.Pop(ctx, "asr_requests", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a1", string(first.Body))

	second, err := q.Pop(ctx, "asr_requests", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a2", string(second.Body))

	tts, err := q.Pop(ctx, "tts_requests", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "t1", string(tts.Body))
}

func TestAckDeletesMessageSoItIsNotRedelivered(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, "asr_requests", []byte("a1")))

	msg, err := q.Pop(ctx, "asr_requests", time.Second)
	require.NoError(t, err)
	require.NoError(t, msg.Ack(ctx))

	again, err := q.Pop(ctx, "asr_requests", 150*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestPoppedMessageSupportsVisibilityExtension(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, "asr_requests", []byte("a1")))

	msg, err := q.Pop(ctx, "asr_requests", time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg.Extend)
	require.NoError(t, msg.Extend(ctx, time.Minute))
	require.NoError(t, msg.Ack(ctx))
}
