package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/meridian/internal/models"
)

func TestPushIssuesRPush(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := New(client)

	mock.ExpectRPush("asr_requests", []byte(`{"step_id":"s1"}`)).SetVal(1)

	err := q.Push(context.Background(), "asr_requests", []byte(`{"step_id":"s1"}`))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPopReturnsMessageOnHit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := New(client)

	mock.ExpectBLPop(5*time.Second, "asr_requests").SetVal([]string{"asr_requests", `{"step_id":"s1"}`})

	msg, err := q.Pop(context.Background(), "asr_requests", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, `{"step_id":"s1"}`, string(msg.Body))
	assert.NoError(t, msg.Ack(context.Background()))
}

func TestPopReturnsNilOnTimeout(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := New(client)

	mock.ExpectBLPop(time.Second, "asr_requests").RedisNil()

	msg, err := q.Pop(context.Background(), "asr_requests", time.Second)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestPopWrapsErrQueueOnFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := New(client)

	mock.ExpectBLPop(time.Second, "asr_requests").SetErr(errors.New("connection refused"))

	_, err := q.Pop(context.Background(), "asr_requests", time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrQueue))
}
