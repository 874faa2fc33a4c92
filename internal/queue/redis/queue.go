// Package redis is the production Queue backend (C4): RPUSH/BLPOP
// against redis-server lists, one list per channel. This mirrors the
// original implementation's redis client almost exactly — list-based
// FIFO queues with a blocking pop and no visibility timeout, since a
// popped message is immediately gone and this layer never redelivers it.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ternarybob/meridian/internal/models"
	"github.com/ternarybob/meridian/internal/queue"
)

// Queue is a go-redis-backed queue.Queue implementation.
type Queue struct {
	client redis.UniversalClient
}

// New wraps an already-constructed redis client. Accepting the
// interface (rather than dialing from a URL here) lets callers hand in
// either a real *redis.Client or a redismock client in tests.
func New(client redis.UniversalClient) *Queue {
	return &Queue{client: client}
}

func (q *Queue) Push(ctx context.Context, channel string, body []byte) error {
	if err := q.client.RPush(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("%w: rpush %s: %v", models.ErrQueue, channel, err)
	}
	return nil
}

// Pop issues a BLPOP with the given timeout. go-redis rounds sub-second
// timeouts down to whole seconds server-side; callers wanting tighter
// polling should prefer a shorter explicit timeout loop over relying on
// fractional precision here.
func (q *Queue) Pop(ctx context.Context, channel string, timeout time.Duration) (*queue.Message, error) {
	res, err := q.client.BLPop(ctx, timeout, channel).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: blpop %s: %v", models.ErrQueue, channel, err)
	}
	// BLPop returns [key, value]; res[0] is the channel name, res[1] the body.
	return &queue.Message{
		Body: []byte(res[1]),
		Ack:  func(ctx context.Context) error { return nil },
	}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}
