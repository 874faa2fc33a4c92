// Package sqlite is the development/test Queue backend: goqite queues
// backed by a single SQLite file, one goqite.Queue per channel name.
// This adapts the module's former goqite-backed queue manager — the
// Enqueue/Receive-with-delete-func/Extend shape below is carried over
// almost directly, generalized from one fixed queue to an arbitrary
// channel name per Push/Pop call.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"maragu.dev/goqite"

	"github.com/ternarybob/meridian/internal/models"
	"github.com/ternarybob/meridian/internal/queue"
)

// Queue is a goqite-backed queue.Queue implementation. Channels are
// created lazily on first use and cached, since goqite.New is cheap but
// each channel needs its own *goqite.Queue handle.
type Queue struct {
	db *sql.DB

	mu     sync.Mutex
	queues map[string]*goqite.Queue
}

// Open creates (if necessary) and opens the SQLite database at path and
// runs goqite's schema migration against it.
func Open(ctx context.Context, path string) (*Queue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid lock contention.

	if err := goqite.Setup(ctx, db); err != nil {
		return nil, fmt.Errorf("goqite setup: %w", err)
	}
	return &Queue{db: db, queues: make(map[string]*goqite.Queue)}, nil
}

func (q *Queue) channel(name string) *goqite.Queue {
	q.mu.Lock()
	defer q.mu.Unlock()
	if existing, ok := q.queues[name]; ok {
		return existing
	}
	// 30s of visibility is enough for any handler that isn't running a
	// subprocess; those extend their window explicitly mid-run.
	gq := goqite.New(goqite.NewOpts{DB: q.db, Name: name, Timeout: 30 * time.Second})
	q.queues[name] = gq
	return gq
}

func (q *Queue) Push(ctx context.Context, channelName string, body []byte) error {
	if err := q.channel(channelName).Send(ctx, goqite.Message{Body: body}); err != nil {
		return fmt.Errorf("%w: send %s: %v", models.ErrQueue, channelName, err)
	}
	return nil
}

// Pop polls Receive every 100ms until a message arrives or timeout
// elapses, since goqite.Receive is non-blocking. The returned message's
// Ack calls Delete — without it the message becomes visible again after
// the channel's 30s visibility timeout.
func (q *Queue) Pop(ctx context.Context, channelName string, timeout time.Duration) (*queue.Message, error) {
	gq := q.channel(channelName)
	deadline := time.Now().Add(timeout)
	for {
		msg, err := gq.Receive(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: receive %s: %v", models.ErrQueue, channelName, err)
		}
		if msg != nil {
			id := msg.ID
			return &queue.Message{
				Body: msg.Body,
				Ack: func(ctx context.Context) error {
					return gq.Delete(ctx, id)
				},
				Extend: func(ctx context.Context, d time.Duration) error {
					return gq.Extend(ctx, id, d)
				},
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (q *Queue) Close() error {
	return q.db.Close()
}
