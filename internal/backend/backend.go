// Package backend wires the Store and Queue interfaces to their
// configured concrete implementations (C3, C4), selected by
// config.Store.Type / config.Queue.Type.
package backend

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/meridian/internal/common"
	"github.com/ternarybob/meridian/internal/queue"
	qredis "github.com/ternarybob/meridian/internal/queue/redis"
	qsqlite "github.com/ternarybob/meridian/internal/queue/sqlite"
	"github.com/ternarybob/meridian/internal/store"
	sbadger "github.com/ternarybob/meridian/internal/store/badger"
	smongo "github.com/ternarybob/meridian/internal/store/mongo"
)

// OpenStore constructs the job store backend named by config.Store.Type.
func OpenStore(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (store.Store, error) {
	switch cfg.Store.Type {
	case "mongo":
		return smongo.New(ctx, cfg.Store.Mongo.URI, cfg.Store.Mongo.Database, cfg.Store.Mongo.Collection)
	case "badger", "":
		return sbadger.New(logger, sbadger.Config{Path: cfg.Store.Badger.Path})
	default:
		return nil, fmt.Errorf("unknown store.type %q", cfg.Store.Type)
	}
}

// OpenQueue constructs the queue backend named by config.Queue.Type.
func OpenQueue(ctx context.Context, cfg *common.Config) (queue.Queue, error) {
	switch cfg.Queue.Type {
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr: fmt.Sprintf("%s:%d", cfg.Queue.Redis.Host, cfg.Queue.Redis.Port),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach redis at %s:%d: %w", cfg.Queue.Redis.Host, cfg.Queue.Redis.Port, err)
		}
		return qredis.New(client), nil
	case "sqlite", "":
		return qsqlite.Open(ctx, cfg.Queue.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown queue.type %q", cfg.Queue.Type)
	}
}
