// internal/cache/redis.go

// Package cache pushes game event records onto a Redis list so an external
// historian can consume them. Publishing is best effort: the game never
// fails because the event log is down.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list the event records are pushed to.
const DefaultQueueName = "trainwreck_events"

// GameEventRecord is one state-machine transition, serialized for the historian.
type GameEventRecord struct {
	ID        uuid.UUID      `json:"id"`
	GameID    int            `json:"game_id"`
	ChatID    int64          `json:"chat_id"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Recorder wraps the Redis client. A nil Recorder drops every record, so
// callers never need to branch on whether Redis is configured.
type Recorder struct {
	rdb    *redis.Client
	queue  string
	logger *logrus.Logger
}

// Connect initializes a Recorder against addr, or returns an error if Redis
// does not answer a ping.
func Connect(ctx context.Context, addr string, db int, logger *logrus.Logger) (*Recorder, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &Recorder{rdb: rdb, queue: DefaultQueueName, logger: logger}, nil
}

// Record serializes the event and RPushes it; failures are logged and dropped.
func (r *Recorder) Record(ctx context.Context, rec GameEventRecord) {
	if r == nil {
		return
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().Unix()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		r.logger.WithError(err).Error("marshal game event record")
		return
	}
	if err := r.rdb.RPush(ctx, r.queue, data).Err(); err != nil {
		r.logger.WithError(err).Warn("push game event record")
	}
}

// Close releases the Redis client.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.rdb.Close()
}
