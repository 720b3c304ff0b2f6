package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/database"
)

const processedPrefix = "processed_event:"

// IdempotencyStore records processed event ids in Redis so redelivered
// messages are skipped by every consumer instance.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func (s *IdempotencyStore) Contains(ctx context.Context, eventID string) (seen bool, err error) {
	key := processedPrefix + eventID
	ctx, end := database.TraceRedis(ctx, "events.contains", key)
	defer func() { end(err) }()

	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists event: %w", err)
	}
	return n > 0, nil
}

// Add marks eventID processed. The first writer wins; later calls only
// keep the original timestamp.
func (s *IdempotencyStore) Add(ctx context.Context, eventID string) (err error) {
	key := processedPrefix + eventID
	ctx, end := database.TraceRedis(ctx, "events.add", key)
	defer func() { end(err) }()

	if err := s.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339Nano), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx event: %w", err)
	}
	return nil
}
