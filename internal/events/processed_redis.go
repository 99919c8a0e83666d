package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const processedRedisPrefix = "relay:processed:"

// RedisProcessedStore claims events with SET NX so concurrent deliveries of
// the same update race on a single key.
type RedisProcessedStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisProcessedStore(rdb *redis.Client, ttl time.Duration) *RedisProcessedStore {
	if rdb == nil {
		panic("events: redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultProcessedTTL
	}
	return &RedisProcessedStore{rdb: rdb, ttl: ttl}
}

func (s *RedisProcessedStore) Claim(ctx context.Context, provider, eventID string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, processedRedisPrefix+processedKey(provider, eventID), time.Now().UTC().Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("events: claim processed: %w", err)
	}
	return ok, nil
}

func (s *RedisProcessedStore) Release(ctx context.Context, provider, eventID string) error {
	if err := s.rdb.Del(ctx, processedRedisPrefix+processedKey(provider, eventID)).Err(); err != nil {
		return fmt.Errorf("events: release processed: %w", err)
	}
	return nil
}
