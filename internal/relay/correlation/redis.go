package correlation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "relay:corr:"

// RedisStore keeps correlations in Redis with a per-key TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a correlation store backed by Redis.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if rdb == nil {
		panic("correlation: redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func redisKey(operatorMessageID int) string {
	return redisKeyPrefix + strconv.Itoa(operatorMessageID)
}

func (s *RedisStore) Remember(ctx context.Context, operatorMessageID int, senderChatID int64) error {
	if err := s.rdb.Set(ctx, redisKey(operatorMessageID), senderChatID, s.ttl).Err(); err != nil {
		return fmt.Errorf("correlation: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, operatorMessageID int) (int64, bool, error) {
	chatID, err := s.rdb.Get(ctx, redisKey(operatorMessageID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("correlation: redis get: %w", err)
	}
	return chatID, true, nil
}
