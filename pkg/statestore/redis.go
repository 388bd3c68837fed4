package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const stateKeyPrefix = "ikigai:state:"

// RedisStore keeps states in Redis with a sliding TTL
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func newRedisStore(cfg *storeConfig) *RedisStore {
	return &RedisStore{
		client: cfg.redisClient,
		ttl:    cfg.ttl,
		logger: cfg.logger.With().Str("component", "statestore").Logger(),
	}
}

// Get implements Store
func (s *RedisStore) Get(ctx context.Context, key string) (*SessionState, error) {
	k := s.key(key)
	val, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state %s: %w", key, err)
	}

	var state SessionState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", key, err)
	}

	if err := s.client.Expire(ctx, k, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to refresh state TTL")
	}

	return &state, nil
}

// Put implements Store
func (s *RedisStore) Put(ctx context.Context, key string, state *SessionState) error {
	val, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.key(key), val, s.ttl).Err(); err != nil {
		return fmt.Errorf("put state %s: %w", key, err)
	}
	return nil
}

// Delete implements Store
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("delete state %s: %w", key, err)
	}
	return nil
}

// Close implements Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(key string) string {
	return stateKeyPrefix + key
}
