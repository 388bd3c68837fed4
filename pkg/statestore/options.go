package statestore

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Option configures a Store
type Option func(*storeConfig)

type storeConfig struct {
	ttl         time.Duration
	sweepSpec   string
	redisClient *redis.Client
	logger      zerolog.Logger
	now         func() time.Time
}

// WithTTL sets how long an untouched state lives
func WithTTL(ttl time.Duration) Option {
	return func(c *storeConfig) {
		c.ttl = ttl
	}
}

// WithSweep sets the cron spec of the memory driver's eviction sweep.
// An empty spec disables the background sweep.
func WithSweep(spec string) Option {
	return func(c *storeConfig) {
		c.sweepSpec = spec
	}
}

// WithRedisClient sets the client for the redis driver
func WithRedisClient(client *redis.Client) Option {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithLogger sets the logger used for sweep and driver errors
func WithLogger(logger zerolog.Logger) Option {
	return func(c *storeConfig) {
		c.logger = logger
	}
}

// WithClock overrides time.Now for the memory driver
func WithClock(now func() time.Time) Option {
	return func(c *storeConfig) {
		c.now = now
	}
}
