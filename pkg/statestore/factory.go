package statestore

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// New creates a Store for the given driver. The redis driver requires
// WithRedisClient.
func New(driver string, opts ...Option) (Store, error) {
	cfg := &storeConfig{
		ttl:    defaultTTL,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.ttl <= 0 {
		cfg.ttl = defaultTTL
	}

	switch driver {
	case DriverMemory, "":
		return newMemoryStore(cfg)
	case DriverRedis:
		if cfg.redisClient == nil {
			return nil, fmt.Errorf("%w: redis driver needs a client", ErrInvalidConfig)
		}
		return newRedisStore(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidDriver, driver)
	}
}
