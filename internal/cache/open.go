package cache

import (
	"context"
	"time"

	"github.com/fd1az/craftcalc/internal/apperror"
)

// Config selects and sizes a backend.
type Config struct {
	Backend string
	TTL     time.Duration
	Redis   RedisConfig
}

// Open builds the configured Store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(cfg.TTL, 2*cfg.TTL), nil
	case BackendRedis:
		s, err := NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, apperror.New(apperror.CodeConfigurationError,
		apperror.WithContext("unknown cache backend "+cfg.Backend))
}
