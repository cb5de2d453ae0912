// Package cache provides byte-oriented cache stores (in-process and Redis)
// and a typed JSON codec on top of them.
package cache

import (
	"context"
	"time"
)

// Store is a key/value cache with per-entry TTL. Get fails with
// apperror.CodeCacheMiss when the key is absent or expired.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)
