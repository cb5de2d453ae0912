package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/fd1az/craftcalc/internal/apperror"
)

// RedisConfig addresses a Redis instance.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key.
	Prefix string
}

// RedisStore shares entries between processes through Redis.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, apperror.New(apperror.CodeCacheBackend,
			apperror.WithCause(err),
			apperror.WithContext("redis "+cfg.Addr))
	}
	return &RedisStore{rdb: rdb, prefix: cfg.Prefix}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.New(apperror.CodeCacheMiss, apperror.WithContext(key))
	}
	if err != nil {
		return nil, apperror.New(apperror.CodeCacheBackend, apperror.WithCause(err))
	}
	return b, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return apperror.New(apperror.CodeCacheBackend, apperror.WithCause(err))
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.prefix+key).Err(); err != nil {
		return apperror.New(apperror.CodeCacheBackend, apperror.WithCause(err))
	}
	return nil
}

// Ping checks the connection, for health probes.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
