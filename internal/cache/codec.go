package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/fd1az/craftcalc/internal/apperror"
)

// JSON stores values of type V as JSON, optionally brotli-compressed.
type JSON[V any] struct {
	store    Store
	prefix   string
	compress bool
}

// NewJSON wraps store. Keys are namespaced with prefix.
func NewJSON[V any](store Store, prefix string, compress bool) *JSON[V] {
	return &JSON[V]{store: store, prefix: prefix, compress: compress}
}

// Get returns the cached value. A miss is (zero, false, nil); an entry that
// cannot be decoded is dropped and reported as a miss.
func (c *JSON[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, err := c.store.Get(ctx, c.prefix+key)
	if apperror.GetCode(err) == apperror.CodeCacheMiss {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}

	if c.compress {
		raw, err = io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
		if err != nil {
			_ = c.store.Delete(ctx, c.prefix+key)
			return zero, false, nil
		}
	}

	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		_ = c.store.Delete(ctx, c.prefix+key)
		return zero, false, nil
	}
	return v, true, nil
}

// Set encodes and stores v.
func (c *JSON[V]) Set(ctx context.Context, key string, v V, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return apperror.New(apperror.CodeInvalidFormat, apperror.WithCause(err))
	}

	if c.compress {
		var buf bytes.Buffer
		w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
		if _, err := w.Write(raw); err != nil {
			return apperror.New(apperror.CodeCacheBackend, apperror.WithCause(err))
		}
		if err := w.Close(); err != nil {
			return apperror.New(apperror.CodeCacheBackend, apperror.WithCause(err))
		}
		raw = buf.Bytes()
	}
	return c.store.Set(ctx, c.prefix+key, raw, ttl)
}

// Delete removes key.
func (c *JSON[V]) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.prefix+key)
}
