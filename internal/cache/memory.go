package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/fd1az/craftcalc/internal/apperror"
)

// MemoryStore keeps entries in process.
type MemoryStore struct {
	c *gocache.Cache
}

// NewMemoryStore creates a store whose entries default to ttl and are swept
// every cleanup interval.
func NewMemoryStore(ttl, cleanup time.Duration) *MemoryStore {
	return &MemoryStore{c: gocache.New(ttl, cleanup)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, apperror.New(apperror.CodeCacheMiss, apperror.WithContext(key))
	}
	return v.([]byte), nil
}

// Set stores a copy of value. A zero ttl uses the store default.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// Len counts entries, expired ones not yet swept included.
func (m *MemoryStore) Len() int {
	return m.c.ItemCount()
}

func (m *MemoryStore) Close() error {
	m.c.Flush()
	return nil
}
