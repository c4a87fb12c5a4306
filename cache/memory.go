package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linkery/linkgraph/helper"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store implementation. Values are stored
// JSON-encoded so Get behaves identically to the redis-backed store.
// Expired entries are dropped lazily on access.
type MemoryStore struct {
	config Config

	mu      sync.RWMutex
	entries map[string]memoryEntry

	hits          atomic.Int64
	misses        atomic.Int64
	sets          atomic.Int64
	invalidations atomic.Int64
}

// NewMemoryStore creates a new in-process cache store
func NewMemoryStore(config Config) *MemoryStore {
	return &MemoryStore{
		config:  config,
		entries: make(map[string]memoryEntry),
	}
}

// Get decodes a cached value into dest, reporting a miss for absent or
// expired keys
func (s *MemoryStore) Get(ctx context.Context, namespace Namespace, key string, dest interface{}) (bool, error) {
	fullKey := s.fullKey(namespace, key)

	s.mu.RLock()
	entry, ok := s.entries[fullKey]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		if ok {
			s.mu.Lock()
			delete(s.entries, fullKey)
			s.mu.Unlock()
		}
		s.misses.Add(1)
		return false, nil
	}

	if err := json.Unmarshal(entry.data, dest); err != nil {
		return false, helper.NewError("decode cached value", err)
	}

	s.hits.Add(1)
	return true, nil
}

// Set stores a value with the namespace TTL
func (s *MemoryStore) Set(ctx context.Context, namespace Namespace, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return helper.NewError("encode cached value", err)
	}

	s.mu.Lock()
	s.entries[s.fullKey(namespace, key)] = memoryEntry{
		data:      data,
		expiresAt: time.Now().Add(s.config.TTL(namespace)),
	}
	s.mu.Unlock()

	s.sets.Add(1)
	return nil
}

// Invalidate drops every entry of the namespace whose key starts with
// keyPrefix. An empty prefix drops the whole namespace.
func (s *MemoryStore) Invalidate(ctx context.Context, namespace Namespace, keyPrefix string) error {
	prefix := s.fullKey(namespace, keyPrefix)

	s.mu.Lock()
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()

	s.invalidations.Add(1)
	return nil
}

// Stats reports hit/miss counters
func (s *MemoryStore) Stats() Stats {
	return Stats{
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Sets:          s.sets.Load(),
		Invalidations: s.invalidations.Load(),
	}
}

func (s *MemoryStore) fullKey(namespace Namespace, key string) string {
	return s.config.KeyPrefix + ":" + string(namespace) + ":" + key
}
