// Package cache provides the namespaced read-through caches fronting
// the graph store. Each namespace has an independent TTL; invalidation
// is prefix-scoped so callers can drop "everything for this user"
// without enumerating exact keys. Staleness up to the namespace TTL is
// an accepted trade-off: there is no write-through guarantee.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Namespace identifies one of the tiered caches
type Namespace string

const (
	NamespaceSimilar  Namespace = "similar"
	NamespaceEntities Namespace = "entities"
	NamespaceConcepts Namespace = "concepts"
	NamespaceStats    Namespace = "stats"
)

// Namespaces lists all cache namespaces
var Namespaces = []Namespace{NamespaceSimilar, NamespaceEntities, NamespaceConcepts, NamespaceStats}

// Config holds the per-namespace TTLs and the key prefix shared by all
// cache entries
type Config struct {
	KeyPrefix string                      `json:"key_prefix"`
	TTLs      map[Namespace]time.Duration `json:"ttls"`
}

// DefaultConfig returns the default TTL policy
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "linkgraph",
		TTLs: map[Namespace]time.Duration{
			NamespaceSimilar:  30 * time.Minute,
			NamespaceEntities: time.Hour,
			NamespaceConcepts: time.Hour,
			NamespaceStats:    10 * time.Minute,
		},
	}
}

// TTL returns the expiry for a namespace, falling back to the default
// policy for namespaces the config does not mention
func (c Config) TTL(namespace Namespace) time.Duration {
	if ttl, ok := c.TTLs[namespace]; ok {
		return ttl
	}
	return DefaultConfig().TTLs[namespace]
}

// Stats reports cache effectiveness counters
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Sets          int64 `json:"sets"`
	Invalidations int64 `json:"invalidations"`
}

// Store is a namespaced cache with TTL expiry and prefix-scoped
// invalidation. Get decodes a cached value into dest and reports
// whether the key was present and fresh.
type Store interface {
	Get(ctx context.Context, namespace Namespace, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, namespace Namespace, key string, value interface{}) error
	Invalidate(ctx context.Context, namespace Namespace, keyPrefix string) error
	Stats() Stats
}

// UserKey builds a compound cache key scoped by user, so a bare userID
// prefix invalidates every entry for that user
func UserKey(userID string, parts ...string) string {
	key := userID
	for _, part := range parts {
		key = fmt.Sprintf("%v:%v", key, part)
	}
	return key
}

// InvalidateUser drops every cached entry for a user across all
// namespaces
func InvalidateUser(ctx context.Context, store Store, userID string) error {
	for _, namespace := range Namespaces {
		if err := store.Invalidate(ctx, namespace, userID); err != nil {
			return err
		}
	}
	return nil
}
