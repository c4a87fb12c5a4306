package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/linkery/linkgraph/helper"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a redis-backed Store implementation for deployments
// where multiple processes share the cache tier. Values are stored as
// JSON with the namespace TTL applied by redis itself.
type RedisStore struct {
	client *redis.Client
	config Config

	hits          atomic.Int64
	misses        atomic.Int64
	sets          atomic.Int64
	invalidations atomic.Int64
}

// NewRedisStore creates a new redis-backed cache store
func NewRedisStore(client *redis.Client, config Config) *RedisStore {
	return &RedisStore{
		client: client,
		config: config,
	}
}

// Get decodes a cached value into dest, reporting a miss for absent or
// expired keys
func (s *RedisStore) Get(ctx context.Context, namespace Namespace, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, s.fullKey(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		s.misses.Add(1)
		return false, nil
	}
	if err != nil {
		return false, helper.NewError("redis get", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, helper.NewError("decode cached value", err)
	}

	s.hits.Add(1)
	return true, nil
}

// Set stores a value with the namespace TTL
func (s *RedisStore) Set(ctx context.Context, namespace Namespace, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return helper.NewError("encode cached value", err)
	}

	err = s.client.Set(ctx, s.fullKey(namespace, key), data, s.config.TTL(namespace)).Err()
	if err != nil {
		return helper.NewError("redis set", err)
	}

	s.sets.Add(1)
	return nil
}

// Invalidate drops every entry of the namespace whose key starts with
// keyPrefix, scanning instead of KEYS to stay incremental on large
// keyspaces
func (s *RedisStore) Invalidate(ctx context.Context, namespace Namespace, keyPrefix string) error {
	pattern := s.fullKey(namespace, keyPrefix) + "*"

	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return helper.NewError("redis del", err)
		}
	}
	if err := iter.Err(); err != nil {
		return helper.NewError("redis scan", err)
	}

	s.invalidations.Add(1)
	return nil
}

// Stats reports hit/miss counters for this process
func (s *RedisStore) Stats() Stats {
	return Stats{
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Sets:          s.sets.Load(),
		Invalidations: s.invalidations.Load(),
	}
}

func (s *RedisStore) fullKey(namespace Namespace, key string) string {
	return s.config.KeyPrefix + ":" + string(namespace) + ":" + key
}
