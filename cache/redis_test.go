package cache

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/linkery/linkgraph/helper"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, config Config) *RedisStore {
	t.Helper()

	teardown, port, err := helper.MustStartRedisContainer()
	if err != nil {
		t.Fatalf("could not start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := teardown(context.Background()); err != nil {
			log.Printf("could not teardown redis container: %v", err)
		}
	})

	client := redis.NewClient(&redis.Options{Addr: "localhost:" + port})
	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			log.Printf("could not close redis client: %v", err)
		}
	})

	return NewRedisStore(client, config)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	config := DefaultConfig()
	config.TTLs[NamespaceStats] = time.Second
	store := newTestRedisStore(t, config)

	t.Run("set then get returns the value", func(t *testing.T) {
		err := store.Set(ctx, NamespaceEntities, UserKey("user1", "list"), []string{"a", "b"})
		require.NoError(t, err)

		var got []string
		hit, err := store.Get(ctx, NamespaceEntities, UserKey("user1", "list"), &got)
		require.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, []string{"a", "b"}, got)
	})

	t.Run("missing key is a miss", func(t *testing.T) {
		var got string
		hit, err := store.Get(ctx, NamespaceEntities, "absent", &got)
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("prefix invalidation drops matching keys only", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, NamespaceSimilar, UserKey("user1", "b1"), 0.8))
		require.NoError(t, store.Set(ctx, NamespaceSimilar, UserKey("user1", "b2"), 0.7))
		require.NoError(t, store.Set(ctx, NamespaceSimilar, UserKey("user2", "b1"), 0.9))

		err := store.Invalidate(ctx, NamespaceSimilar, "user1")
		require.NoError(t, err)

		var got float64
		hit, err := store.Get(ctx, NamespaceSimilar, UserKey("user1", "b1"), &got)
		require.NoError(t, err)
		assert.False(t, hit)

		hit, err = store.Get(ctx, NamespaceSimilar, UserKey("user2", "b1"), &got)
		require.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, 0.9, got)
	})

	t.Run("values expire with the namespace ttl", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, NamespaceStats, UserKey("user1"), 42))

		var got int
		hit, err := store.Get(ctx, NamespaceStats, UserKey("user1"), &got)
		require.NoError(t, err)
		require.True(t, hit)

		time.Sleep(1200 * time.Millisecond)

		hit, err = store.Get(ctx, NamespaceStats, UserKey("user1"), &got)
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("stats count hits and misses", func(t *testing.T) {
		stats := store.Stats()
		assert.Greater(t, stats.Hits, int64(0))
		assert.Greater(t, stats.Misses, int64(0))
		assert.Greater(t, stats.Sets, int64(0))
		assert.Greater(t, stats.Invalidations, int64(0))
	})
}
