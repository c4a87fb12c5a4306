package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shortTTLConfig() Config {
	config := DefaultConfig()
	config.TTLs[NamespaceStats] = 50 * time.Millisecond
	return config
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(DefaultConfig())

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
		hit, err := store.Get(ctx, NamespaceEntities, UserKey("user1", "absent"), &got)
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("namespaces do not collide", func(t *testing.T) {
		err := store.Set(ctx, NamespaceConcepts, UserKey("user1", "k"), 1)
		require.NoError(t, err)

		var got int
		hit, err := store.Get(ctx, NamespaceSimilar, UserKey("user1", "k"), &got)
		require.NoError(t, err)
		assert.False(t, hit)
	})
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(shortTTLConfig())

	err := store.Set(ctx, NamespaceStats, UserKey("user1"), 42)
	require.NoError(t, err)

	var got int
	hit, err := store.Get(ctx, NamespaceStats, UserKey("user1"), &got)
	require.NoError(t, err)
	require.True(t, hit)

	time.Sleep(80 * time.Millisecond)

	hit, err = store.Get(ctx, NamespaceStats, UserKey("user1"), &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestMemoryStoreInvalidate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(DefaultConfig())

	require.NoError(t, store.Set(ctx, NamespaceSimilar, UserKey("user1", "b1"), 0.8))
	require.NoError(t, store.Set(ctx, NamespaceSimilar, UserKey("user1", "b2"), 0.7))
	require.NoError(t, store.Set(ctx, NamespaceSimilar, UserKey("user2", "b1"), 0.9))

	t.Run("prefix invalidation drops matching keys only", func(t *testing.T) {
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
}

func TestMemoryStoreStats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(DefaultConfig())

	require.NoError(t, store.Set(ctx, NamespaceEntities, "k", "v"))

	var got string
	_, err := store.Get(ctx, NamespaceEntities, "k", &got)
	require.NoError(t, err)
	_, err = store.Get(ctx, NamespaceEntities, "absent", &got)
	require.NoError(t, err)
	require.NoError(t, store.Invalidate(ctx, NamespaceEntities, ""))

	stats := store.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, int64(1), stats.Invalidations)
}

func TestInvalidateUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(DefaultConfig())

	for _, namespace := range Namespaces {
		require.NoError(t, store.Set(ctx, namespace, UserKey("user1", "k"), "v"))
	}

	err := InvalidateUser(ctx, store, "user1")
	require.NoError(t, err)

	for _, namespace := range Namespaces {
		var got string
		hit, err := store.Get(ctx, namespace, UserKey("user1", "k"), &got)
		require.NoError(t, err)
		assert.False(t, hit, "expected namespace %v to be invalidated", namespace)
	}
}

func TestUserKey(t *testing.T) {
	assert.Equal(t, "user1", UserKey("user1"))
	assert.Equal(t, "user1:similar:b1", UserKey("user1", "similar", "b1"))
}
