package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/linkery/linkgraph/cache"
	"github.com/linkery/linkgraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockNeighbors(neighbors []*model.Neighbor) NearestNeighborsFunc {
	return func(userID string, bookmarkID uuid.UUID, threshold float64) ([]*model.Neighbor, error) {
		return neighbors, nil
	}
}

func mockNeighborsError(userID string, bookmarkID uuid.UUID, threshold float64) ([]*model.Neighbor, error) {
	return nil, errors.New("vector search unavailable")
}

func newTestSimilarityComputer(neighbors NearestNeighborsFunc, threshold float64) (*SimilarityComputer, *fakeRelationshipStore, *cache.MemoryStore) {
	relationships := newFakeRelationshipStore()
	cacheStore := cache.NewMemoryStore(cache.DefaultConfig())
	computer := NewSimilarityComputer(neighbors, relationships, cacheStore, discardLogger(), threshold)
	return computer, relationships, cacheStore
}

func TestSimilarityComputerProcess(t *testing.T) {
	bookmarkID := uuid.New()

	t.Run("defaults the threshold", func(t *testing.T) {
		computer, _, _ := newTestSimilarityComputer(mockNeighbors(nil), 0)
		assert.Equal(t, DefaultSimilarityThreshold, computer.threshold)
	})

	t.Run("filters below threshold and self references", func(t *testing.T) {
		other := uuid.New()
		computer, _, _ := newTestSimilarityComputer(mockNeighbors([]*model.Neighbor{
			{BookmarkID: other, Weight: 0.8},
			{BookmarkID: uuid.New(), Weight: 0.5},
			{BookmarkID: bookmarkID, Weight: 0.99},
		}), 0.65)

		neighbors := computer.Process("user1", bookmarkID)
		require.Len(t, neighbors, 1)
		assert.Equal(t, other, neighbors[0].BookmarkID)
	})

	t.Run("collaborator failure degrades to empty", func(t *testing.T) {
		computer, _, _ := newTestSimilarityComputer(mockNeighborsError, 0)
		assert.Empty(t, computer.Process("user1", bookmarkID))
	})
}

func TestSimilarityComputerSave(t *testing.T) {
	ctx := context.Background()
	userID := "user1"
	bookmarkA := uuid.New()
	bookmarkB := uuid.New()

	t.Run("writes symmetric edges with the same weight", func(t *testing.T) {
		computer, relationships, _ := newTestSimilarityComputer(mockNeighbors([]*model.Neighbor{
			{BookmarkID: bookmarkB, Weight: 0.8},
		}), 0.65)

		saved := computer.Run(ctx, userID, bookmarkA)
		assert.Equal(t, 1, saved)
		assert.Len(t, relationships.edges, 2)

		forward := relationships.edge(userID, model.BookmarkRef(bookmarkA), model.BookmarkRef(bookmarkB), model.RelationshipTypeSimilarTo)
		reverse := relationships.edge(userID, model.BookmarkRef(bookmarkB), model.BookmarkRef(bookmarkA), model.RelationshipTypeSimilarTo)
		require.NotNil(t, forward)
		require.NotNil(t, reverse)
		assert.Equal(t, 0.8, forward.Weight)
		assert.Equal(t, 0.8, reverse.Weight)
	})

	t.Run("failing pair is skipped, later pairs still saved", func(t *testing.T) {
		bookmarkC := uuid.New()
		computer, relationships, _ := newTestSimilarityComputer(mockNeighbors([]*model.Neighbor{
			{BookmarkID: bookmarkB, Weight: 0.9},
			{BookmarkID: bookmarkC, Weight: 0.7},
		}), 0.65)
		relationships.failTarget = bookmarkB

		saved := computer.Run(ctx, userID, bookmarkA)
		assert.Equal(t, 1, saved)
		assert.NotNil(t, relationships.edge(userID, model.BookmarkRef(bookmarkA), model.BookmarkRef(bookmarkC), model.RelationshipTypeSimilarTo))
	})

	t.Run("invalidates cached similarity for both bookmarks", func(t *testing.T) {
		computer, _, cacheStore := newTestSimilarityComputer(mockNeighbors([]*model.Neighbor{
			{BookmarkID: bookmarkB, Weight: 0.8},
		}), 0.65)

		keyA := cache.UserKey(userID, bookmarkA.String(), "1", "20")
		keyB := cache.UserKey(userID, bookmarkB.String(), "1", "20")
		require.NoError(t, cacheStore.Set(ctx, cache.NamespaceSimilar, keyA, "stale"))
		require.NoError(t, cacheStore.Set(ctx, cache.NamespaceSimilar, keyB, "stale"))

		computer.Run(ctx, userID, bookmarkA)

		var got string
		hit, err := cacheStore.Get(ctx, cache.NamespaceSimilar, keyA, &got)
		require.NoError(t, err)
		assert.False(t, hit)
		hit, err = cacheStore.Get(ctx, cache.NamespaceSimilar, keyB, &got)
		require.NoError(t, err)
		assert.False(t, hit)
	})
}
