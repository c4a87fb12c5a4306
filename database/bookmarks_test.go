package database

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/linkery/linkgraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookmarksDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewBookmarksDBHandler", func(t *testing.T) {
		handler, err := NewBookmarksDBHandler(database, testEmbeddingDim, true)
		assert.NoError(t, err, "Expected NewBookmarksDBHandler to not return an error")
		require.NotNil(t, handler, "Expected NewBookmarksDBHandler to return a non-nil instance")
	})

	t.Run("Invalid call NewBookmarksDBHandler with nil database", func(t *testing.T) {
		_, err := NewBookmarksDBHandler(nil, testEmbeddingDim, false)
		assert.Error(t, err, "Expected error when creating BookmarksDBHandler with nil database")
	})
}

func TestBookmarksUpsert(t *testing.T) {
	database := initDB(t)
	handler, err := NewBookmarksDBHandler(database, testEmbeddingDim, true)
	require.NoError(t, err)

	t.Run("Upsert keeps existing values on nil fields", func(t *testing.T) {
		userID := uuid.NewString()
		bookmark := &model.Bookmark{
			ID:        uuid.New(),
			UserID:    userID,
			Embedding: []float32{1, 0, 0, 0},
		}
		require.NoError(t, handler.UpsertBookmark(bookmark))

		// Re-upsert without an embedding must not erase the stored one
		again := &model.Bookmark{ID: bookmark.ID, UserID: userID}
		require.NoError(t, handler.UpsertBookmark(again))
		assert.Equal(t, []float32{1, 0, 0, 0}, again.Embedding, "Expected the stored embedding to survive")

		count, err := handler.CountBookmarks(userID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Upsert replaces the embedding when one is given", func(t *testing.T) {
		userID := uuid.NewString()
		bookmark := &model.Bookmark{ID: uuid.New(), UserID: userID, Embedding: []float32{1, 0, 0, 0}}
		require.NoError(t, handler.UpsertBookmark(bookmark))

		updated := &model.Bookmark{ID: bookmark.ID, UserID: userID, Embedding: []float32{0, 1, 0, 0}}
		require.NoError(t, handler.UpsertBookmark(updated))

		selected, err := handler.SelectBookmark(userID, bookmark.ID)
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 1, 0, 0}, selected.Embedding)
	})

	t.Run("Select missing bookmark returns NotFound", func(t *testing.T) {
		_, err := handler.SelectBookmark(uuid.NewString(), uuid.New())
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrNotFound), "Expected a NotFound error")
	})
}

func TestBookmarksNearest(t *testing.T) {
	database := initDB(t)
	handler, err := NewBookmarksDBHandler(database, testEmbeddingDim, true)
	require.NoError(t, err)

	userID := uuid.NewString()
	source := &model.Bookmark{ID: uuid.New(), UserID: userID, Embedding: []float32{1, 0, 0, 0}}
	identical := &model.Bookmark{ID: uuid.New(), UserID: userID, Embedding: []float32{1, 0, 0, 0}}
	near := &model.Bookmark{ID: uuid.New(), UserID: userID, Embedding: []float32{1, 1, 0, 0}}
	orthogonal := &model.Bookmark{ID: uuid.New(), UserID: userID, Embedding: []float32{0, 0, 1, 0}}
	unembedded := &model.Bookmark{ID: uuid.New(), UserID: userID}
	for _, bookmark := range []*model.Bookmark{source, identical, near, orthogonal, unembedded} {
		require.NoError(t, handler.UpsertBookmark(bookmark))
	}

	t.Run("Nearest bookmarks above the threshold", func(t *testing.T) {
		neighbors, err := handler.SelectNearestBookmarks(userID, source.ID, 0.65, 10)
		require.NoError(t, err)
		require.Len(t, neighbors, 2, "Expected orthogonal and unembedded bookmarks to be excluded")
		assert.Equal(t, identical.ID, neighbors[0].BookmarkID, "Expected the closest neighbor first")
		assert.InDelta(t, 1.0, neighbors[0].Weight, 0.001)
		assert.Equal(t, near.ID, neighbors[1].BookmarkID)
		assert.InDelta(t, 0.7071, neighbors[1].Weight, 0.001)
	})

	t.Run("Limit caps the neighbor list", func(t *testing.T) {
		neighbors, err := handler.SelectNearestBookmarks(userID, source.ID, 0.0, 1)
		require.NoError(t, err)
		require.Len(t, neighbors, 1)
		assert.Equal(t, identical.ID, neighbors[0].BookmarkID)
	})

	t.Run("All bookmarks for a user in insertion order", func(t *testing.T) {
		all, err := handler.SelectAllBookmarks(userID)
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})
}
