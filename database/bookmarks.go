package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/linkery/linkgraph/helper"
	"github.com/linkery/linkgraph/model"
	"github.com/pgvector/pgvector-go"
	loadSql "github.com/linkery/linkgraph/sql"
)

// BookmarksDBHandlerFunctions defines the interface for Bookmarks database operations.
type BookmarksDBHandlerFunctions interface {
	UpsertBookmark(bookmark *model.Bookmark) error
	SelectBookmark(userID string, id uuid.UUID) (*model.Bookmark, error)
	SelectAllBookmarks(userID string) ([]*model.Bookmark, error)
	SelectNearestBookmarks(userID string, bookmarkID uuid.UUID, threshold float64, limit int) ([]*model.Neighbor, error)
	CountBookmarks(userID string) (int, error)
}

// BookmarksDBHandler handles the graph store's bookmark projection:
// embeddings for similarity search and cluster membership for merges
type BookmarksDBHandler struct {
	db *helper.Database
}

// NewBookmarksDBHandler creates a new bookmarks database handler.
// embeddingDim is the dimension of the stored embeddings.
// If force is true, it will reload the SQL functions even if they already exist.
func NewBookmarksDBHandler(db *helper.Database, embeddingDim int, force bool) (*BookmarksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	bookmarksDbHandler := &BookmarksDBHandler{
		db: db,
	}

	err := loadSql.LoadBookmarksSql(bookmarksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load bookmarks sql", err)
	}

	err = bookmarksDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized BookmarksDBHandler")

	return bookmarksDbHandler, nil
}

// CreateTable creates the 'bookmarks' table in the database.
// If the table already exists, it does not create it again.
// It also creates the HNSW index on the embedding column.
func (h *BookmarksDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_bookmarks($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing bookmarks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table bookmarks")

	return nil
}

// UpsertBookmark inserts or refreshes the projection of an externally
// owned bookmark. A nil embedding or cluster id keeps the stored value.
func (h *BookmarksDBHandler) UpsertBookmark(bookmark *model.Bookmark) error {
	var embeddingArg interface{}
	if len(bookmark.Embedding) > 0 {
		embeddingArg = pgvector.NewVector(bookmark.Embedding)
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_bookmark($1, $2, $3, $4)`,
		bookmark.UserID,
		bookmark.ID,
		embeddingArg,
		bookmark.ClusterID,
	)

	err := scanBookmark(row, bookmark)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectBookmark retrieves a bookmark projection by ID, returning
// model.ErrNotFound when it does not exist for the user
func (h *BookmarksDBHandler) SelectBookmark(userID string, id uuid.UUID) (*model.Bookmark, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_bookmark($1, $2)`,
		userID,
		id,
	)

	bookmark := &model.Bookmark{}
	err := scanBookmark(row, bookmark)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select bookmark", model.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return bookmark, nil
}

// SelectAllBookmarks retrieves all bookmark projections for a user
func (h *BookmarksDBHandler) SelectAllBookmarks(userID string) ([]*model.Bookmark, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_all_bookmarks($1)`,
		userID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var bookmarks []*model.Bookmark
	for rows.Next() {
		bookmark := &model.Bookmark{}
		if err := scanBookmark(rows, bookmark); err != nil {
			return nil, helper.NewError("scan", err)
		}
		bookmarks = append(bookmarks, bookmark)
	}

	return bookmarks, rows.Err()
}

// SelectNearestBookmarks retrieves the cosine nearest neighbors of a
// bookmark's embedding above the similarity threshold, best first
func (h *BookmarksDBHandler) SelectNearestBookmarks(userID string, bookmarkID uuid.UUID, threshold float64, limit int) ([]*model.Neighbor, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_nearest_bookmarks($1, $2, $3, $4)`,
		userID,
		bookmarkID,
		threshold,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var neighbors []*model.Neighbor
	for rows.Next() {
		neighbor := &model.Neighbor{}
		if err := rows.Scan(&neighbor.BookmarkID, &neighbor.Weight); err != nil {
			return nil, helper.NewError("scan", err)
		}
		neighbors = append(neighbors, neighbor)
	}

	return neighbors, rows.Err()
}

// CountBookmarks returns the number of bookmark projections for a user
func (h *BookmarksDBHandler) CountBookmarks(userID string) (int, error) {
	var count int
	err := h.db.Instance.QueryRow(
		`SELECT count_bookmarks($1)`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}

func scanBookmark(row rowScanner, bookmark *model.Bookmark) error {
	return row.Scan(
		&bookmark.ID,
		&bookmark.UserID,
		pq.Array(&bookmark.Embedding),
		&bookmark.ClusterID,
		&bookmark.CreatedAt,
	)
}
