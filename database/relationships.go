package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/linkery/linkgraph/helper"
	"github.com/linkery/linkgraph/model"
	loadSql "github.com/linkery/linkgraph/sql"
)

// RelationshipsDBHandlerFunctions defines the interface for Relationships database operations.
type RelationshipsDBHandlerFunctions interface {
	UpsertRelationship(userID string, source model.NodeRef, target model.NodeRef, relationshipType model.RelationshipType, weight float64, metadata model.Metadata) (*model.Relationship, error)
	SelectRelationshipsFrom(userID string, source model.NodeRef, relationshipType *model.RelationshipType, limit int) ([]*model.Relationship, error)
	SelectRelationshipsTo(userID string, target model.NodeRef, relationshipType *model.RelationshipType, limit int) ([]*model.Relationship, error)
	SelectBookmarksSharingNode(userID string, node model.NodeRef, excludeBookmarkID uuid.UUID, relationshipType *model.RelationshipType, limit int) ([]*model.Neighbor, error)
	DeleteRelationshipsTouchingBookmark(userID string, bookmarkID uuid.UUID) (int, error)
	CountRelationships(userID string) (int, error)
}

// RelationshipsDBHandler handles relationship-related database operations
type RelationshipsDBHandler struct {
	db *helper.Database
}

// NewRelationshipsDBHandler creates a new relationships database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRelationshipsDBHandler(db *helper.Database, force bool) (*RelationshipsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	relationshipsDbHandler := &RelationshipsDBHandler{
		db: db,
	}

	err := loadSql.LoadRelationshipsSql(relationshipsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relationships sql", err)
	}

	err = relationshipsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RelationshipsDBHandler")

	return relationshipsDbHandler, nil
}

// CreateTable creates the 'relationships' table in the database.
// If the table already exists, it does not create it again.
// It also creates the node_type enum and all necessary indexes.
func (h *RelationshipsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_relationships();`)
	if err != nil {
		log.Panicf("error initializing relationships table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table relationships")

	return nil
}

// UpsertRelationship inserts an edge or, when the
// (source, target, relationship type) key already exists for the user,
// updates its weight and metadata in place. This is the idempotency
// contract all extraction writes rely on.
func (h *RelationshipsDBHandler) UpsertRelationship(userID string, source model.NodeRef, target model.NodeRef, relationshipType model.RelationshipType, weight float64, metadata model.Metadata) (*model.Relationship, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_relationship($1, $2, $3, $4, $5, $6, $7, $8)`,
		userID,
		source.Type,
		source.ID,
		target.Type,
		target.ID,
		relationshipType,
		weight,
		metadata,
	)

	relationship := &model.Relationship{}
	err := scanRelationship(row, relationship)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return relationship, nil
}

// SelectRelationshipsFrom retrieves edges originating at a node,
// ordered by weight descending, optionally filtered by type
func (h *RelationshipsDBHandler) SelectRelationshipsFrom(userID string, source model.NodeRef, relationshipType *model.RelationshipType, limit int) ([]*model.Relationship, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_relationships_from($1, $2, $3, $4, $5)`,
		userID,
		source.Type,
		source.ID,
		relationshipTypeArg(relationshipType),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectRelationships(rows)
}

// SelectRelationshipsTo retrieves edges ending at a node, ordered by
// weight descending, optionally filtered by type
func (h *RelationshipsDBHandler) SelectRelationshipsTo(userID string, target model.NodeRef, relationshipType *model.RelationshipType, limit int) ([]*model.Relationship, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_relationships_to($1, $2, $3, $4, $5)`,
		userID,
		target.Type,
		target.ID,
		relationshipTypeArg(relationshipType),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectRelationships(rows)
}

// SelectBookmarksSharingNode retrieves other bookmarks linked to the
// same concept/entity node, for co-occurrence traversal
func (h *RelationshipsDBHandler) SelectBookmarksSharingNode(userID string, node model.NodeRef, excludeBookmarkID uuid.UUID, relationshipType *model.RelationshipType, limit int) ([]*model.Neighbor, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_bookmarks_sharing_node($1, $2, $3, $4, $5, $6)`,
		userID,
		node.Type,
		node.ID,
		excludeBookmarkID,
		relationshipTypeArg(relationshipType),
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

// DeleteRelationshipsTouchingBookmark removes every edge where the
// bookmark appears as source or target, returning the number of
// deleted edges. Used by bookmark refresh before re-extraction.
func (h *RelationshipsDBHandler) DeleteRelationshipsTouchingBookmark(userID string, bookmarkID uuid.UUID) (int, error) {
	var deleted int
	err := h.db.Instance.QueryRow(
		`SELECT delete_relationships_touching_bookmark($1, $2)`,
		userID,
		bookmarkID,
	).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return deleted, nil
}

// CountRelationships returns the number of edges for a user
func (h *RelationshipsDBHandler) CountRelationships(userID string) (int, error) {
	var count int
	err := h.db.Instance.QueryRow(
		`SELECT count_relationships($1)`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}

func relationshipTypeArg(relationshipType *model.RelationshipType) interface{} {
	if relationshipType == nil {
		return nil
	}
	return *relationshipType
}

func collectRelationships(rows interface {
	rowScanner
	Next() bool
	Err() error
}) ([]*model.Relationship, error) {
	var relationships []*model.Relationship
	for rows.Next() {
		relationship := &model.Relationship{}
		if err := scanRelationship(rows, relationship); err != nil {
			return nil, helper.NewError("scan", err)
		}
		relationships = append(relationships, relationship)
	}
	return relationships, rows.Err()
}

func scanRelationship(row rowScanner, relationship *model.Relationship) error {
	return row.Scan(
		&relationship.ID,
		&relationship.UserID,
		&relationship.Source.Type,
		&relationship.Source.ID,
		&relationship.Target.Type,
		&relationship.Target.ID,
		&relationship.Type,
		&relationship.Weight,
		&relationship.Metadata,
		&relationship.CreatedAt,
		&relationship.UpdatedAt,
	)
}
