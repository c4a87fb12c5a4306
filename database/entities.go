package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/linkery/linkgraph/helper"
	"github.com/linkery/linkgraph/model"
	loadSql "github.com/linkery/linkgraph/sql"
)

// EntitiesDBHandlerFunctions defines the interface for Entities database operations.
type EntitiesDBHandlerFunctions interface {
	UpsertEntity(userID string, name string, normalizedName string, entityType model.EntityType, mentionDelta int, metadata model.Metadata) (*model.Entity, error)
	SelectEntity(userID string, id uuid.UUID) (*model.Entity, error)
	SelectEntities(userID string, entityType *model.EntityType, limit int, offset int) ([]*model.Entity, error)
	CountEntities(userID string) (int, error)
}

// EntitiesDBHandler handles entity-related database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It initializes the database connection and loads entity-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := loadSql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		log.Panicf("error initializing entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

// UpsertEntity inserts a new entity or, when (normalizedName,
// entityType) already exists for the user, increments its occurrence
// count by mentionDelta, bumps last_seen_at and refreshes the display
// name. The conflict is resolved inside the database, so concurrent
// callers for the same key never create a duplicate row.
func (h *EntitiesDBHandler) UpsertEntity(userID string, name string, normalizedName string, entityType model.EntityType, mentionDelta int, metadata model.Metadata) (*model.Entity, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_entity($1, $2, $3, $4, $5, $6)`,
		userID,
		name,
		normalizedName,
		entityType,
		mentionDelta,
		metadata,
	)

	entity := &model.Entity{}
	err := scanEntity(row, entity)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectEntity retrieves an entity by ID, returning model.ErrNotFound
// when it does not exist for the user
func (h *EntitiesDBHandler) SelectEntity(userID string, id uuid.UUID) (*model.Entity, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_entity($1, $2)`,
		userID,
		id,
	)

	entity := &model.Entity{}
	err := scanEntity(row, entity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select entity", model.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectEntities retrieves entities for a user ordered by occurrence
// count descending, optionally filtered by type
func (h *EntitiesDBHandler) SelectEntities(userID string, entityType *model.EntityType, limit int, offset int) ([]*model.Entity, error) {
	var typeArg interface{}
	if entityType != nil {
		typeArg = *entityType
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_entities($1, $2, $3, $4)`,
		userID,
		typeArg,
		limit,
		offset,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		if err := scanEntity(rows, entity); err != nil {
			return nil, helper.NewError("scan", err)
		}
		entities = append(entities, entity)
	}

	return entities, rows.Err()
}

// CountEntities returns the number of entities for a user
func (h *EntitiesDBHandler) CountEntities(userID string) (int, error) {
	var count int
	err := h.db.Instance.QueryRow(
		`SELECT count_entities($1)`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row rowScanner, entity *model.Entity) error {
	return row.Scan(
		&entity.ID,
		&entity.UserID,
		&entity.Name,
		&entity.NormalizedName,
		&entity.Type,
		&entity.OccurrenceCount,
		&entity.FirstSeenAt,
		&entity.LastSeenAt,
		&entity.Metadata,
	)
}
