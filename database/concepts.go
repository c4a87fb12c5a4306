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

// ConceptsDBHandlerFunctions defines the interface for Concepts database operations.
type ConceptsDBHandlerFunctions interface {
	UpsertConcept(userID string, name string, normalizedName string, parentConceptID *uuid.UUID, mentionDelta int) (*model.Concept, error)
	SelectConcept(userID string, id uuid.UUID) (*model.Concept, error)
	SelectConcepts(userID string, limit int, offset int) ([]*model.Concept, error)
	CountConcepts(userID string) (int, error)
	SelectCoOccurringConcepts(userID string, conceptID uuid.UUID, minCoOccurrence int) ([]*model.RelatedConcept, error)
}

// ConceptsDBHandler handles concept-related database operations
type ConceptsDBHandler struct {
	db *helper.Database
}

// NewConceptsDBHandler creates a new concepts database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewConceptsDBHandler(db *helper.Database, force bool) (*ConceptsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	conceptsDbHandler := &ConceptsDBHandler{
		db: db,
	}

	err := loadSql.LoadConceptsSql(conceptsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load concepts sql", err)
	}

	err = conceptsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ConceptsDBHandler")

	return conceptsDbHandler, nil
}

// CreateTable creates the 'concepts' table in the database.
// If the table already exists, it does not create it again.
func (h *ConceptsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_concepts();`)
	if err != nil {
		log.Panicf("error initializing concepts table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table concepts")

	return nil
}

// UpsertConcept inserts a new concept or increments the occurrence
// count of an existing one. The parent link only applies on first
// creation; later mentions never re-parent a concept.
func (h *ConceptsDBHandler) UpsertConcept(userID string, name string, normalizedName string, parentConceptID *uuid.UUID, mentionDelta int) (*model.Concept, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_concept($1, $2, $3, $4, $5)`,
		userID,
		name,
		normalizedName,
		parentConceptID,
		mentionDelta,
	)

	concept := &model.Concept{}
	err := scanConcept(row, concept)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return concept, nil
}

// SelectConcept retrieves a concept by ID, returning model.ErrNotFound
// when it does not exist for the user
func (h *ConceptsDBHandler) SelectConcept(userID string, id uuid.UUID) (*model.Concept, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_concept($1, $2)`,
		userID,
		id,
	)

	concept := &model.Concept{}
	err := scanConcept(row, concept)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select concept", model.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return concept, nil
}

// SelectConcepts retrieves concepts for a user ordered by occurrence
// count descending
func (h *ConceptsDBHandler) SelectConcepts(userID string, limit int, offset int) ([]*model.Concept, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_concepts($1, $2, $3)`,
		userID,
		limit,
		offset,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var concepts []*model.Concept
	for rows.Next() {
		concept := &model.Concept{}
		if err := scanConcept(rows, concept); err != nil {
			return nil, helper.NewError("scan", err)
		}
		concepts = append(concepts, concept)
	}

	return concepts, rows.Err()
}

// CountConcepts returns the number of concepts for a user
func (h *ConceptsDBHandler) CountConcepts(userID string) (int, error) {
	var count int
	err := h.db.Instance.QueryRow(
		`SELECT count_concepts($1)`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}

// SelectCoOccurringConcepts returns concepts linked via 'about' edges
// to at least minCoOccurrence of the same bookmarks as conceptID,
// ordered by shared bookmark count descending
func (h *ConceptsDBHandler) SelectCoOccurringConcepts(userID string, conceptID uuid.UUID, minCoOccurrence int) ([]*model.RelatedConcept, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_co_occurring_concepts($1, $2, $3)`,
		userID,
		conceptID,
		minCoOccurrence,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var related []*model.RelatedConcept
	for rows.Next() {
		concept := &model.Concept{}
		var coOccurrence int
		err := rows.Scan(
			&concept.ID,
			&concept.UserID,
			&concept.Name,
			&concept.NormalizedName,
			&concept.OccurrenceCount,
			&concept.ParentConceptID,
			&concept.FirstSeenAt,
			&concept.LastSeenAt,
			&coOccurrence,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		related = append(related, &model.RelatedConcept{
			Concept:      concept,
			CoOccurrence: coOccurrence,
		})
	}

	return related, rows.Err()
}

func scanConcept(row rowScanner, concept *model.Concept) error {
	return row.Scan(
		&concept.ID,
		&concept.UserID,
		&concept.Name,
		&concept.NormalizedName,
		&concept.OccurrenceCount,
		&concept.ParentConceptID,
		&concept.FirstSeenAt,
		&concept.LastSeenAt,
	)
}
