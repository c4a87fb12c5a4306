package model

import (
	"time"

	"github.com/google/uuid"
)

// EntityType classifies a named entity extracted from bookmark text
type EntityType string

const (
	EntityTypePerson     EntityType = "person"
	EntityTypeCompany    EntityType = "company"
	EntityTypeTechnology EntityType = "technology"
	EntityTypeProduct    EntityType = "product"
	EntityTypeLocation   EntityType = "location"
)

// Valid reports whether t is one of the known entity types
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypePerson, EntityTypeCompany, EntityTypeTechnology, EntityTypeProduct, EntityTypeLocation:
		return true
	}
	return false
}

// Entity represents a named entity (person, company, technology, ...)
// extracted from bookmark text. Name holds the last-seen display form,
// NormalizedName the lower-cased canonical key. An entity is unique per
// (user_id, normalized_name, entity_type).
type Entity struct {
	ID              uuid.UUID  `json:"id"`
	UserID          string     `json:"user_id"`
	Name            string     `json:"name"`
	NormalizedName  string     `json:"normalized_name"`
	Type            EntityType `json:"entity_type"`
	OccurrenceCount int        `json:"occurrence_count"`
	FirstSeenAt     time.Time  `json:"first_seen_at"`
	LastSeenAt      time.Time  `json:"last_seen_at"`
	Metadata        Metadata   `json:"metadata,omitempty"`
}

// Concept represents an abstract topic extracted from bookmark text.
// Unlike entities, concepts have no type dimension; the unique key is
// (user_id, normalized_name). ParentConceptID optionally forms a tree.
type Concept struct {
	ID              uuid.UUID  `json:"id"`
	UserID          string     `json:"user_id"`
	Name            string     `json:"name"`
	NormalizedName  string     `json:"normalized_name"`
	OccurrenceCount int        `json:"occurrence_count"`
	ParentConceptID *uuid.UUID `json:"parent_concept_id,omitempty"`
	FirstSeenAt     time.Time  `json:"first_seen_at"`
	LastSeenAt      time.Time  `json:"last_seen_at"`
}
