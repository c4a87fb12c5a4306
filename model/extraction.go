package model

import "github.com/google/uuid"

// EntityCandidate is a raw (text, type) proposal from an entity
// classification collaborator, before normalization
type EntityCandidate struct {
	Text    string     `json:"text"`
	Type    EntityType `json:"type"`
	Context string     `json:"context,omitempty"`
}

// ConceptCandidate is a raw concept proposal from a concept
// classification collaborator
type ConceptCandidate struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// ExtractedEntity is a normalized, in-call-deduplicated entity ready
// to be upserted. Mentions counts case-insensitive occurrences of the
// entity in the source text; one classification call produces at most
// one ExtractedEntity per (Key, Type).
type ExtractedEntity struct {
	Name     string     `json:"name"`
	Key      string     `json:"key"`
	Type     EntityType `json:"type"`
	Context  string     `json:"context,omitempty"`
	Mentions int        `json:"mentions"`
}

// ExtractedConcept is a normalized, deduplicated concept ready to be
// upserted
type ExtractedConcept struct {
	Name     string  `json:"name"`
	Key      string  `json:"key"`
	Weight   float64 `json:"weight"`
	Mentions int     `json:"mentions"`
}

// Neighbor is a (bookmark, score) pair returned by a nearest-neighbor
// collaborator
type Neighbor struct {
	BookmarkID uuid.UUID `json:"bookmark_id"`
	Weight     float64   `json:"weight"`
}
