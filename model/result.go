package model

import "github.com/google/uuid"

// RelatedBookmark represents a bookmark reached by graph traversal
type RelatedBookmark struct {
	BookmarkID uuid.UUID `json:"bookmark_id"`
	Weight     float64   `json:"weight"`
	Depth      int       `json:"depth"`
	// Via names the shared concept/entity the path went through,
	// empty for direct similar_to edges
	Via string `json:"via,omitempty"`
}

// RelatedConcept represents a concept co-occurring with another concept
type RelatedConcept struct {
	Concept      *Concept `json:"concept"`
	CoOccurrence int      `json:"co_occurrence"`
}

// MergeResult reports the outcome of a cluster merge
type MergeResult struct {
	TargetID    uuid.UUID `json:"target_id"`
	MergedCount int       `json:"merged_count"`
}

// GraphStats summarizes a user's knowledge graph
type GraphStats struct {
	BookmarkCount     int       `json:"bookmark_count"`
	EntityCount       int       `json:"entity_count"`
	ConceptCount      int       `json:"concept_count"`
	RelationshipCount int       `json:"relationship_count"`
	ClusterCount      int       `json:"cluster_count"`
	TopEntities       []*Entity `json:"top_entities,omitempty"`
}

// ProjectedPoint is a bookmark embedding projected into 2D by an
// external projection collaborator
type ProjectedPoint struct {
	ID uuid.UUID `json:"id"`
	X  float64   `json:"x"`
	Y  float64   `json:"y"`
}
