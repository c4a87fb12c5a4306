// Package extract contains the agents that turn collaborator output
// (entity/concept classification, nearest-neighbor search) into graph
// writes. Collaborators are plain function types so callers can plug
// in an LLM-backed service, the local hugot defaults, or a fake in
// tests. Collaborator failure always degrades to an empty result,
// never to a pipeline crash.
package extract

import (
	"github.com/google/uuid"
	"github.com/linkery/linkgraph/model"
)

// ClassifyEntitiesFunc proposes raw entity candidates for a piece of
// text. May fail or return malformed data; the agent recovers.
type ClassifyEntitiesFunc func(text string) ([]*model.EntityCandidate, error)

// ClassifyConceptsFunc proposes weighted concept candidates for a
// piece of text. The embedding is passed through for collaborators
// that classify in vector space; it may be nil.
type ClassifyConceptsFunc func(text string, embedding []float32) ([]*model.ConceptCandidate, error)

// NearestNeighborsFunc returns bookmarks similar to the given one,
// scored in [0,1] and filtered to scores >= threshold
type NearestNeighborsFunc func(userID string, bookmarkID uuid.UUID, threshold float64) ([]*model.Neighbor, error)

// EmbedFunc generates an embedding vector for text
type EmbedFunc func(text string) ([]float32, error)

// Project2DFunc projects embedding vectors into 2D coordinates, e.g.
// via an external UMAP service
type Project2DFunc func(bookmarks []*model.Bookmark) ([]*model.ProjectedPoint, error)

// EntityStore is the slice of the storage layer the entity extractor
// writes through
type EntityStore interface {
	UpsertEntity(userID string, name string, normalizedName string, entityType model.EntityType, mentionDelta int, metadata model.Metadata) (*model.Entity, error)
}

// ConceptStore is the slice of the storage layer the concept analyzer
// writes through
type ConceptStore interface {
	UpsertConcept(userID string, name string, normalizedName string, parentConceptID *uuid.UUID, mentionDelta int) (*model.Concept, error)
}

// RelationshipStore is the slice of the storage layer the agents use
// for edges
type RelationshipStore interface {
	UpsertRelationship(userID string, source model.NodeRef, target model.NodeRef, relationshipType model.RelationshipType, weight float64, metadata model.Metadata) (*model.Relationship, error)
}
