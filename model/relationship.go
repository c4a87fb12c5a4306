package model

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipType represents the type of a graph edge
type RelationshipType string

const (
	RelationshipTypeMentions         RelationshipType = "mentions"
	RelationshipTypeAbout            RelationshipType = "about"
	RelationshipTypeSimilarTo        RelationshipType = "similar_to"
	RelationshipTypeBelongsToCluster RelationshipType = "belongs_to_cluster"
)

// NodeType identifies which kind of graph node an edge endpoint refers to
type NodeType string

const (
	NodeTypeBookmark NodeType = "bookmark"
	NodeTypeEntity   NodeType = "entity"
	NodeTypeConcept  NodeType = "concept"
	NodeTypeCluster  NodeType = "cluster"
)

// NodeRef is a typed reference to a graph node, one side of a
// polymorphic edge
type NodeRef struct {
	Type NodeType  `json:"type"`
	ID   uuid.UUID `json:"id"`
}

// BookmarkRef returns a NodeRef pointing at a bookmark
func BookmarkRef(id uuid.UUID) NodeRef { return NodeRef{Type: NodeTypeBookmark, ID: id} }

// EntityRef returns a NodeRef pointing at an entity
func EntityRef(id uuid.UUID) NodeRef { return NodeRef{Type: NodeTypeEntity, ID: id} }

// ConceptRef returns a NodeRef pointing at a concept
func ConceptRef(id uuid.UUID) NodeRef { return NodeRef{Type: NodeTypeConcept, ID: id} }

// ClusterRef returns a NodeRef pointing at a cluster
func ClusterRef(id uuid.UUID) NodeRef { return NodeRef{Type: NodeTypeCluster, ID: id} }

// Relationship represents a directed, weighted edge between two graph
// nodes. An edge is unique per
// (user_id, source type+id, target type+id, relationship_type);
// re-asserting the same edge updates weight and metadata in place.
type Relationship struct {
	ID        uuid.UUID        `json:"id"`
	UserID    string           `json:"user_id"`
	Source    NodeRef          `json:"source"`
	Target    NodeRef          `json:"target"`
	Type      RelationshipType `json:"relationship_type"`
	Weight    float64          `json:"weight"`
	Metadata  Metadata         `json:"metadata,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
