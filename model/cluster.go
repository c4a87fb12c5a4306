package model

import (
	"time"

	"github.com/google/uuid"
)

// Cluster represents a group of bookmarks produced by an external
// clustering run. BookmarkCount always equals the number of bookmarks
// whose cluster_id references this cluster; MergeClusters preserves
// this invariant transactionally.
type Cluster struct {
	ID             uuid.UUID `json:"id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	CoherenceScore float64   `json:"coherence_score"`
	BookmarkCount  int       `json:"bookmark_count"`
	Centroid       []float32 `json:"centroid,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Bookmark is the store's projection of an externally owned bookmark:
// just the fields the graph needs (embedding for similarity search,
// cluster membership for merges). The full bookmark record lives with
// its owning service.
type Bookmark struct {
	ID        uuid.UUID  `json:"id"`
	UserID    string     `json:"user_id"`
	Embedding []float32  `json:"embedding,omitempty"`
	ClusterID *uuid.UUID `json:"cluster_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
