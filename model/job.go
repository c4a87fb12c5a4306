package model

import (
	"time"

	"github.com/google/uuid"
)

// JobType identifies one of the three extraction job families
type JobType string

const (
	JobTypeEntityExtraction JobType = "entity_extraction"
	JobTypeConceptAnalysis  JobType = "concept_analysis"
	JobTypeSimilarity       JobType = "similarity"
)

// JobTypes lists all job families enqueued per bookmark
var JobTypes = []JobType{JobTypeEntityExtraction, JobTypeConceptAnalysis, JobTypeSimilarity}

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a unit of asynchronous extraction work for a single bookmark.
// A running job holds a lease (LeaseExpiresAt) renewed on a heartbeat;
// once the lease expires without renewal any worker may re-claim the
// job. Delivery is therefore at-least-once and handlers must be
// idempotent, which the store's upsert contracts guarantee.
type Job struct {
	ID             uuid.UUID `json:"id"`
	UserID         string    `json:"user_id"`
	BookmarkID     uuid.UUID `json:"bookmark_id"`
	Type           JobType   `json:"job_type"`
	Status         JobStatus `json:"status"`
	Payload        Metadata  `json:"payload,omitempty"`
	Attempts       int       `json:"attempts"`
	MaxAttempts    int       `json:"max_attempts"`
	RunAfter       time.Time `json:"run_after"`
	LeaseExpiresAt time.Time `json:"lease_expires_at"`
	LastError      string    `json:"last_error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
