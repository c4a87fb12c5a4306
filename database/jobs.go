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

// JobsDBHandlerFunctions defines the interface for Jobs database operations.
type JobsDBHandlerFunctions interface {
	EnqueueJob(userID string, bookmarkID uuid.UUID, jobType model.JobType, maxAttempts int, payload model.Metadata) (*model.Job, error)
	ClaimNextJob(jobType model.JobType, leaseDuration time.Duration) (*model.Job, error)
	RenewJobLease(id uuid.UUID, leaseDuration time.Duration) (bool, error)
	CompleteJob(id uuid.UUID) error
	FailJob(id uuid.UUID, jobError string, retryDelay time.Duration) (*model.Job, error)
	SelectJob(id uuid.UUID) (*model.Job, error)
	SelectJobsForBookmark(userID string, bookmarkID uuid.UUID) ([]*model.Job, error)
}

// JobsDBHandler handles job-related database operations
type JobsDBHandler struct {
	db *helper.Database
}

// NewJobsDBHandler creates a new jobs database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewJobsDBHandler(db *helper.Database, force bool) (*JobsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	jobsDbHandler := &JobsDBHandler{
		db: db,
	}

	err := loadSql.LoadJobsSql(jobsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load jobs sql", err)
	}

	err = jobsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized JobsDBHandler")

	return jobsDbHandler, nil
}

// CreateTable creates the 'jobs' table in the database.
// If the table already exists, it does not create it again.
func (h *JobsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_jobs();`)
	if err != nil {
		log.Panicf("error initializing jobs table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table jobs")

	return nil
}

// EnqueueJob creates a new pending job for a bookmark
func (h *JobsDBHandler) EnqueueJob(userID string, bookmarkID uuid.UUID, jobType model.JobType, maxAttempts int, payload model.Metadata) (*model.Job, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM enqueue_job($1, $2, $3, $4, $5)`,
		userID,
		bookmarkID,
		jobType,
		maxAttempts,
		payload,
	)

	job := &model.Job{}
	err := scanJob(row, job)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return job, nil
}

// ClaimNextJob claims the oldest runnable job of a family and marks
// it running with a fresh lease. Claiming uses FOR UPDATE SKIP LOCKED
// inside the database, so concurrent workers never double-claim.
// Returns (nil, nil) when no job is runnable.
func (h *JobsDBHandler) ClaimNextJob(jobType model.JobType, leaseDuration time.Duration) (*model.Job, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM claim_next_job($1, $2)`,
		jobType,
		leaseDuration.Seconds(),
	)

	job := &model.Job{}
	err := scanJob(row, job)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return job, nil
}

// RenewJobLease extends the lease of a running job. Returns false when
// the job is no longer running (completed, failed or reclaimed).
func (h *JobsDBHandler) RenewJobLease(id uuid.UUID, leaseDuration time.Duration) (bool, error) {
	var renewed bool
	err := h.db.Instance.QueryRow(
		`SELECT renew_job_lease($1, $2)`,
		id,
		leaseDuration.Seconds(),
	).Scan(&renewed)
	if err != nil {
		return false, helper.NewError("scan", err)
	}
	return renewed, nil
}

// CompleteJob marks a job completed
func (h *JobsDBHandler) CompleteJob(id uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT complete_job($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// FailJob records a failed attempt. The job goes back to pending with
// the given retry delay until its attempts are exhausted, then it is
// terminally failed and never picked up again.
func (h *JobsDBHandler) FailJob(id uuid.UUID, jobError string, retryDelay time.Duration) (*model.Job, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM fail_job($1, $2, $3)`,
		id,
		jobError,
		retryDelay.Seconds(),
	)

	job := &model.Job{}
	err := scanJob(row, job)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return job, nil
}

// SelectJob retrieves a job by ID, returning model.ErrNotFound when it
// does not exist
func (h *JobsDBHandler) SelectJob(id uuid.UUID) (*model.Job, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_job($1)`,
		id,
	)

	job := &model.Job{}
	err := scanJob(row, job)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select job", model.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return job, nil
}

// SelectJobsForBookmark retrieves all jobs for a bookmark, oldest first
func (h *JobsDBHandler) SelectJobsForBookmark(userID string, bookmarkID uuid.UUID) ([]*model.Job, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_jobs_for_bookmark($1, $2)`,
		userID,
		bookmarkID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job := &model.Job{}
		if err := scanJob(rows, job); err != nil {
			return nil, helper.NewError("scan", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func scanJob(row rowScanner, job *model.Job) error {
	return row.Scan(
		&job.ID,
		&job.UserID,
		&job.BookmarkID,
		&job.Type,
		&job.Status,
		&job.Payload,
		&job.Attempts,
		&job.MaxAttempts,
		&job.RunAfter,
		&job.LeaseExpiresAt,
		&job.LastError,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
}
