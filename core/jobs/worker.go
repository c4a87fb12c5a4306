// Package jobs runs the asynchronous extraction pipeline. Each job
// family gets a bounded pool of workers claiming jobs via database
// leases, so multiple processes can share one queue: a worker that
// dies without renewing its lease loses the job to the next claimer.
// Delivery is at-least-once; handlers must be idempotent.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linkery/linkgraph/model"
)

// JobStore is the slice of the storage layer the pipeline needs. It is
// satisfied by database.JobsDBHandler.
type JobStore interface {
	EnqueueJob(userID string, bookmarkID uuid.UUID, jobType model.JobType, maxAttempts int, payload model.Metadata) (*model.Job, error)
	ClaimNextJob(jobType model.JobType, leaseDuration time.Duration) (*model.Job, error)
	RenewJobLease(id uuid.UUID, leaseDuration time.Duration) (bool, error)
	CompleteJob(id uuid.UUID) error
	FailJob(id uuid.UUID, jobError string, retryDelay time.Duration) (*model.Job, error)
}

// Handler processes one claimed job. An error (or panic) counts as a
// failed attempt and triggers the retry policy.
type Handler func(ctx context.Context, job *model.Job) error

// Config holds the tunables of a worker pool
type Config struct {
	// Concurrency is the number of workers per job family
	Concurrency int `json:"concurrency"`
	// LeaseDuration must outlast a slow external call; renewals keep
	// the lease alive beyond it
	LeaseDuration time.Duration `json:"lease_duration"`
	// RenewInterval is the heartbeat period while a job is in flight
	RenewInterval time.Duration `json:"renew_interval"`
	// PollInterval is the idle sleep between empty claims
	PollInterval time.Duration `json:"poll_interval"`
	// MaxAttempts bounds retries before a job goes terminally failed
	MaxAttempts int `json:"max_attempts"`
	// BaseRetryDelay is doubled per attempt for the retry backoff
	BaseRetryDelay time.Duration `json:"base_retry_delay"`
}

// DefaultConfig returns the default worker tunables
func DefaultConfig() Config {
	return Config{
		Concurrency:    3,
		LeaseDuration:  5 * time.Minute,
		RenewInterval:  time.Minute,
		PollInterval:   2 * time.Second,
		MaxAttempts:    3,
		BaseRetryDelay: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = defaults.LeaseDuration
	}
	if c.RenewInterval <= 0 {
		c.RenewInterval = defaults.RenewInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.BaseRetryDelay <= 0 {
		c.BaseRetryDelay = defaults.BaseRetryDelay
	}
	return c
}

// Worker is a bounded pool processing one job family
type Worker struct {
	store   JobStore
	jobType model.JobType
	handler Handler
	config  Config
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewWorker creates a worker pool for one job family. Zero config
// fields fall back to the defaults.
func NewWorker(store JobStore, jobType model.JobType, handler Handler, config Config, logger *slog.Logger) *Worker {
	return &Worker{
		store:   store,
		jobType: jobType,
		handler: handler,
		config:  config.withDefaults(),
		logger:  logger,
	}
}

// Start launches the pool. Workers run until ctx is cancelled; Wait
// blocks until they have drained.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.claimLoop(ctx)
		}()
	}
}

// Wait blocks until all workers of the pool have stopped
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) claimLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.store.ClaimNextJob(w.jobType, w.config.LeaseDuration)
		if err != nil {
			w.logger.Error("Claiming job failed", slog.String("jobType", string(w.jobType)), slog.Any("error", err))
			w.sleep(ctx)
			continue
		}
		if job == nil {
			w.sleep(ctx)
			continue
		}

		w.processJob(ctx, job)
	}
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.config.PollInterval):
	}
}

func (w *Worker) processJob(ctx context.Context, job *model.Job) {
	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go w.heartbeat(heartbeatCtx, job.ID)

	err := w.runHandler(ctx, job)
	stopHeartbeat()

	if err == nil {
		if completeErr := w.store.CompleteJob(job.ID); completeErr != nil {
			w.logger.Error("Completing job failed", slog.String("jobID", job.ID.String()), slog.Any("error", completeErr))
		}
		return
	}

	failed, failErr := w.store.FailJob(job.ID, err.Error(), w.retryDelay(job.Attempts))
	if failErr != nil {
		w.logger.Error("Failing job failed", slog.String("jobID", job.ID.String()), slog.Any("error", failErr))
		return
	}

	if failed != nil && failed.Status == model.JobStatusFailed {
		w.logger.Error("Job failed terminally",
			slog.String("jobID", job.ID.String()),
			slog.String("jobType", string(w.jobType)),
			slog.Int("attempts", failed.Attempts),
			slog.Any("error", err))
		return
	}
	w.logger.Warn("Job attempt failed, will retry",
		slog.String("jobID", job.ID.String()),
		slog.String("jobType", string(w.jobType)),
		slog.Int("attempts", job.Attempts),
		slog.Any("error", err))
}

// runHandler converts handler panics into errors so one bad job cannot
// take down the pool
func (w *Worker) runHandler(ctx context.Context, job *model.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job handler: %v", r)
		}
	}()
	return w.handler(ctx, job)
}

func (w *Worker) heartbeat(ctx context.Context, jobID uuid.UUID) {
	ticker := time.NewTicker(w.config.RenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewed, err := w.store.RenewJobLease(jobID, w.config.LeaseDuration)
			if err != nil {
				w.logger.Error("Renewing job lease failed", slog.String("jobID", jobID.String()), slog.Any("error", err))
				continue
			}
			if !renewed {
				// Lease lost, another worker may own the job now
				w.logger.Warn("Job lease lost", slog.String("jobID", jobID.String()))
				return
			}
		}
	}
}

// retryDelay doubles the base delay per completed attempt, capped at
// the lease duration
func (w *Worker) retryDelay(attempts int) time.Duration {
	delay := w.config.BaseRetryDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= w.config.LeaseDuration {
			return w.config.LeaseDuration
		}
	}
	return delay
}
