package jobs

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/linkery/linkgraph/helper"
	"github.com/linkery/linkgraph/model"
)

// Pipeline runs one worker pool per job family and enqueues the three
// extraction jobs a bookmark needs. Families are independent: entity
// extraction and similarity for the same bookmark may run
// concurrently.
type Pipeline struct {
	store   JobStore
	config  Config
	logger  *slog.Logger
	workers []*Worker
	cancel  context.CancelFunc
}

// NewPipeline creates a pipeline with one worker pool per handler.
// Handlers for job families not present in the map get no pool; their
// jobs stay pending until a pool exists.
func NewPipeline(store JobStore, handlers map[model.JobType]Handler, config Config, logger *slog.Logger) *Pipeline {
	pipeline := &Pipeline{
		store:  store,
		config: config.withDefaults(),
		logger: logger,
	}

	for _, jobType := range model.JobTypes {
		handler, ok := handlers[jobType]
		if !ok {
			continue
		}
		pipeline.workers = append(pipeline.workers, NewWorker(store, jobType, handler, pipeline.config, logger))
	}

	return pipeline
}

// Start launches all worker pools
func (p *Pipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, worker := range p.workers {
		worker.Start(ctx)
	}
	p.logger.Info("Job pipeline started", slog.Int("families", len(p.workers)), slog.Int("concurrency", p.config.Concurrency))
}

// Stop cancels all workers and waits until in-flight jobs have
// finished their current attempt
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	for _, worker := range p.workers {
		worker.Wait()
	}
	p.logger.Info("Job pipeline stopped")
}

// EnqueueBookmark enqueues one job per family for a bookmark. The
// payload travels to the handlers, typically carrying the extracted
// text.
func (p *Pipeline) EnqueueBookmark(userID string, bookmarkID uuid.UUID, payload model.Metadata) ([]*model.Job, error) {
	jobs := make([]*model.Job, 0, len(model.JobTypes))
	for _, jobType := range model.JobTypes {
		job, err := p.store.EnqueueJob(userID, bookmarkID, jobType, p.config.MaxAttempts, payload)
		if err != nil {
			return jobs, helper.NewError("enqueue "+string(jobType)+" job", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
