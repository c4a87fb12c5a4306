package linkgraph

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/linkery/linkgraph/cache"
	"github.com/linkery/linkgraph/core/extract"
	"github.com/linkery/linkgraph/core/jobs"
	"github.com/linkery/linkgraph/core/query"
	"github.com/linkery/linkgraph/database"
	"github.com/linkery/linkgraph/helper"
	"github.com/linkery/linkgraph/model"
	loadSql "github.com/linkery/linkgraph/sql"
)

// defaultNeighborLimit caps the candidates returned by the built-in
// pgvector nearest-neighbor search
const defaultNeighborLimit = 20

// LinkGraph provides a unified interface to the knowledge graph: the
// storage handlers, the tiered cache, the extraction agents, the job
// pipeline and the query service
type LinkGraph struct {
	DB            *helper.Database
	Entities      *database.EntitiesDBHandler
	Concepts      *database.ConceptsDBHandler
	Relationships *database.RelationshipsDBHandler
	Clusters      *database.ClustersDBHandler
	Bookmarks     *database.BookmarksDBHandler
	Jobs          *database.JobsDBHandler
	Cache         cache.Store
	Query         *query.Service
	Pipeline      *jobs.Pipeline

	// External collaborators, settable before extraction starts
	classifyEntities extract.ClassifyEntitiesFunc
	classifyConcepts extract.ClassifyConceptsFunc
	neighbors        extract.NearestNeighborsFunc
	embedder         extract.EmbedFunc
	project2D        extract.Project2DFunc

	jobConfig jobs.Config
	// Logging
	log *slog.Logger
}

// NewLinkGraph creates a new LinkGraph instance with all handlers
// initialized. The cache defaults to the in-process memory store; use
// SetCache to put redis in front of the store instead. Collaborators
// (entity/concept classification, embedding) are unset until
// SetEntityClassifier etc. or UseDefaultCollaborators is called;
// nearest-neighbor search defaults to pgvector over the stored
// bookmark embeddings.
func NewLinkGraph(config *helper.DatabaseConfiguration, embeddingDim int) (*LinkGraph, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("linkgraph", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers, force=false to not reload if functions
	// already exist
	entities, err := database.NewEntitiesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	concepts, err := database.NewConceptsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create concepts handler", err)
	}

	relationships, err := database.NewRelationshipsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create relationships handler", err)
	}

	clusters, err := database.NewClustersDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create clusters handler", err)
	}

	bookmarks, err := database.NewBookmarksDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create bookmarks handler", err)
	}

	jobsHandler, err := database.NewJobsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create jobs handler", err)
	}

	graph := &LinkGraph{
		DB:            db,
		Entities:      entities,
		Concepts:      concepts,
		Relationships: relationships,
		Clusters:      clusters,
		Bookmarks:     bookmarks,
		Jobs:          jobsHandler,
		Cache:         cache.NewMemoryStore(cache.DefaultConfig()),
		jobConfig:     jobs.DefaultConfig(),
		log:           logger,
	}
	graph.neighbors = graph.pgvectorNeighbors
	graph.rebuildQueryService()

	return graph, nil
}

// Close closes the database connection
func (g *LinkGraph) Close() error {
	if g.DB != nil && g.DB.Instance != nil {
		return g.DB.Instance.Close()
	}
	return nil
}

// SetCache replaces the cache store, e.g. with a redis-backed one
func (g *LinkGraph) SetCache(store cache.Store) {
	g.Cache = store
	g.rebuildQueryService()
}

// SetEntityClassifier sets the entity classification collaborator
func (g *LinkGraph) SetEntityClassifier(classify extract.ClassifyEntitiesFunc) {
	g.classifyEntities = classify
}

// SetConceptClassifier sets the concept classification collaborator
func (g *LinkGraph) SetConceptClassifier(classify extract.ClassifyConceptsFunc) {
	g.classifyConcepts = classify
}

// SetEmbedder sets the embedding collaborator used when storing a
// bookmark's projection
func (g *LinkGraph) SetEmbedder(embedder extract.EmbedFunc) {
	g.embedder = embedder
}

// SetNearestNeighbors replaces the built-in pgvector nearest-neighbor
// search with an external collaborator
func (g *LinkGraph) SetNearestNeighbors(neighbors extract.NearestNeighborsFunc) {
	g.neighbors = neighbors
}

// SetProject2D sets the 2D projection collaborator used by
// ProjectEmbeddings
func (g *LinkGraph) SetProject2D(project extract.Project2DFunc) {
	g.project2D = project
}

// SetJobConfig overrides the job pipeline tunables. Takes effect on
// the next StartPipeline call.
func (g *LinkGraph) SetJobConfig(config jobs.Config) {
	g.jobConfig = config
}

// UseDefaultCollaborators sets up local hugot-backed collaborators:
// the distilbert-NER entity classifier and the all-MiniLM-L6-v2
// embedder (384 dimensions). Concept classification stays unset, it
// needs an LLM-grade collaborator.
func (g *LinkGraph) UseDefaultCollaborators() error {
	classify, err := extract.DefaultEntityClassifier()
	if err != nil {
		return helper.NewError("create default entity classifier", err)
	}
	embedder, err := extract.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	g.classifyEntities = classify
	g.embedder = embedder
	return nil
}

// ExtractAndSave runs all three extraction agents synchronously for a
// bookmark: entities, concepts and similarity. When an embedder is
// set, the bookmark's embedding is stored first so similarity search
// has a vector to work with. Collaborator failures degrade to empty
// results; the returned counts are the persisted entities and
// concepts.
func (g *LinkGraph) ExtractAndSave(ctx context.Context, userID string, bookmarkID uuid.UUID, content string) (int, int, error) {
	embedding, err := g.storeBookmarkProjection(userID, bookmarkID, content)
	if err != nil {
		return 0, 0, err
	}

	savedEntities := 0
	if g.classifyEntities != nil {
		savedEntities = g.entityExtractor().Run(ctx, userID, bookmarkID, content)
	}

	savedConcepts := 0
	if g.classifyConcepts != nil {
		savedConcepts = g.conceptAnalyzer().Run(ctx, userID, bookmarkID, content, embedding)
	}

	g.similarityComputer().Run(ctx, userID, bookmarkID)

	g.log.Info("Extracted bookmark",
		slog.String("bookmark_id", bookmarkID.String()),
		slog.Int("entities", savedEntities),
		slog.Int("concepts", savedConcepts))
	return savedEntities, savedConcepts, nil
}

// EnqueueBookmark stores the bookmark's embedding projection and
// enqueues the three extraction job families for asynchronous
// processing
func (g *LinkGraph) EnqueueBookmark(userID string, bookmarkID uuid.UUID, content string) ([]*model.Job, error) {
	if _, err := g.storeBookmarkProjection(userID, bookmarkID, content); err != nil {
		return nil, err
	}
	return g.pipeline().EnqueueBookmark(userID, bookmarkID, model.Metadata{"content": content})
}

// StartPipeline launches the background workers for all three job
// families. Stop with StopPipeline.
func (g *LinkGraph) StartPipeline(ctx context.Context) {
	g.pipeline().Start(ctx)
}

// StopPipeline cancels the background workers and waits for in-flight
// jobs to finish their current attempt
func (g *LinkGraph) StopPipeline() {
	if g.Pipeline != nil {
		g.Pipeline.Stop()
	}
}

// RefreshBookmarkGraph deletes every relationship touching the
// bookmark, drops all cached results for the user and re-enqueues the
// extraction jobs with the bookmark's most recent payload. The payload
// is resolved first so a bookmark without prior jobs fails with
// NotFound before any edges are deleted.
func (g *LinkGraph) RefreshBookmarkGraph(ctx context.Context, userID string, bookmarkID uuid.UUID) ([]*model.Job, error) {
	payload, err := g.lastJobPayload(userID, bookmarkID)
	if err != nil {
		return nil, err
	}

	deleted, err := g.Relationships.DeleteRelationshipsTouchingBookmark(userID, bookmarkID)
	if err != nil {
		return nil, helper.NewError("delete bookmark relationships", err)
	}

	if err := cache.InvalidateUser(ctx, g.Cache, userID); err != nil {
		g.log.Warn("Cache invalidation failed during refresh", slog.Any("error", err))
	}

	g.log.Info("Refreshing bookmark graph",
		slog.String("bookmark_id", bookmarkID.String()),
		slog.Int("deleted_edges", deleted))
	return g.pipeline().EnqueueBookmark(userID, bookmarkID, payload)
}

// FindRelatedBookmarks traverses the graph outward from a bookmark,
// see query.Service.FindRelatedBookmarks
func (g *LinkGraph) FindRelatedBookmarks(ctx context.Context, userID string, bookmarkID uuid.UUID, config model.TraversalConfig) ([]*model.RelatedBookmark, error) {
	return g.Query.FindRelatedBookmarks(ctx, userID, bookmarkID, config)
}

// FindRelatedConcepts returns concepts co-occurring with the given one
func (g *LinkGraph) FindRelatedConcepts(ctx context.Context, userID string, conceptID uuid.UUID, minCoOccurrence int) ([]*model.RelatedConcept, error) {
	return g.Query.FindRelatedConcepts(ctx, userID, conceptID, minCoOccurrence)
}

// ListEntities lists the user's entities by occurrence count,
// optionally filtered by type
func (g *LinkGraph) ListEntities(ctx context.Context, userID string, entityType *model.EntityType, limit int, offset int) ([]*model.Entity, error) {
	return g.Query.ListEntities(ctx, userID, entityType, limit, offset)
}

// ListConcepts lists the user's concepts by occurrence count
func (g *LinkGraph) ListConcepts(ctx context.Context, userID string, limit int, offset int) ([]*model.Concept, error) {
	return g.Query.ListConcepts(ctx, userID, limit, offset)
}

// ListClusters lists the user's clusters by bookmark count
func (g *LinkGraph) ListClusters(userID string, limit int, offset int) ([]*model.Cluster, error) {
	return g.Query.ListClusters(userID, limit, offset)
}

// MergeClusters merges the source cluster into the target atomically
func (g *LinkGraph) MergeClusters(ctx context.Context, userID string, targetID uuid.UUID, sourceID uuid.UUID) (*model.MergeResult, error) {
	return g.Query.MergeClusters(ctx, userID, targetID, sourceID)
}

// GetGraphStats summarizes the user's knowledge graph
func (g *LinkGraph) GetGraphStats(ctx context.Context, userID string) (*model.GraphStats, error) {
	return g.Query.GetGraphStats(ctx, userID)
}

// InvalidateAllCaches drops every cached result for a user across all
// namespaces
func (g *LinkGraph) InvalidateAllCaches(ctx context.Context, userID string) error {
	return cache.InvalidateUser(ctx, g.Cache, userID)
}

// GetCacheStats reports the cache hit/miss counters
func (g *LinkGraph) GetCacheStats() cache.Stats {
	return g.Cache.Stats()
}

// ProjectEmbeddings projects the user's stored bookmark embeddings
// into 2D via the projection collaborator
func (g *LinkGraph) ProjectEmbeddings(ctx context.Context, userID string) ([]*model.ProjectedPoint, error) {
	if g.project2D == nil {
		return nil, helper.NewError("project embeddings", fmt.Errorf("projection collaborator not set, use SetProject2D() first"))
	}

	bookmarks, err := g.Bookmarks.SelectAllBookmarks(userID)
	if err != nil {
		return nil, helper.NewError("select bookmarks", err)
	}

	points, err := g.project2D(bookmarks)
	if err != nil {
		return nil, helper.NewError("project embeddings", err)
	}
	return points, nil
}

// storeBookmarkProjection upserts the bookmark row the graph keeps
// (embedding + cluster membership). Without an embedder the row is
// still written so jobs and edge deletes can reference it.
func (g *LinkGraph) storeBookmarkProjection(userID string, bookmarkID uuid.UUID, content string) ([]float32, error) {
	var embedding []float32
	if g.embedder != nil && content != "" {
		var err error
		embedding, err = g.embedder(content)
		if err != nil {
			// Embedding failure degrades: entity/concept extraction
			// can still run on the raw text
			g.log.Warn("Embedding failed, storing bookmark without vector", slog.Any("error", err))
			embedding = nil
		}
	}

	err := g.Bookmarks.UpsertBookmark(&model.Bookmark{
		ID:        bookmarkID,
		UserID:    userID,
		Embedding: embedding,
	})
	if err != nil {
		return nil, helper.NewError("store bookmark projection", err)
	}
	return embedding, nil
}

// pgvectorNeighbors is the built-in nearest-neighbor collaborator,
// cosine similarity over the stored embeddings
func (g *LinkGraph) pgvectorNeighbors(userID string, bookmarkID uuid.UUID, threshold float64) ([]*model.Neighbor, error) {
	return g.Bookmarks.SelectNearestBookmarks(userID, bookmarkID, threshold, defaultNeighborLimit)
}

// lastJobPayload returns the payload of the bookmark's most recent
// job, so a refresh can re-run extraction on the same content
func (g *LinkGraph) lastJobPayload(userID string, bookmarkID uuid.UUID) (model.Metadata, error) {
	previous, err := g.Jobs.SelectJobsForBookmark(userID, bookmarkID)
	if err != nil {
		return nil, helper.NewError("select previous jobs", err)
	}
	if len(previous) == 0 {
		return nil, helper.NewError("refresh bookmark graph", model.ErrNotFound)
	}
	return previous[len(previous)-1].Payload, nil
}

func (g *LinkGraph) rebuildQueryService() {
	g.Query = query.NewService(g.Entities, g.Concepts, g.Relationships, g.Clusters, g.Bookmarks, g.Cache, g.log)
}

func (g *LinkGraph) entityExtractor() *extract.EntityExtractor {
	return extract.NewEntityExtractor(g.classifyEntities, g.Entities, g.Relationships, g.Cache, g.log)
}

func (g *LinkGraph) conceptAnalyzer() *extract.ConceptAnalyzer {
	return extract.NewConceptAnalyzer(g.classifyConcepts, g.Concepts, g.Relationships, g.Cache, g.log)
}

func (g *LinkGraph) similarityComputer() *extract.SimilarityComputer {
	return extract.NewSimilarityComputer(g.neighbors, g.Relationships, g.Cache, g.log, extract.DefaultSimilarityThreshold)
}

// pipeline lazily builds the job pipeline so collaborator setters can
// run first
func (g *LinkGraph) pipeline() *jobs.Pipeline {
	if g.Pipeline != nil {
		return g.Pipeline
	}

	handlers := map[model.JobType]jobs.Handler{
		model.JobTypeEntityExtraction: func(ctx context.Context, job *model.Job) error {
			if g.classifyEntities == nil {
				return fmt.Errorf("entity classifier not set")
			}
			g.entityExtractor().Run(ctx, job.UserID, job.BookmarkID, payloadContent(job))
			return nil
		},
		model.JobTypeConceptAnalysis: func(ctx context.Context, job *model.Job) error {
			if g.classifyConcepts == nil {
				return fmt.Errorf("concept classifier not set")
			}
			embedding := g.bookmarkEmbedding(job.UserID, job.BookmarkID)
			g.conceptAnalyzer().Run(ctx, job.UserID, job.BookmarkID, payloadContent(job), embedding)
			return nil
		},
		model.JobTypeSimilarity: func(ctx context.Context, job *model.Job) error {
			g.similarityComputer().Run(ctx, job.UserID, job.BookmarkID)
			return nil
		},
	}

	g.Pipeline = jobs.NewPipeline(g.Jobs, handlers, g.jobConfig, g.log)
	return g.Pipeline
}

// bookmarkEmbedding loads the stored embedding for concept analysis,
// nil when the bookmark has none
func (g *LinkGraph) bookmarkEmbedding(userID string, bookmarkID uuid.UUID) []float32 {
	bookmark, err := g.Bookmarks.SelectBookmark(userID, bookmarkID)
	if err != nil {
		return nil
	}
	return bookmark.Embedding
}

func payloadContent(job *model.Job) string {
	content, _ := job.Payload["content"].(string)
	return content
}
