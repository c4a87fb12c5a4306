package extract

import (
	"context"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"github.com/linkery/linkgraph/cache"
	"github.com/linkery/linkgraph/core/normalize"
	"github.com/linkery/linkgraph/model"
)

// EntityExtractor classifies bookmark text into named entities and
// persists them together with mentions edges
type EntityExtractor struct {
	classify      ClassifyEntitiesFunc
	entities      EntityStore
	relationships RelationshipStore
	cache         cache.Store
	logger        *slog.Logger
}

// NewEntityExtractor creates a new entity extraction agent
func NewEntityExtractor(classify ClassifyEntitiesFunc, entities EntityStore, relationships RelationshipStore, cacheStore cache.Store, logger *slog.Logger) *EntityExtractor {
	return &EntityExtractor{
		classify:      classify,
		entities:      entities,
		relationships: relationships,
		cache:         cacheStore,
		logger:        logger,
	}
}

// Process runs the classifier over the content and returns normalized,
// deduplicated entities. One call produces at most one item per
// (key, type); mention counts are summed from case-insensitive
// occurrences in the content. Classifier failure yields an empty list.
func (e *EntityExtractor) Process(content string) []*model.ExtractedEntity {
	candidates, err := e.classify(content)
	if err != nil {
		e.logger.Warn("Entity classification failed, continuing with empty result", slog.Any("error", err))
		return nil
	}

	type dedupeKey struct {
		key        string
		entityType model.EntityType
	}
	byKey := map[dedupeKey]*model.ExtractedEntity{}
	var order []dedupeKey

	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		normalized, ok := normalize.Entity(candidate.Text, candidate.Type)
		if !ok {
			continue
		}

		key := dedupeKey{key: normalized.Key, entityType: candidate.Type}
		mentions := normalize.CountMentions(content, normalized.Key)
		if existing, seen := byKey[key]; seen {
			existing.Mentions += mentions
			continue
		}

		byKey[key] = &model.ExtractedEntity{
			Name:     normalized.Display,
			Key:      normalized.Key,
			Type:     candidate.Type,
			Context:  candidate.Context,
			Mentions: mentions,
		}
		order = append(order, key)
	}

	extracted := make([]*model.ExtractedEntity, 0, len(order))
	for _, key := range order {
		extracted = append(extracted, byKey[key])
	}
	return extracted
}

// Save upserts the extracted entities and their mentions edges from
// the bookmark. A failure on one item is logged and skipped; the
// returned count is the number of entities persisted. Cache entries
// for the user's entities and stats are invalidated afterwards, along
// with the bookmark's similar entries since its edges changed.
func (e *EntityExtractor) Save(ctx context.Context, userID string, bookmarkID uuid.UUID, items []*model.ExtractedEntity) int {
	saved := 0
	for _, item := range items {
		metadata := model.Metadata{}
		if item.Context != "" {
			metadata["context"] = item.Context
		}

		entity, err := e.entities.UpsertEntity(userID, item.Name, item.Key, item.Type, item.Mentions, metadata)
		if err != nil {
			e.logger.Warn("Could not save entity, skipping", slog.String("entity", item.Name), slog.Any("error", err))
			continue
		}

		_, err = e.relationships.UpsertRelationship(
			userID,
			model.BookmarkRef(bookmarkID),
			model.EntityRef(entity.ID),
			model.RelationshipTypeMentions,
			mentionWeight(item.Mentions),
			nil,
		)
		if err != nil {
			e.logger.Warn("Could not save mentions edge, skipping", slog.String("entity", item.Name), slog.Any("error", err))
			continue
		}

		saved++
	}

	if saved > 0 {
		e.invalidate(ctx, userID, bookmarkID)
	}
	return saved
}

// Run processes the content and saves the result in one step
func (e *EntityExtractor) Run(ctx context.Context, userID string, bookmarkID uuid.UUID, content string) int {
	return e.Save(ctx, userID, bookmarkID, e.Process(content))
}

func (e *EntityExtractor) invalidate(ctx context.Context, userID string, bookmarkID uuid.UUID) {
	for _, namespace := range []cache.Namespace{cache.NamespaceEntities, cache.NamespaceStats} {
		if err := e.cache.Invalidate(ctx, namespace, userID); err != nil {
			e.logger.Warn("Cache invalidation failed", slog.String("namespace", string(namespace)), slog.Any("error", err))
		}
	}
	// The new mentions edges change the bookmark's traversal results
	if err := e.cache.Invalidate(ctx, cache.NamespaceSimilar, cache.UserKey(userID, bookmarkID.String())); err != nil {
		e.logger.Warn("Cache invalidation failed", slog.String("namespace", string(cache.NamespaceSimilar)), slog.Any("error", err))
	}
}

// mentionWeight maps a mention count onto an edge weight in [0,1]
func mentionWeight(mentions int) float64 {
	return math.Min(1.0, 0.5+0.1*float64(mentions-1))
}
