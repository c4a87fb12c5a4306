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

// ConceptAnalyzer classifies bookmark text into abstract topics and
// persists them together with about edges
type ConceptAnalyzer struct {
	classify      ClassifyConceptsFunc
	concepts      ConceptStore
	relationships RelationshipStore
	cache         cache.Store
	logger        *slog.Logger
}

// NewConceptAnalyzer creates a new concept analysis agent
func NewConceptAnalyzer(classify ClassifyConceptsFunc, concepts ConceptStore, relationships RelationshipStore, cacheStore cache.Store, logger *slog.Logger) *ConceptAnalyzer {
	return &ConceptAnalyzer{
		classify:      classify,
		concepts:      concepts,
		relationships: relationships,
		cache:         cacheStore,
		logger:        logger,
	}
}

// Process runs the classifier over the content and returns normalized,
// deduplicated concepts. Duplicate keys within one call sum their
// mention counts and keep the highest weight. Classifier failure
// yields an empty list.
func (a *ConceptAnalyzer) Process(content string, embedding []float32) []*model.ExtractedConcept {
	candidates, err := a.classify(content, embedding)
	if err != nil {
		a.logger.Warn("Concept classification failed, continuing with empty result", slog.Any("error", err))
		return nil
	}

	byKey := map[string]*model.ExtractedConcept{}
	var order []string

	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		normalized, ok := normalize.Concept(candidate.Name)
		if !ok {
			continue
		}

		weight := clampWeight(candidate.Weight)
		mentions := normalize.CountMentions(content, normalized.Key)
		if existing, seen := byKey[normalized.Key]; seen {
			existing.Mentions += mentions
			existing.Weight = math.Max(existing.Weight, weight)
			continue
		}

		byKey[normalized.Key] = &model.ExtractedConcept{
			Name:     normalized.Display,
			Key:      normalized.Key,
			Weight:   weight,
			Mentions: mentions,
		}
		order = append(order, normalized.Key)
	}

	extracted := make([]*model.ExtractedConcept, 0, len(order))
	for _, key := range order {
		extracted = append(extracted, byKey[key])
	}
	return extracted
}

// Save upserts the extracted concepts and their about edges from the
// bookmark. A failure on one item is logged and skipped. Cache entries
// for the user's concepts and stats are invalidated afterwards, along
// with the bookmark's similar entries since its edges changed.
func (a *ConceptAnalyzer) Save(ctx context.Context, userID string, bookmarkID uuid.UUID, items []*model.ExtractedConcept) int {
	saved := 0
	for _, item := range items {
		concept, err := a.concepts.UpsertConcept(userID, item.Name, item.Key, nil, item.Mentions)
		if err != nil {
			a.logger.Warn("Could not save concept, skipping", slog.String("concept", item.Name), slog.Any("error", err))
			continue
		}

		_, err = a.relationships.UpsertRelationship(
			userID,
			model.BookmarkRef(bookmarkID),
			model.ConceptRef(concept.ID),
			model.RelationshipTypeAbout,
			item.Weight,
			nil,
		)
		if err != nil {
			a.logger.Warn("Could not save about edge, skipping", slog.String("concept", item.Name), slog.Any("error", err))
			continue
		}

		saved++
	}

	if saved > 0 {
		a.invalidate(ctx, userID, bookmarkID)
	}
	return saved
}

// Run processes the content and saves the result in one step
func (a *ConceptAnalyzer) Run(ctx context.Context, userID string, bookmarkID uuid.UUID, content string, embedding []float32) int {
	return a.Save(ctx, userID, bookmarkID, a.Process(content, embedding))
}

func (a *ConceptAnalyzer) invalidate(ctx context.Context, userID string, bookmarkID uuid.UUID) {
	for _, namespace := range []cache.Namespace{cache.NamespaceConcepts, cache.NamespaceStats} {
		if err := a.cache.Invalidate(ctx, namespace, userID); err != nil {
			a.logger.Warn("Cache invalidation failed", slog.String("namespace", string(namespace)), slog.Any("error", err))
		}
	}
	// The new about edges change the bookmark's traversal results
	if err := a.cache.Invalidate(ctx, cache.NamespaceSimilar, cache.UserKey(userID, bookmarkID.String())); err != nil {
		a.logger.Warn("Cache invalidation failed", slog.String("namespace", string(cache.NamespaceSimilar)), slog.Any("error", err))
	}
}

func clampWeight(weight float64) float64 {
	if math.IsNaN(weight) || weight < 0 {
		return 0
	}
	if weight > 1 {
		return 1
	}
	return weight
}
