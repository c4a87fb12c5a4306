// Package query is the synchronous read/write API over the knowledge
// graph: multi-hop traversal, concept co-occurrence, listings, stats
// and cluster merge. Reads go through the tiered cache first and fall
// back to the store on a miss.
package query

import (
	"context"
	"log/slog"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/linkery/linkgraph/cache"
	"github.com/linkery/linkgraph/database"
	"github.com/linkery/linkgraph/helper"
	"github.com/linkery/linkgraph/model"
)

// Service answers graph queries, consulting the cache before the store
type Service struct {
	entities      database.EntitiesDBHandlerFunctions
	concepts      database.ConceptsDBHandlerFunctions
	relationships database.RelationshipsDBHandlerFunctions
	clusters      database.ClustersDBHandlerFunctions
	bookmarks     database.BookmarksDBHandlerFunctions
	cache         cache.Store
	logger        *slog.Logger
}

// NewService creates a new graph query service
func NewService(
	entities database.EntitiesDBHandlerFunctions,
	concepts database.ConceptsDBHandlerFunctions,
	relationships database.RelationshipsDBHandlerFunctions,
	clusters database.ClustersDBHandlerFunctions,
	bookmarks database.BookmarksDBHandlerFunctions,
	cacheStore cache.Store,
	logger *slog.Logger,
) *Service {
	return &Service{
		entities:      entities,
		concepts:      concepts,
		relationships: relationships,
		clusters:      clusters,
		bookmarks:     bookmarks,
		cache:         cacheStore,
		logger:        logger,
	}
}

// FindRelatedBookmarks traverses the graph outward from a bookmark.
// Depth 1 follows direct similar_to edges. Depth 2 additionally walks
// through the bookmark's strongest about/mentions edges to other
// bookmarks sharing the same concept or entity, scoring each path as
// the average of its two edge weights. Depth 3 is accepted but behaves
// like depth 2; no third hop is defined. The result never contains the
// source bookmark or duplicates, is sorted by weight descending and
// capped at config.Limit.
func (s *Service) FindRelatedBookmarks(ctx context.Context, userID string, bookmarkID uuid.UUID, config model.TraversalConfig) ([]*model.RelatedBookmark, error) {
	config = config.Clamped()

	cacheKey := cache.UserKey(userID, bookmarkID.String(), strconv.Itoa(config.Depth), strconv.Itoa(config.Limit))
	var cached []*model.RelatedBookmark
	if hit := s.cacheGet(ctx, cache.NamespaceSimilar, cacheKey, &cached); hit {
		return cached, nil
	}

	byID := map[uuid.UUID]*model.RelatedBookmark{}

	similarTo := model.RelationshipTypeSimilarTo
	direct, err := s.relationships.SelectRelationshipsFrom(userID, model.BookmarkRef(bookmarkID), &similarTo, config.Limit)
	if err != nil {
		return nil, helper.NewError("select similar_to edges", err)
	}
	for _, edge := range direct {
		if edge.Target.ID == bookmarkID {
			continue
		}
		byID[edge.Target.ID] = &model.RelatedBookmark{
			BookmarkID: edge.Target.ID,
			Weight:     edge.Weight,
			Depth:      1,
		}
	}

	if config.Depth >= 2 {
		if err := s.addSharedNodePaths(userID, bookmarkID, config, byID); err != nil {
			return nil, err
		}
	}

	related := make([]*model.RelatedBookmark, 0, len(byID))
	for _, result := range byID {
		related = append(related, result)
	}
	sort.Slice(related, func(i, j int) bool {
		if related[i].Weight != related[j].Weight {
			return related[i].Weight > related[j].Weight
		}
		return related[i].BookmarkID.String() < related[j].BookmarkID.String()
	})
	if len(related) > config.Limit {
		related = related[:config.Limit]
	}

	s.cacheSet(ctx, cache.NamespaceSimilar, cacheKey, related)
	return related, nil
}

// addSharedNodePaths performs the second hop: through the strongest
// about/mentions edges to bookmarks sharing the same node. Bookmarks
// already found at depth 1 keep their direct edge.
func (s *Service) addSharedNodePaths(userID string, bookmarkID uuid.UUID, config model.TraversalConfig, byID map[uuid.UUID]*model.RelatedBookmark) error {
	seeds, err := s.sharedNodeSeeds(userID, bookmarkID, config.TopSharedNodes)
	if err != nil {
		return err
	}

	for _, seed := range seeds {
		relType := seed.Type
		neighbors, err := s.relationships.SelectBookmarksSharingNode(userID, seed.Target, bookmarkID, &relType, config.PerNodeLimit)
		if err != nil {
			return helper.NewError("select bookmarks sharing node", err)
		}

		via := s.nodeName(userID, seed.Target)
		for _, neighbor := range neighbors {
			if neighbor.BookmarkID == bookmarkID {
				continue
			}
			if _, present := byID[neighbor.BookmarkID]; present {
				continue
			}
			byID[neighbor.BookmarkID] = &model.RelatedBookmark{
				BookmarkID: neighbor.BookmarkID,
				Weight:     (seed.Weight + neighbor.Weight) / 2,
				Depth:      2,
				Via:        via,
			}
		}
	}
	return nil
}

// sharedNodeSeeds returns the bookmark's strongest about/mentions
// edges, merged across both types and capped at topSharedNodes
func (s *Service) sharedNodeSeeds(userID string, bookmarkID uuid.UUID, topSharedNodes int) ([]*model.Relationship, error) {
	var seeds []*model.Relationship
	for _, relType := range []model.RelationshipType{model.RelationshipTypeAbout, model.RelationshipTypeMentions} {
		relType := relType
		edges, err := s.relationships.SelectRelationshipsFrom(userID, model.BookmarkRef(bookmarkID), &relType, topSharedNodes)
		if err != nil {
			return nil, helper.NewError("select "+string(relType)+" edges", err)
		}
		seeds = append(seeds, edges...)
	}

	sort.Slice(seeds, func(i, j int) bool { return seeds[i].Weight > seeds[j].Weight })
	if len(seeds) > topSharedNodes {
		seeds = seeds[:topSharedNodes]
	}
	return seeds, nil
}

// nodeName resolves the display name of a shared concept/entity for
// the path annotation. Resolution failures degrade to an empty name.
func (s *Service) nodeName(userID string, node model.NodeRef) string {
	switch node.Type {
	case model.NodeTypeEntity:
		entity, err := s.entities.SelectEntity(userID, node.ID)
		if err != nil {
			return ""
		}
		return entity.Name
	case model.NodeTypeConcept:
		concept, err := s.concepts.SelectConcept(userID, node.ID)
		if err != nil {
			return ""
		}
		return concept.Name
	default:
		return ""
	}
}

// FindRelatedConcepts returns concepts co-occurring with the given one
// on at least minCoOccurrence shared bookmarks. Returns a NotFound
// error if the concept doesn't exist for the user.
func (s *Service) FindRelatedConcepts(ctx context.Context, userID string, conceptID uuid.UUID, minCoOccurrence int) ([]*model.RelatedConcept, error) {
	if minCoOccurrence < 1 {
		minCoOccurrence = 1
	}

	cacheKey := cache.UserKey(userID, "related", conceptID.String(), strconv.Itoa(minCoOccurrence))
	var cached []*model.RelatedConcept
	if hit := s.cacheGet(ctx, cache.NamespaceConcepts, cacheKey, &cached); hit {
		return cached, nil
	}

	// Existence check first so a missing concept surfaces as NotFound
	// instead of an empty result
	if _, err := s.concepts.SelectConcept(userID, conceptID); err != nil {
		return nil, err
	}

	related, err := s.concepts.SelectCoOccurringConcepts(userID, conceptID, minCoOccurrence)
	if err != nil {
		return nil, helper.NewError("select co-occurring concepts", err)
	}

	s.cacheSet(ctx, cache.NamespaceConcepts, cacheKey, related)
	return related, nil
}

// ListEntities returns the user's entities ordered by occurrence
// count, optionally filtered by type
func (s *Service) ListEntities(ctx context.Context, userID string, entityType *model.EntityType, limit int, offset int) ([]*model.Entity, error) {
	typePart := "all"
	if entityType != nil {
		typePart = string(*entityType)
	}
	cacheKey := cache.UserKey(userID, "list", typePart, strconv.Itoa(limit), strconv.Itoa(offset))

	var cached []*model.Entity
	if hit := s.cacheGet(ctx, cache.NamespaceEntities, cacheKey, &cached); hit {
		return cached, nil
	}

	entities, err := s.entities.SelectEntities(userID, entityType, limit, offset)
	if err != nil {
		return nil, helper.NewError("select entities", err)
	}

	s.cacheSet(ctx, cache.NamespaceEntities, cacheKey, entities)
	return entities, nil
}

// ListConcepts returns the user's concepts ordered by occurrence count
func (s *Service) ListConcepts(ctx context.Context, userID string, limit int, offset int) ([]*model.Concept, error) {
	cacheKey := cache.UserKey(userID, "list", strconv.Itoa(limit), strconv.Itoa(offset))

	var cached []*model.Concept
	if hit := s.cacheGet(ctx, cache.NamespaceConcepts, cacheKey, &cached); hit {
		return cached, nil
	}

	concepts, err := s.concepts.SelectConcepts(userID, limit, offset)
	if err != nil {
		return nil, helper.NewError("select concepts", err)
	}

	s.cacheSet(ctx, cache.NamespaceConcepts, cacheKey, concepts)
	return concepts, nil
}

// ListClusters returns the user's clusters ordered by bookmark count.
// Cluster listings are not cached; they change rarely and merges must
// be visible immediately.
func (s *Service) ListClusters(userID string, limit int, offset int) ([]*model.Cluster, error) {
	clusters, err := s.clusters.SelectClusters(userID, limit, offset)
	if err != nil {
		return nil, helper.NewError("select clusters", err)
	}
	return clusters, nil
}

// MergeClusters merges the source cluster into the target atomically
// and invalidates the user's stats. Returns a NotFound error if either
// cluster is missing for the user.
func (s *Service) MergeClusters(ctx context.Context, userID string, targetID uuid.UUID, sourceID uuid.UUID) (*model.MergeResult, error) {
	mergedCount, err := s.clusters.MergeClusters(userID, targetID, sourceID)
	if err != nil {
		return nil, err
	}

	if cacheErr := s.cache.Invalidate(ctx, cache.NamespaceStats, userID); cacheErr != nil {
		s.logger.Warn("Cache invalidation failed", slog.String("namespace", string(cache.NamespaceStats)), slog.Any("error", cacheErr))
	}

	return &model.MergeResult{TargetID: targetID, MergedCount: mergedCount}, nil
}

// topEntityCount is how many entities GetGraphStats includes
const topEntityCount = 5

// GetGraphStats summarizes the user's graph: per-type counts and the
// top entities by occurrence
func (s *Service) GetGraphStats(ctx context.Context, userID string) (*model.GraphStats, error) {
	cacheKey := cache.UserKey(userID)
	var cached *model.GraphStats
	if hit := s.cacheGet(ctx, cache.NamespaceStats, cacheKey, &cached); hit {
		return cached, nil
	}

	stats := &model.GraphStats{}
	var err error
	if stats.BookmarkCount, err = s.bookmarks.CountBookmarks(userID); err != nil {
		return nil, helper.NewError("count bookmarks", err)
	}
	if stats.EntityCount, err = s.entities.CountEntities(userID); err != nil {
		return nil, helper.NewError("count entities", err)
	}
	if stats.ConceptCount, err = s.concepts.CountConcepts(userID); err != nil {
		return nil, helper.NewError("count concepts", err)
	}
	if stats.RelationshipCount, err = s.relationships.CountRelationships(userID); err != nil {
		return nil, helper.NewError("count relationships", err)
	}
	if stats.ClusterCount, err = s.clusters.CountClusters(userID); err != nil {
		return nil, helper.NewError("count clusters", err)
	}
	if stats.TopEntities, err = s.entities.SelectEntities(userID, nil, topEntityCount, 0); err != nil {
		return nil, helper.NewError("select top entities", err)
	}

	s.cacheSet(ctx, cache.NamespaceStats, cacheKey, stats)
	return stats, nil
}

// cacheGet reads through the cache, treating cache errors as misses
func (s *Service) cacheGet(ctx context.Context, namespace cache.Namespace, key string, dest interface{}) bool {
	hit, err := s.cache.Get(ctx, namespace, key, dest)
	if err != nil {
		s.logger.Warn("Cache read failed, falling back to store", slog.String("namespace", string(namespace)), slog.Any("error", err))
		return false
	}
	return hit
}

// cacheSet writes a query result into the cache, logging failures
func (s *Service) cacheSet(ctx context.Context, namespace cache.Namespace, key string, value interface{}) {
	if err := s.cache.Set(ctx, namespace, key, value); err != nil {
		s.logger.Warn("Cache write failed", slog.String("namespace", string(namespace)), slog.Any("error", err))
	}
}
