package extract

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/linkery/linkgraph/cache"
	"github.com/linkery/linkgraph/model"
)

// DefaultSimilarityThreshold is the minimum score for two bookmarks to
// be linked as similar
const DefaultSimilarityThreshold = 0.65

// SimilarityComputer links a bookmark to its nearest neighbors with
// symmetric similar_to edges
type SimilarityComputer struct {
	neighbors     NearestNeighborsFunc
	relationships RelationshipStore
	cache         cache.Store
	logger        *slog.Logger
	threshold     float64
}

// NewSimilarityComputer creates a new similarity agent. A threshold of
// 0 selects the default of 0.65.
func NewSimilarityComputer(neighbors NearestNeighborsFunc, relationships RelationshipStore, cacheStore cache.Store, logger *slog.Logger, threshold float64) *SimilarityComputer {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &SimilarityComputer{
		neighbors:     neighbors,
		relationships: relationships,
		cache:         cacheStore,
		logger:        logger,
		threshold:     threshold,
	}
}

// Process returns the bookmark's neighbors above the threshold,
// excluding the bookmark itself. Collaborator failure yields an empty
// list.
func (s *SimilarityComputer) Process(userID string, bookmarkID uuid.UUID) []*model.Neighbor {
	neighbors, err := s.neighbors(userID, bookmarkID, s.threshold)
	if err != nil {
		s.logger.Warn("Nearest neighbor search failed, continuing with empty result", slog.Any("error", err))
		return nil
	}

	filtered := make([]*model.Neighbor, 0, len(neighbors))
	for _, neighbor := range neighbors {
		if neighbor == nil || neighbor.BookmarkID == bookmarkID {
			continue
		}
		if neighbor.Weight < s.threshold {
			continue
		}
		filtered = append(filtered, neighbor)
	}
	return filtered
}

// Save writes one similar_to edge in each direction per neighbor, with
// the same weight on both. A failure on one pair is logged and
// skipped. Cached similarity results for both bookmarks are
// invalidated afterwards.
func (s *SimilarityComputer) Save(ctx context.Context, userID string, bookmarkID uuid.UUID, neighbors []*model.Neighbor) int {
	saved := 0
	for _, neighbor := range neighbors {
		_, err := s.relationships.UpsertRelationship(
			userID,
			model.BookmarkRef(bookmarkID),
			model.BookmarkRef(neighbor.BookmarkID),
			model.RelationshipTypeSimilarTo,
			neighbor.Weight,
			nil,
		)
		if err != nil {
			s.logger.Warn("Could not save similar_to edge, skipping pair", slog.String("neighbor", neighbor.BookmarkID.String()), slog.Any("error", err))
			continue
		}

		_, err = s.relationships.UpsertRelationship(
			userID,
			model.BookmarkRef(neighbor.BookmarkID),
			model.BookmarkRef(bookmarkID),
			model.RelationshipTypeSimilarTo,
			neighbor.Weight,
			nil,
		)
		if err != nil {
			s.logger.Warn("Could not save reverse similar_to edge, skipping pair", slog.String("neighbor", neighbor.BookmarkID.String()), slog.Any("error", err))
			continue
		}

		s.invalidateBookmark(ctx, userID, neighbor.BookmarkID)
		saved++
	}

	if saved > 0 {
		s.invalidateBookmark(ctx, userID, bookmarkID)
	}
	return saved
}

// Run processes the bookmark and saves the result in one step
func (s *SimilarityComputer) Run(ctx context.Context, userID string, bookmarkID uuid.UUID) int {
	return s.Save(ctx, userID, bookmarkID, s.Process(userID, bookmarkID))
}

func (s *SimilarityComputer) invalidateBookmark(ctx context.Context, userID string, bookmarkID uuid.UUID) {
	key := cache.UserKey(userID, bookmarkID.String())
	if err := s.cache.Invalidate(ctx, cache.NamespaceSimilar, key); err != nil {
		s.logger.Warn("Cache invalidation failed", slog.String("namespace", string(cache.NamespaceSimilar)), slog.Any("error", err))
	}
}
