package query

import (
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/linkery/linkgraph/helper"
	"github.com/linkery/linkgraph/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGraph implements all storage handler interfaces in memory and
// counts store reads so tests can assert cache hits
type fakeGraph struct {
	entities      map[uuid.UUID]*model.Entity
	concepts      map[uuid.UUID]*model.Concept
	relationships []*model.Relationship
	clusters      map[uuid.UUID]*model.Cluster
	bookmarks     map[uuid.UUID]*model.Bookmark
	coOccurring   map[uuid.UUID][]*model.RelatedConcept

	reads int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		entities:    map[uuid.UUID]*model.Entity{},
		concepts:    map[uuid.UUID]*model.Concept{},
		clusters:    map[uuid.UUID]*model.Cluster{},
		bookmarks:   map[uuid.UUID]*model.Bookmark{},
		coOccurring: map[uuid.UUID][]*model.RelatedConcept{},
	}
}

func (g *fakeGraph) addEntity(userID string, name string, occurrence int) *model.Entity {
	entity := &model.Entity{
		ID:              uuid.New(),
		UserID:          userID,
		Name:            name,
		NormalizedName:  name,
		Type:            model.EntityTypeTechnology,
		OccurrenceCount: occurrence,
	}
	g.entities[entity.ID] = entity
	return entity
}

func (g *fakeGraph) addConcept(userID string, name string) *model.Concept {
	concept := &model.Concept{
		ID:             uuid.New(),
		UserID:         userID,
		Name:           name,
		NormalizedName: name,
	}
	g.concepts[concept.ID] = concept
	return concept
}

func (g *fakeGraph) addEdge(userID string, source model.NodeRef, target model.NodeRef, relType model.RelationshipType, weight float64) {
	g.relationships = append(g.relationships, &model.Relationship{
		ID:     uuid.New(),
		UserID: userID,
		Source: source,
		Target: target,
		Type:   relType,
		Weight: weight,
	})
}

func (g *fakeGraph) addCluster(userID string, name string, bookmarkCount int) *model.Cluster {
	cluster := &model.Cluster{
		ID:            uuid.New(),
		UserID:        userID,
		Name:          name,
		BookmarkCount: bookmarkCount,
	}
	g.clusters[cluster.ID] = cluster
	return cluster
}

// EntitiesDBHandlerFunctions

func (g *fakeGraph) UpsertEntity(userID string, name string, normalizedName string, entityType model.EntityType, mentionDelta int, metadata model.Metadata) (*model.Entity, error) {
	return g.addEntity(userID, name, mentionDelta), nil
}

func (g *fakeGraph) SelectEntity(userID string, id uuid.UUID) (*model.Entity, error) {
	entity, ok := g.entities[id]
	if !ok || entity.UserID != userID {
		return nil, helper.NewError("select entity", model.ErrNotFound)
	}
	return entity, nil
}

func (g *fakeGraph) SelectEntities(userID string, entityType *model.EntityType, limit int, offset int) ([]*model.Entity, error) {
	g.reads++
	var entities []*model.Entity
	for _, entity := range g.entities {
		if entity.UserID != userID {
			continue
		}
		if entityType != nil && entity.Type != *entityType {
			continue
		}
		entities = append(entities, entity)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].OccurrenceCount > entities[j].OccurrenceCount })
	if offset < len(entities) {
		entities = entities[offset:]
	} else {
		entities = nil
	}
	if len(entities) > limit {
		entities = entities[:limit]
	}
	return entities, nil
}

func (g *fakeGraph) CountEntities(userID string) (int, error) {
	count := 0
	for _, entity := range g.entities {
		if entity.UserID == userID {
			count++
		}
	}
	return count, nil
}

// ConceptsDBHandlerFunctions

func (g *fakeGraph) UpsertConcept(userID string, name string, normalizedName string, parentConceptID *uuid.UUID, mentionDelta int) (*model.Concept, error) {
	return g.addConcept(userID, name), nil
}

func (g *fakeGraph) SelectConcept(userID string, id uuid.UUID) (*model.Concept, error) {
	concept, ok := g.concepts[id]
	if !ok || concept.UserID != userID {
		return nil, helper.NewError("select concept", model.ErrNotFound)
	}
	return concept, nil
}

func (g *fakeGraph) SelectConcepts(userID string, limit int, offset int) ([]*model.Concept, error) {
	g.reads++
	var concepts []*model.Concept
	for _, concept := range g.concepts {
		if concept.UserID == userID {
			concepts = append(concepts, concept)
		}
	}
	sort.Slice(concepts, func(i, j int) bool { return concepts[i].Name < concepts[j].Name })
	if len(concepts) > limit {
		concepts = concepts[:limit]
	}
	return concepts, nil
}

func (g *fakeGraph) CountConcepts(userID string) (int, error) {
	count := 0
	for _, concept := range g.concepts {
		if concept.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (g *fakeGraph) SelectCoOccurringConcepts(userID string, conceptID uuid.UUID, minCoOccurrence int) ([]*model.RelatedConcept, error) {
	g.reads++
	var related []*model.RelatedConcept
	for _, candidate := range g.coOccurring[conceptID] {
		if candidate.CoOccurrence >= minCoOccurrence {
			related = append(related, candidate)
		}
	}
	return related, nil
}

// RelationshipsDBHandlerFunctions

func (g *fakeGraph) UpsertRelationship(userID string, source model.NodeRef, target model.NodeRef, relationshipType model.RelationshipType, weight float64, metadata model.Metadata) (*model.Relationship, error) {
	g.addEdge(userID, source, target, relationshipType, weight)
	return g.relationships[len(g.relationships)-1], nil
}

func (g *fakeGraph) SelectRelationshipsFrom(userID string, source model.NodeRef, relationshipType *model.RelationshipType, limit int) ([]*model.Relationship, error) {
	g.reads++
	var edges []*model.Relationship
	for _, edge := range g.relationships {
		if edge.UserID != userID || edge.Source != source {
			continue
		}
		if relationshipType != nil && edge.Type != *relationshipType {
			continue
		}
		edges = append(edges, edge)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].Weight > edges[j].Weight })
	if len(edges) > limit {
		edges = edges[:limit]
	}
	return edges, nil
}

func (g *fakeGraph) SelectRelationshipsTo(userID string, target model.NodeRef, relationshipType *model.RelationshipType, limit int) ([]*model.Relationship, error) {
	var edges []*model.Relationship
	for _, edge := range g.relationships {
		if edge.UserID != userID || edge.Target != target {
			continue
		}
		if relationshipType != nil && edge.Type != *relationshipType {
			continue
		}
		edges = append(edges, edge)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].Weight > edges[j].Weight })
	if len(edges) > limit {
		edges = edges[:limit]
	}
	return edges, nil
}

func (g *fakeGraph) SelectBookmarksSharingNode(userID string, node model.NodeRef, excludeBookmarkID uuid.UUID, relationshipType *model.RelationshipType, limit int) ([]*model.Neighbor, error) {
	g.reads++
	var neighbors []*model.Neighbor
	for _, edge := range g.relationships {
		if edge.UserID != userID || edge.Target != node || edge.Source.Type != model.NodeTypeBookmark {
			continue
		}
		if edge.Source.ID == excludeBookmarkID {
			continue
		}
		if relationshipType != nil && edge.Type != *relationshipType {
			continue
		}
		neighbors = append(neighbors, &model.Neighbor{BookmarkID: edge.Source.ID, Weight: edge.Weight})
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Weight > neighbors[j].Weight })
	if len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors, nil
}

func (g *fakeGraph) DeleteRelationshipsTouchingBookmark(userID string, bookmarkID uuid.UUID) (int, error) {
	var kept []*model.Relationship
	deleted := 0
	for _, edge := range g.relationships {
		touching := edge.UserID == userID &&
			((edge.Source.Type == model.NodeTypeBookmark && edge.Source.ID == bookmarkID) ||
				(edge.Target.Type == model.NodeTypeBookmark && edge.Target.ID == bookmarkID))
		if touching {
			deleted++
			continue
		}
		kept = append(kept, edge)
	}
	g.relationships = kept
	return deleted, nil
}

func (g *fakeGraph) CountRelationships(userID string) (int, error) {
	count := 0
	for _, edge := range g.relationships {
		if edge.UserID == userID {
			count++
		}
	}
	return count, nil
}

// ClustersDBHandlerFunctions

func (g *fakeGraph) InsertCluster(cluster *model.Cluster) error {
	if cluster.ID == uuid.Nil {
		cluster.ID = uuid.New()
	}
	g.clusters[cluster.ID] = cluster
	return nil
}

func (g *fakeGraph) SelectCluster(userID string, id uuid.UUID) (*model.Cluster, error) {
	cluster, ok := g.clusters[id]
	if !ok || cluster.UserID != userID {
		return nil, helper.NewError("select cluster", model.ErrNotFound)
	}
	return cluster, nil
}

func (g *fakeGraph) SelectClusters(userID string, limit int, offset int) ([]*model.Cluster, error) {
	var clusters []*model.Cluster
	for _, cluster := range g.clusters {
		if cluster.UserID == userID {
			clusters = append(clusters, cluster)
		}
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].BookmarkCount > clusters[j].BookmarkCount })
	if len(clusters) > limit {
		clusters = clusters[:limit]
	}
	return clusters, nil
}

func (g *fakeGraph) CountClusters(userID string) (int, error) {
	count := 0
	for _, cluster := range g.clusters {
		if cluster.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (g *fakeGraph) MergeClusters(userID string, targetID uuid.UUID, sourceID uuid.UUID) (int, error) {
	target, ok := g.clusters[targetID]
	if !ok || target.UserID != userID {
		return 0, helper.NewError("merge clusters", model.ErrNotFound)
	}
	source, ok := g.clusters[sourceID]
	if !ok || source.UserID != userID {
		return 0, helper.NewError("merge clusters", model.ErrNotFound)
	}

	moved := 0
	for _, bookmark := range g.bookmarks {
		if bookmark.UserID == userID && bookmark.ClusterID != nil && *bookmark.ClusterID == sourceID {
			clusterID := targetID
			bookmark.ClusterID = &clusterID
			moved++
		}
	}
	target.BookmarkCount += source.BookmarkCount
	delete(g.clusters, sourceID)
	return moved, nil
}

// BookmarksDBHandlerFunctions

func (g *fakeGraph) UpsertBookmark(bookmark *model.Bookmark) error {
	if bookmark.CreatedAt.IsZero() {
		bookmark.CreatedAt = time.Now()
	}
	g.bookmarks[bookmark.ID] = bookmark
	return nil
}

func (g *fakeGraph) SelectBookmark(userID string, id uuid.UUID) (*model.Bookmark, error) {
	bookmark, ok := g.bookmarks[id]
	if !ok || bookmark.UserID != userID {
		return nil, helper.NewError("select bookmark", model.ErrNotFound)
	}
	return bookmark, nil
}

func (g *fakeGraph) SelectAllBookmarks(userID string) ([]*model.Bookmark, error) {
	var bookmarks []*model.Bookmark
	for _, bookmark := range g.bookmarks {
		if bookmark.UserID == userID {
			bookmarks = append(bookmarks, bookmark)
		}
	}
	return bookmarks, nil
}

func (g *fakeGraph) SelectNearestBookmarks(userID string, bookmarkID uuid.UUID, threshold float64, limit int) ([]*model.Neighbor, error) {
	return nil, nil
}

func (g *fakeGraph) CountBookmarks(userID string) (int, error) {
	count := 0
	for _, bookmark := range g.bookmarks {
		if bookmark.UserID == userID {
			count++
		}
	}
	return count, nil
}
