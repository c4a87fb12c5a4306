package extract

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/linkery/linkgraph/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEntityStore records upserts in memory, keyed like the real store
type fakeEntityStore struct {
	entities map[string]*model.Entity
	failOn   string
}

func newFakeEntityStore() *fakeEntityStore {
	return &fakeEntityStore{entities: map[string]*model.Entity{}}
}

func (s *fakeEntityStore) UpsertEntity(userID string, name string, normalizedName string, entityType model.EntityType, mentionDelta int, metadata model.Metadata) (*model.Entity, error) {
	if s.failOn == normalizedName {
		return nil, errors.New("upsert entity failed")
	}

	key := userID + ":" + normalizedName + ":" + string(entityType)
	if existing, ok := s.entities[key]; ok {
		existing.OccurrenceCount += mentionDelta
		existing.LastSeenAt = time.Now()
		if name != "" {
			existing.Name = name
		}
		return existing, nil
	}

	entity := &model.Entity{
		ID:              uuid.New(),
		UserID:          userID,
		Name:            name,
		NormalizedName:  normalizedName,
		Type:            entityType,
		OccurrenceCount: mentionDelta,
		FirstSeenAt:     time.Now(),
		LastSeenAt:      time.Now(),
		Metadata:        metadata,
	}
	s.entities[key] = entity
	return entity, nil
}

// fakeConceptStore mirrors fakeEntityStore without the type dimension
type fakeConceptStore struct {
	concepts map[string]*model.Concept
	failOn   string
}

func newFakeConceptStore() *fakeConceptStore {
	return &fakeConceptStore{concepts: map[string]*model.Concept{}}
}

func (s *fakeConceptStore) UpsertConcept(userID string, name string, normalizedName string, parentConceptID *uuid.UUID, mentionDelta int) (*model.Concept, error) {
	if s.failOn == normalizedName {
		return nil, errors.New("upsert concept failed")
	}

	key := userID + ":" + normalizedName
	if existing, ok := s.concepts[key]; ok {
		existing.OccurrenceCount += mentionDelta
		return existing, nil
	}

	concept := &model.Concept{
		ID:              uuid.New(),
		UserID:          userID,
		Name:            name,
		NormalizedName:  normalizedName,
		OccurrenceCount: mentionDelta,
		ParentConceptID: parentConceptID,
	}
	s.concepts[key] = concept
	return concept, nil
}

// fakeRelationshipStore keeps one edge per uniqueness key, like the
// real upsert contract
type fakeRelationshipStore struct {
	edges      map[string]*model.Relationship
	failTarget uuid.UUID
}

func newFakeRelationshipStore() *fakeRelationshipStore {
	return &fakeRelationshipStore{edges: map[string]*model.Relationship{}}
}

func edgeKey(userID string, source model.NodeRef, target model.NodeRef, relationshipType model.RelationshipType) string {
	return userID + ":" + string(source.Type) + ":" + source.ID.String() +
		":" + string(target.Type) + ":" + target.ID.String() + ":" + string(relationshipType)
}

func (s *fakeRelationshipStore) UpsertRelationship(userID string, source model.NodeRef, target model.NodeRef, relationshipType model.RelationshipType, weight float64, metadata model.Metadata) (*model.Relationship, error) {
	if target.ID == s.failTarget {
		return nil, errors.New("upsert relationship failed")
	}

	key := edgeKey(userID, source, target, relationshipType)
	if existing, ok := s.edges[key]; ok {
		existing.Weight = weight
		existing.Metadata = metadata
		return existing, nil
	}

	relationship := &model.Relationship{
		ID:       uuid.New(),
		UserID:   userID,
		Source:   source,
		Target:   target,
		Type:     relationshipType,
		Weight:   weight,
		Metadata: metadata,
	}
	s.edges[key] = relationship
	return relationship, nil
}

func (s *fakeRelationshipStore) edge(userID string, source model.NodeRef, target model.NodeRef, relationshipType model.RelationshipType) *model.Relationship {
	return s.edges[edgeKey(userID, source, target, relationshipType)]
}
