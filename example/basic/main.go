package main

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/linkery/linkgraph"
	"github.com/linkery/linkgraph/helper"
	"github.com/linkery/linkgraph/model"
)

const sampleContent = `Go at Google: language design in the service of software engineering.

Rob Pike and Robert Griesemer designed Go at Google to make large-scale
software development more productive. The language pairs a small surface
with a powerful standard library and first-class concurrency.

PostgreSQL is a popular companion for Go services, and pgvector adds
vector similarity search on top of it.`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "linkgraph",
		Username: "postgres",
		Password: "postgres",
		Schema:   "public",
	}

	g, err := linkgraph.NewLinkGraph(dbConfig, 384)
	if err != nil {
		log.Fatalf("Failed to create linkgraph: %v", err)
	}
	defer g.Close()

	// Local NER classifier + embedder, no external service needed
	if err := g.UseDefaultCollaborators(); err != nil {
		log.Fatalf("Failed to set up collaborators: %v", err)
	}

	ctx := context.Background()
	userID := "example-user"
	bookmarkID := uuid.New()

	fmt.Println("Extracting bookmark...")
	entities, concepts, err := g.ExtractAndSave(ctx, userID, bookmarkID, sampleContent)
	if err != nil {
		log.Fatalf("Failed to extract bookmark: %v", err)
	}
	fmt.Printf("Saved %d entities and %d concepts\n", entities, concepts)

	// List the extracted entities
	extracted, err := g.ListEntities(ctx, userID, nil, 10, 0)
	if err != nil {
		log.Fatalf("Failed to list entities: %v", err)
	}
	for _, entity := range extracted {
		fmt.Printf("  %-12s %-30s mentions=%d\n", entity.Type, entity.Name, entity.OccurrenceCount)
	}

	// Traverse outward from the bookmark
	related, err := g.FindRelatedBookmarks(ctx, userID, bookmarkID, model.DefaultTraversalConfig())
	if err != nil {
		log.Fatalf("Failed to find related bookmarks: %v", err)
	}
	fmt.Printf("Related bookmarks: %d\n", len(related))

	stats, err := g.GetGraphStats(ctx, userID)
	if err != nil {
		log.Fatalf("Failed to get graph stats: %v", err)
	}
	fmt.Printf("Graph: %d bookmarks, %d entities, %d relationships\n",
		stats.BookmarkCount, stats.EntityCount, stats.RelationshipCount)
}
