// Advanced example: asynchronous extraction through the job pipeline,
// a redis-backed cache tier and cluster administration.
package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/linkery/linkgraph"
	"github.com/linkery/linkgraph/cache"
	"github.com/linkery/linkgraph/core/jobs"
	"github.com/linkery/linkgraph/helper"
	"github.com/linkery/linkgraph/model"
	"github.com/redis/go-redis/v9"
)

var bookmarks = map[string]string{
	"kubernetes-networking": `Kubernetes networking explained. Services, ingress
controllers and the CNI model. Google open sourced Kubernetes in 2014 and it
now anchors most cloud platforms.`,
	"postgres-tuning": `Tuning PostgreSQL for write-heavy workloads: checkpoints,
WAL configuration and autovacuum. PostgreSQL rewards careful configuration.`,
	"go-concurrency": `Go concurrency patterns: goroutines, channels and the
context package. Go makes fan-out fan-in pipelines short and readable.`,
}

func main() {
	ctx := context.Background()

	pgTeardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer pgTeardown(ctx)

	redisTeardown, redisPort, err := helper.MustStartRedisContainer()
	if err != nil {
		log.Fatalf("Failed to start redis container: %v", err)
	}
	defer redisTeardown(ctx)

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

	// Redis cache tier in front of the graph store
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:" + redisPort})
	defer redisClient.Close()
	g.SetCache(cache.NewRedisStore(redisClient, cache.DefaultConfig()))

	if err := g.UseDefaultCollaborators(); err != nil {
		log.Fatalf("Failed to set up collaborators: %v", err)
	}
	// A concept classifier would normally be an LLM call; here a tiny
	// keyword matcher is enough to show the graph taking shape
	g.SetConceptClassifier(keywordConcepts)

	// Faster tunables than the production defaults, the example should
	// finish quickly
	g.SetJobConfig(jobs.Config{
		Concurrency:    2,
		LeaseDuration:  time.Minute,
		RenewInterval:  10 * time.Second,
		PollInterval:   200 * time.Millisecond,
		MaxAttempts:    2,
		BaseRetryDelay: time.Second,
	})

	userID := "example-user"
	ids := map[string]uuid.UUID{}

	fmt.Println("Enqueueing bookmarks...")
	for name, content := range bookmarks {
		id := uuid.New()
		ids[name] = id
		if _, err := g.EnqueueBookmark(userID, id, content); err != nil {
			log.Fatalf("Failed to enqueue bookmark %v: %v", name, err)
		}
	}

	g.StartPipeline(ctx)
	time.Sleep(5 * time.Second)
	g.StopPipeline()

	stats, err := g.GetGraphStats(ctx, userID)
	if err != nil {
		log.Fatalf("Failed to get graph stats: %v", err)
	}
	fmt.Printf("Graph after pipeline: %d entities, %d concepts, %d relationships\n",
		stats.EntityCount, stats.ConceptCount, stats.RelationshipCount)

	related, err := g.FindRelatedBookmarks(ctx, userID, ids["go-concurrency"], model.TraversalConfig{Depth: 2, Limit: 10})
	if err != nil {
		log.Fatalf("Failed to find related bookmarks: %v", err)
	}
	for _, r := range related {
		fmt.Printf("  related: %v weight=%.2f depth=%d via=%q\n", r.BookmarkID, r.Weight, r.Depth, r.Via)
	}

	// Cluster administration: create two clusters and merge them
	target := &model.Cluster{UserID: userID, Name: "Infrastructure"}
	source := &model.Cluster{UserID: userID, Name: "Databases"}
	if err := g.Clusters.InsertCluster(target); err != nil {
		log.Fatalf("Failed to insert cluster: %v", err)
	}
	if err := g.Clusters.InsertCluster(source); err != nil {
		log.Fatalf("Failed to insert cluster: %v", err)
	}

	result, err := g.MergeClusters(ctx, userID, target.ID, source.ID)
	if err != nil {
		log.Fatalf("Failed to merge clusters: %v", err)
	}
	fmt.Printf("Merged cluster %v, %d bookmarks moved\n", result.TargetID, result.MergedCount)

	cacheStats := g.GetCacheStats()
	fmt.Printf("Cache: %d hits, %d misses, %d sets\n", cacheStats.Hits, cacheStats.Misses, cacheStats.Sets)
}

// keywordConcepts is a stand-in for an LLM concept classifier
func keywordConcepts(text string, embedding []float32) ([]*model.ConceptCandidate, error) {
	keywords := map[string]float64{
		"networking":  0.8,
		"concurrency": 0.8,
		"databases":   0.7,
		"cloud":       0.6,
	}

	var candidates []*model.ConceptCandidate
	lower := strings.ToLower(text)
	for keyword, weight := range keywords {
		if strings.Contains(lower, keyword) {
			candidates = append(candidates, &model.ConceptCandidate{Name: keyword, Weight: weight})
		}
	}
	return candidates, nil
}
