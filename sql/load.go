package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed bookmarks.sql
var bookmarksSQL string

//go:embed entities.sql
var entitiesSQL string

//go:embed concepts.sql
var conceptsSQL string

//go:embed relationships.sql
var relationshipsSQL string

//go:embed clusters.sql
var clustersSQL string

//go:embed jobs.sql
var jobsSQL string

// Function lists for verification
var BookmarksFunctions = []string{
	"init_bookmarks",
	"upsert_bookmark",
	"select_bookmark",
	"select_all_bookmarks",
	"select_nearest_bookmarks",
	"count_bookmarks",
}

var EntitiesFunctions = []string{
	"init_entities",
	"upsert_entity",
	"select_entity",
	"select_entities",
	"count_entities",
}

var ConceptsFunctions = []string{
	"init_concepts",
	"upsert_concept",
	"select_concept",
	"select_concepts",
	"count_concepts",
	"select_co_occurring_concepts",
}

var RelationshipsFunctions = []string{
	"init_relationships",
	"upsert_relationship",
	"select_relationships_from",
	"select_relationships_to",
	"select_bookmarks_sharing_node",
	"delete_relationships_touching_bookmark",
	"count_relationships",
}

var ClustersFunctions = []string{
	"init_clusters",
	"insert_cluster",
	"select_cluster",
	"select_clusters",
	"count_clusters",
	"merge_clusters",
}

var JobsFunctions = []string{
	"init_jobs",
	"enqueue_job",
	"claim_next_job",
	"renew_job_lease",
	"complete_job",
	"fail_job",
	"select_job",
	"select_jobs_for_bookmark",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadBookmarksSql loads bookmark-related SQL functions
func LoadBookmarksSql(db *sql.DB, force bool) error {
	return loadGroup(db, force, "bookmarks", bookmarksSQL, BookmarksFunctions)
}

// LoadEntitiesSql loads entity-related SQL functions
func LoadEntitiesSql(db *sql.DB, force bool) error {
	return loadGroup(db, force, "entities", entitiesSQL, EntitiesFunctions)
}

// LoadConceptsSql loads concept-related SQL functions
func LoadConceptsSql(db *sql.DB, force bool) error {
	return loadGroup(db, force, "concepts", conceptsSQL, ConceptsFunctions)
}

// LoadRelationshipsSql loads relationship-related SQL functions
func LoadRelationshipsSql(db *sql.DB, force bool) error {
	return loadGroup(db, force, "relationships", relationshipsSQL, RelationshipsFunctions)
}

// LoadClustersSql loads cluster-related SQL functions
func LoadClustersSql(db *sql.DB, force bool) error {
	return loadGroup(db, force, "clusters", clustersSQL, ClustersFunctions)
}

// LoadJobsSql loads job-related SQL functions
func LoadJobsSql(db *sql.DB, force bool) error {
	return loadGroup(db, force, "jobs", jobsSQL, JobsFunctions)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadEntitiesSql(db, force); err != nil {
		return err
	}

	if err := LoadConceptsSql(db, force); err != nil {
		return err
	}

	if err := LoadRelationshipsSql(db, force); err != nil {
		return err
	}

	if err := LoadClustersSql(db, force); err != nil {
		return err
	}

	if err := LoadBookmarksSql(db, force); err != nil {
		return err
	}

	if err := LoadJobsSql(db, force); err != nil {
		return err
	}

	return nil
}

// loadGroup loads one group of SQL functions, skipping the load when
// all functions already exist and force is false
func loadGroup(db *sql.DB, force bool, name string, groupSQL string, functions []string) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %v functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(groupSQL)
	if err != nil {
		return fmt.Errorf("error executing %v SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %v functions loaded successfully", name)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, err
		}
		if !allExist {
			return false, nil
		}
	}
	return allExist, nil
}
