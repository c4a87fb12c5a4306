package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/linkery/linkgraph/helper"
	"github.com/linkery/linkgraph/model"
	"github.com/pgvector/pgvector-go"
	loadSql "github.com/linkery/linkgraph/sql"
)

// pgErrNoDataFound is raised by merge_clusters when a cluster is
// missing for the user
const pgErrNoDataFound = "P0002"

// ClustersDBHandlerFunctions defines the interface for Clusters database operations.
type ClustersDBHandlerFunctions interface {
	InsertCluster(cluster *model.Cluster) error
	SelectCluster(userID string, id uuid.UUID) (*model.Cluster, error)
	SelectClusters(userID string, limit int, offset int) ([]*model.Cluster, error)
	CountClusters(userID string) (int, error)
	MergeClusters(userID string, targetID uuid.UUID, sourceID uuid.UUID) (int, error)
}

// ClustersDBHandler handles cluster-related database operations
type ClustersDBHandler struct {
	db *helper.Database
}

// NewClustersDBHandler creates a new clusters database handler.
// embeddingDim is the dimension of the centroid vectors.
// If force is true, it will reload the SQL functions even if they already exist.
func NewClustersDBHandler(db *helper.Database, embeddingDim int, force bool) (*ClustersDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	clustersDbHandler := &ClustersDBHandler{
		db: db,
	}

	err := loadSql.LoadClustersSql(clustersDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load clusters sql", err)
	}

	err = clustersDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ClustersDBHandler")

	return clustersDbHandler, nil
}

// CreateTable creates the 'clusters' table in the database.
// If the table already exists, it does not create it again.
func (h *ClustersDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_clusters($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing clusters table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table clusters")

	return nil
}

// InsertCluster inserts a new cluster and fills the generated fields
// on the passed struct
func (h *ClustersDBHandler) InsertCluster(cluster *model.Cluster) error {
	var centroidArg interface{}
	if len(cluster.Centroid) > 0 {
		centroidArg = pgvector.NewVector(cluster.Centroid)
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_cluster($1, $2, $3, $4, $5)`,
		cluster.UserID,
		cluster.Name,
		cluster.Description,
		cluster.CoherenceScore,
		centroidArg,
	)

	err := scanCluster(row, cluster)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectCluster retrieves a cluster by ID, returning model.ErrNotFound
// when it does not exist for the user
func (h *ClustersDBHandler) SelectCluster(userID string, id uuid.UUID) (*model.Cluster, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_cluster($1, $2)`,
		userID,
		id,
	)

	cluster := &model.Cluster{}
	err := scanCluster(row, cluster)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select cluster", model.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return cluster, nil
}

// SelectClusters retrieves clusters for a user ordered by bookmark
// count descending
func (h *ClustersDBHandler) SelectClusters(userID string, limit int, offset int) ([]*model.Cluster, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_clusters($1, $2, $3)`,
		userID,
		limit,
		offset,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var clusters []*model.Cluster
	for rows.Next() {
		cluster := &model.Cluster{}
		if err := scanCluster(rows, cluster); err != nil {
			return nil, helper.NewError("scan", err)
		}
		clusters = append(clusters, cluster)
	}

	return clusters, rows.Err()
}

// CountClusters returns the number of clusters for a user
func (h *ClustersDBHandler) CountClusters(userID string) (int, error) {
	var count int
	err := h.db.Instance.QueryRow(
		`SELECT count_clusters($1)`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}

// MergeClusters merges the source cluster into the target inside a
// single database transaction: bookmarks are repointed, the counts
// added, edges follow the merge and the source is deleted. Returns
// the number of repointed bookmarks, or model.ErrNotFound when either
// cluster does not exist for the user.
func (h *ClustersDBHandler) MergeClusters(userID string, targetID uuid.UUID, sourceID uuid.UUID) (int, error) {
	var moved int
	err := h.db.Instance.QueryRow(
		`SELECT merge_clusters($1, $2, $3)`,
		userID,
		targetID,
		sourceID,
	).Scan(&moved)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgErrNoDataFound {
			return 0, helper.NewError("merge clusters", model.ErrNotFound)
		}
		return 0, helper.NewError("scan", err)
	}

	return moved, nil
}

func scanCluster(row rowScanner, cluster *model.Cluster) error {
	return row.Scan(
		&cluster.ID,
		&cluster.UserID,
		&cluster.Name,
		&cluster.Description,
		&cluster.CoherenceScore,
		&cluster.BookmarkCount,
		pq.Array(&cluster.Centroid),
		&cluster.CreatedAt,
		&cluster.UpdatedAt,
	)
}
