// Package indexing implements the indexing service (spec.md §4.3,
// component C8): idempotent schema creation, batched upsert with
// partial-failure tolerance, and aggregate statistics. The statistics
// bookkeeping is grounded on the reference system's
// internal/database.RequestRepository: a pgxpool-backed repository with a
// plain Create/Get/aggregate surface, here repurposed to track per-batch
// ingest outcomes instead of LLM request lifecycles.
package indexing

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
)

// BatchRecord is one batch upsert outcome, persisted for the Stats
// aggregation endpoint.
type BatchRecord struct {
	ID         string
	IndexName  models.IndexName
	DocCount   int
	Success    bool
	Error      string
	RecordedAt time.Time
}

// StatsRepository persists batch outcomes and aggregates per-index stats.
type StatsRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewStatsRepository constructs a StatsRepository over pool.
func NewStatsRepository(pool *pgxpool.Pool, log *logrus.Logger) *StatsRepository {
	return &StatsRepository{pool: pool, log: log}
}

// RecordBatch persists one batch's outcome.
func (r *StatsRepository) RecordBatch(ctx context.Context, rec BatchRecord) error {
	const query = `
		INSERT INTO ingest_batches (id, index_name, doc_count, success, error, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query, rec.ID, string(rec.IndexName), rec.DocCount, rec.Success, rec.Error, rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("indexing: recording batch outcome: %w", err)
	}
	return nil
}

// IndexStats is the aggregate per-index statistics spec.md §4.3's
// Statistics operation reports.
type IndexStats struct {
	IndexName    models.IndexName
	DocumentCount int64
	FailedBatches int64
	Healthy       bool
}

// Aggregate computes per-index statistics across recorded batches.
func (r *StatsRepository) Aggregate(ctx context.Context, index models.IndexName) (IndexStats, error) {
	const query = `
		SELECT
			COALESCE(SUM(doc_count) FILTER (WHERE success), 0),
			COALESCE(COUNT(*) FILTER (WHERE NOT success), 0)
		FROM ingest_batches
		WHERE index_name = $1
	`
	var docCount, failedBatches int64
	err := r.pool.QueryRow(ctx, query, string(index)).Scan(&docCount, &failedBatches)
	if err != nil {
		return IndexStats{}, fmt.Errorf("indexing: aggregating stats for %s: %w", index, err)
	}
	return IndexStats{
		IndexName:     index,
		DocumentCount: docCount,
		FailedBatches: failedBatches,
		Healthy:       failedBatches == 0,
	}, nil
}
