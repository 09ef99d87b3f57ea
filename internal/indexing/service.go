package indexing

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/logging"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
)

const (
	minBatchSize  = 100
	maxBatchSize  = 1000
	safetyFactor  = 4
)

// BatchReport records one batch's upsert outcome within an IndexDocuments
// call.
type BatchReport struct {
	BatchIndex int
	DocCount   int
	Success    bool
	Error      string
}

// Report is IndexDocuments' accumulated outcome across all batches.
type Report struct {
	TotalDocuments int
	Batches        []BatchReport
	FailedBatches  int
}

// Service implements the indexing operations spec.md §4.3 names.
type Service struct {
	index index
	stats *StatsRepository
	log   *logrus.Logger
}

type index interface {
	EnsureSchema(ctx context.Context, schema models.IndexSchema) error
	UpsertBatch(ctx context.Context, name models.IndexName, docs []models.MotorcycleDocument) error
}

// New constructs a Service. stats may be nil, in which case per-batch
// statistics are not persisted and Stats reports zero counts with Healthy
// set to true.
func New(idx index, stats *StatsRepository, log *logrus.Logger) *Service {
	return &Service{index: idx, stats: stats, log: log}
}

// EnsureSchemas idempotently creates the CSV, PDF, and Unified schemas.
func (s *Service) EnsureSchemas(ctx context.Context, vectorDim int) error {
	for _, schema := range []models.IndexSchema{
		models.CSVSchema(vectorDim),
		models.PDFSchema(vectorDim),
		models.UnifiedSchema(vectorDim),
	} {
		if err := s.index.EnsureSchema(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}

// BatchSize applies the heuristic from spec.md §4.3:
// clamp(available_memory_bytes / (avg_doc_bytes * safety_factor), 100, 1000).
func BatchSize(availableMemoryBytes int64, avgDocBytes int64) int {
	if avgDocBytes <= 0 {
		avgDocBytes = 1024
	}
	size := availableMemoryBytes / (avgDocBytes * safetyFactor)
	if size < minBatchSize {
		return minBatchSize
	}
	if size > maxBatchSize {
		return maxBatchSize
	}
	return int(size)
}

// EstimateAvailableMemory reports a conservative estimate of memory
// available for batch sizing, derived from the Go runtime's own view of
// its heap budget.
func EstimateAvailableMemory() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.Sys > m.HeapAlloc {
		return int64(m.Sys - m.HeapAlloc)
	}
	return int64(m.Sys)
}

// IndexDocuments partitions docs into batches of batchSize, upserts each
// under the index client's resilience policy, and continues past
// per-batch failures, accumulating a Report.
func (s *Service) IndexDocuments(ctx context.Context, name models.IndexName, docs []models.MotorcycleDocument, batchSize int) (*Report, error) {
	if batchSize < minBatchSize {
		batchSize = minBatchSize
	}
	if batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}

	entry := logging.Entry(ctx, s.log, "indexing").WithField("index", string(name))
	report := &Report{TotalDocuments: len(docs)}

	for start, batchIdx := 0, 0; start < len(docs); start, batchIdx = start+batchSize, batchIdx+1 {
		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		err := s.index.UpsertBatch(ctx, name, batch)
		br := BatchReport{BatchIndex: batchIdx, DocCount: len(batch), Success: err == nil}
		if err != nil {
			br.Error = err.Error()
			report.FailedBatches++
			entry.WithError(err).WithField("batch", batchIdx).Warn("batch upsert failed, continuing with remaining batches")
		}
		report.Batches = append(report.Batches, br)

		if s.stats != nil {
			if recErr := s.stats.RecordBatch(ctx, BatchRecord{
				ID:         uuid.NewString(),
				IndexName:  name,
				DocCount:   len(batch),
				Success:    err == nil,
				Error:      br.Error,
				RecordedAt: time.Now(),
			}); recErr != nil {
				entry.WithError(recErr).Warn("failed to persist batch statistics")
			}
		}
	}

	return report, nil
}

// Stats aggregates per-index statistics via the underlying repository; it
// reports zero counts with Healthy=true if no repository was configured.
func (s *Service) Stats(ctx context.Context, name models.IndexName) (IndexStats, error) {
	if s.stats == nil {
		return IndexStats{IndexName: name, Healthy: true}, nil
	}
	return s.stats.Aggregate(ctx, name)
}
