package indexing

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
)

type fakeIndex struct {
	ensuredSchemas []models.IndexSchema
	upsertCalls    [][]models.MotorcycleDocument
	failOnBatch    int // -1 disables
}

func (f *fakeIndex) EnsureSchema(ctx context.Context, schema models.IndexSchema) error {
	f.ensuredSchemas = append(f.ensuredSchemas, schema)
	return nil
}

func (f *fakeIndex) UpsertBatch(ctx context.Context, name models.IndexName, docs []models.MotorcycleDocument) error {
	idx := len(f.upsertCalls)
	f.upsertCalls = append(f.upsertCalls, docs)
	if f.failOnBatch >= 0 && idx == f.failOnBatch {
		return errors.New("simulated upsert failure")
	}
	return nil
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func docsOfLen(n int) []models.MotorcycleDocument {
	out := make([]models.MotorcycleDocument, n)
	for i := range out {
		out[i] = models.MotorcycleDocument{ID: "doc"}
	}
	return out
}

func TestEnsureSchemas_CreatesAllThreeSchemas(t *testing.T) {
	idx := &fakeIndex{failOnBatch: -1}
	s := New(idx, nil, discardLogger())

	err := s.EnsureSchemas(context.Background(), 1536)
	require.NoError(t, err)
	require.Len(t, idx.ensuredSchemas, 3)
	assert.Equal(t, models.IndexCSV, idx.ensuredSchemas[0].Name)
	assert.Equal(t, models.IndexPDF, idx.ensuredSchemas[1].Name)
	assert.Equal(t, models.IndexUnified, idx.ensuredSchemas[2].Name)
}

func TestIndexDocuments_PartitionsIntoBatches(t *testing.T) {
	idx := &fakeIndex{failOnBatch: -1}
	s := New(idx, nil, discardLogger())

	report, err := s.IndexDocuments(context.Background(), models.IndexCSV, docsOfLen(250), 100)
	require.NoError(t, err)
	assert.Equal(t, 250, report.TotalDocuments)
	require.Len(t, report.Batches, 3)
	assert.Equal(t, 100, report.Batches[0].DocCount)
	assert.Equal(t, 100, report.Batches[1].DocCount)
	assert.Equal(t, 50, report.Batches[2].DocCount)
}

func TestIndexDocuments_ContinuesPastPartialBatchFailure(t *testing.T) {
	idx := &fakeIndex{failOnBatch: 1}
	s := New(idx, nil, discardLogger())

	report, err := s.IndexDocuments(context.Background(), models.IndexCSV, docsOfLen(300), 100)
	require.NoError(t, err)
	require.Len(t, report.Batches, 3)
	assert.Equal(t, 1, report.FailedBatches)
	assert.False(t, report.Batches[1].Success)
	assert.True(t, report.Batches[2].Success, "batch 3 should still run after batch 2 fails")
}

func TestBatchSize_ClampsToBounds(t *testing.T) {
	assert.Equal(t, minBatchSize, BatchSize(1000, 10_000_000))
	assert.Equal(t, maxBatchSize, BatchSize(1_000_000_000_000, 1))
}

func TestStats_NoRepositoryReturnsHealthyZero(t *testing.T) {
	s := New(&fakeIndex{failOnBatch: -1}, nil, discardLogger())
	stats, err := s.Stats(context.Background(), models.IndexCSV)
	require.NoError(t, err)
	assert.True(t, stats.Healthy)
	assert.Equal(t, int64(0), stats.DocumentCount)
}
