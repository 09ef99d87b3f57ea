package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/indexclient"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
)

type fakeEmbedder struct {
	embedErr error
	vector   []float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.vector, nil
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = f.vector
	}
	return out, nil
}
func (f *fakeEmbedder) Chat(ctx context.Context, model, prompt string) (string, error) { return "", nil }

type fakeIndexClient struct {
	results     []models.SearchResult
	lastOptions indexclient.HybridQueryOptions
	lastIndex   models.IndexName
}

func (f *fakeIndexClient) EnsureSchema(ctx context.Context, schema models.IndexSchema) error {
	return nil
}
func (f *fakeIndexClient) UpsertBatch(ctx context.Context, index models.IndexName, docs []models.MotorcycleDocument) error {
	return nil
}
func (f *fakeIndexClient) Query(ctx context.Context, index models.IndexName, opts indexclient.HybridQueryOptions) ([]models.SearchResult, error) {
	f.lastIndex = index
	f.lastOptions = opts
	return f.results, nil
}
func (f *fakeIndexClient) Ping(ctx context.Context) error { return nil }

func TestVectorAgent_EmptyQueryReturnsEmptyWithoutRemoteCalls(t *testing.T) {
	idx := &fakeIndexClient{results: []models.SearchResult{{ID: "1", RelevanceScore: 0.9}}}
	a := NewVectorAgent(&fakeEmbedder{vector: []float32{1}}, idx, "m")

	results, err := a.Search(context.Background(), "   ", models.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, idx.lastIndex, "index should never be queried for a blank query")
}

func TestVectorAgent_FiltersByMinRelevanceAndTruncates(t *testing.T) {
	idx := &fakeIndexClient{results: []models.SearchResult{
		{ID: "1", RelevanceScore: 0.9},
		{ID: "2", RelevanceScore: 0.1},
		{ID: "3", RelevanceScore: 0.8},
	}}
	a := NewVectorAgent(&fakeEmbedder{vector: []float32{1}}, idx, "m")

	results, err := a.Search(context.Background(), "oil type", models.SearchOptions{MaxResults: 1, MinRelevanceScore: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].ID)
	assert.Equal(t, "oil type", results[0].Metadata["searchQuery"])
}

func TestVectorAgent_EmbeddingFailureFallsBackToLexicalOnly(t *testing.T) {
	idx := &fakeIndexClient{results: []models.SearchResult{{ID: "1", RelevanceScore: 0.9}}}
	a := NewVectorAgent(&fakeEmbedder{embedErr: assertError{}}, idx, "m")

	results, err := a.Search(context.Background(), "oil type", models.SearchOptions{MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, idx.lastOptions.Vector)
}

type assertError struct{}

func (assertError) Error() string { return "embedding unavailable" }
