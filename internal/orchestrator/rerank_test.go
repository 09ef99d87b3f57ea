package orchestrator

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/config"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
)

type fakeRerankEmbedder struct {
	queryVec  []float32
	docVecs   [][]float32
	embedErr  error
	batchErr  error
	calls     int
}

func (f *fakeRerankEmbedder) Embed(ctx context.Context, model, text string) ([]float32, error) {
	f.calls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.queryVec, nil
}
func (f *fakeRerankEmbedder) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	return f.docVecs, nil
}
func (f *fakeRerankEmbedder) Chat(ctx context.Context, model, prompt string) (string, error) {
	return "", nil
}

func discardEntry() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestRerank_BlendsAgentScoreAndCosineSimilarity(t *testing.T) {
	embed := &fakeRerankEmbedder{
		queryVec: []float32{1, 0},
		docVecs:  [][]float32{{1, 0}, {0, 1}},
	}
	results := []models.SearchResult{
		{ID: "aligned", RelevanceScore: 0.5},
		{ID: "orthogonal", RelevanceScore: 0.9},
	}
	weights := config.RerankConfig{AgentWeight: 0.7, EmbeddingWeight: 0.3}

	out := rerank(context.Background(), embed, "m", "query", results, weights, discardEntry())

	require.Len(t, out, 2)
	assert.Equal(t, "aligned", out[0].ID, "perfect cosine similarity should overcome a lower agent score in the blend")
	assert.InDelta(t, 0.7*0.5+0.3*1.0, out[0].RelevanceScore, 1e-9)
}

func TestRerank_FallsBackToAgentScoreOnQueryEmbedFailure(t *testing.T) {
	embed := &fakeRerankEmbedder{embedErr: assertErr{}}
	results := []models.SearchResult{
		{ID: "low", RelevanceScore: 0.2},
		{ID: "high", RelevanceScore: 0.8},
	}

	out := rerank(context.Background(), embed, "m", "query", results, config.RerankConfig{}, discardEntry())

	require.Len(t, out, 2)
	assert.Equal(t, "high", out[0].ID)
}

func TestRerank_FallsBackToAgentScoreOnBatchEmbedFailure(t *testing.T) {
	embed := &fakeRerankEmbedder{queryVec: []float32{1}, batchErr: assertErr{}}
	results := []models.SearchResult{
		{ID: "low", RelevanceScore: 0.2},
		{ID: "high", RelevanceScore: 0.8},
	}

	out := rerank(context.Background(), embed, "m", "query", results, config.RerankConfig{}, discardEntry())

	require.Len(t, out, 2)
	assert.Equal(t, "high", out[0].ID)
}

func TestRerank_EmptyResultsIsNoOp(t *testing.T) {
	out := rerank(context.Background(), &fakeRerankEmbedder{}, "m", "query", nil, config.RerankConfig{}, discardEntry())
	assert.Empty(t, out)
}

func TestCosineSimilarity_IdenticalVectorsIsOne(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
}

func TestCosineSimilarity_OrthogonalVectorsIsZero(t *testing.T) {
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
}

type assertErr struct{}

func (assertErr) Error() string { return "embedding unavailable" }
