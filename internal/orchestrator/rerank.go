package orchestrator

import (
	"context"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/config"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/embedclient"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
)

// rerankContentTruncate bounds how much of a candidate's content is
// embedded during rerank, per spec.md §4.10 step 6.
const rerankContentTruncate = 1024

// rerank blends each result's agent-assigned score with the cosine
// similarity between the query embedding and the result's content
// embedding. On any embedding failure it falls back to sorting by
// agent_score alone rather than failing the request.
func rerank(ctx context.Context, embed embedclient.Client, model, query string, results []models.SearchResult, weights config.RerankConfig, entry *logrus.Entry) []models.SearchResult {
	if len(results) == 0 {
		return results
	}

	qVec, err := embed.Embed(ctx, model, query)
	if err != nil {
		entry.WithError(err).Warn("query embedding failed, reranking by agent score only")
		return sortByAgentScore(results)
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = truncate(r.Content, rerankContentTruncate)
	}
	docVecs, err := embed.EmbedBatch(ctx, model, texts)
	if err != nil || len(docVecs) != len(results) {
		entry.WithError(err).Warn("candidate embedding failed, reranking by agent score only")
		return sortByAgentScore(results)
	}

	agentWeight, embeddingWeight := weights.AgentWeight, weights.EmbeddingWeight
	if agentWeight == 0 && embeddingWeight == 0 {
		agentWeight, embeddingWeight = 0.7, 0.3
	}

	out := make([]models.SearchResult, len(results))
	copy(out, results)
	for i := range out {
		cos := cosineSimilarity(qVec, docVecs[i])
		out[i].RelevanceScore = agentWeight*results[i].RelevanceScore + embeddingWeight*cos
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RelevanceScore > out[j].RelevanceScore })
	return out
}

func sortByAgentScore(results []models.SearchResult) []models.SearchResult {
	out := make([]models.SearchResult, len(results))
	copy(out, results)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RelevanceScore > out[j].RelevanceScore })
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
