package agents

import (
	"context"
	"strings"
	"time"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/apperrors"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/embedclient"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/indexclient"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
)

const topKCap = 300

// VectorAgent implements the hybrid lexical+vector search agent (spec.md
// §4.6, component C9).
type VectorAgent struct {
	embed embedclient.Client
	index indexclient.Client
	model string
}

// NewVectorAgent constructs a VectorAgent scoped to the unified index.
func NewVectorAgent(embed embedclient.Client, index indexclient.Client, model string) *VectorAgent {
	return &VectorAgent{embed: embed, index: index, model: model}
}

func (a *VectorAgent) Type() models.AgentType { return models.AgentTypeVector }

func (a *VectorAgent) Search(ctx context.Context, query string, opts models.SearchOptions) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	opts = opts.WithDefaults()

	topK := opts.MaxResults * 3
	if topK > topKCap {
		topK = topKCap
	}

	var vec []float32
	if v, err := a.embed.Embed(ctx, a.model, query); err == nil {
		vec = v
	}

	results, err := a.index.Query(ctx, models.IndexUnified, indexclient.HybridQueryOptions{
		Vector:   vec,
		Keywords: query,
		Filters:  opts.Filters,
		Limit:    topK,
		MinScore: 0,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamTransient, err, "vector agent query failed")
	}

	now := time.Now()
	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		if r.RelevanceScore < opts.MinRelevanceScore {
			continue
		}
		r.Source.AgentType = models.AgentTypeVector
		if r.Metadata == nil {
			r.Metadata = make(map[string]any)
		}
		r.Metadata["searchQuery"] = query
		r.Metadata["searchTimestamp"] = now
		r.Metadata["agentType"] = string(models.AgentTypeVector)
		out = append(out, r)
		if len(out) >= opts.MaxResults {
			break
		}
	}
	return out, nil
}
