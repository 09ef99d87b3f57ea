package agents

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/apperrors"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/embedclient"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/indexclient"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
)

const sectionBoost = 0.05

var nounPhrasePattern = regexp.MustCompile(`[A-Za-z][A-Za-z0-9'-]+`)

// PDFAgent implements the PDF-index search agent (spec.md §4.8, component
// C11): a hybrid query scoped to the PDF index, preserving section/page
// citation and boosting results whose section heading matches a term in
// the query.
type PDFAgent struct {
	embed embedclient.Client
	index indexclient.Client
	model string
}

// NewPDFAgent constructs a PDFAgent.
func NewPDFAgent(embed embedclient.Client, index indexclient.Client, model string) *PDFAgent {
	return &PDFAgent{embed: embed, index: index, model: model}
}

func (a *PDFAgent) Type() models.AgentType { return models.AgentTypePDF }

func (a *PDFAgent) Search(ctx context.Context, query string, opts models.SearchOptions) ([]models.SearchResult, error) {
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

	results, err := a.index.Query(ctx, models.IndexPDF, indexclient.HybridQueryOptions{
		Vector:   vec,
		Keywords: query,
		Filters:  opts.Filters,
		Limit:    topK,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamTransient, err, "pdf agent query failed")
	}

	queryTerms := nounPhrasePattern.FindAllString(strings.ToLower(query), -1)
	now := time.Now()
	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		if section, ok := r.Metadata["section"].(string); ok && matchesAnyTerm(section, queryTerms) {
			r.RelevanceScore += sectionBoost
		}
		if r.RelevanceScore < opts.MinRelevanceScore {
			continue
		}
		r.Source.AgentType = models.AgentTypePDF
		if r.Metadata == nil {
			r.Metadata = make(map[string]any)
		}
		r.Metadata["searchQuery"] = query
		r.Metadata["searchTimestamp"] = now
		r.Metadata["agentType"] = string(models.AgentTypePDF)
		out = append(out, r)
	}

	sortByRelevanceDescending(out)
	if len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out, nil
}

func matchesAnyTerm(section string, terms []string) bool {
	lower := strings.ToLower(section)
	for _, t := range terms {
		if len(t) > 2 && strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func sortByRelevanceDescending(results []models.SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
}
