package agents

import (
	"context"
	"strings"
	"time"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/apperrors"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/ratelimit"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/resilience"
)

// contentBudget is the maximum number of characters kept from a fetched
// page's text before it is returned as a SearchResult.
const contentBudget = 4000

// WebResult is one page a WebSearcher returns.
type WebResult struct {
	URL     string
	Title   string
	Content string
}

// WebSearcher is the external web search facade injected into WebAgent.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]WebResult, error)
}

// AuthorityList filters web results by a domain allow/block list.
type AuthorityList struct {
	Allow []string
	Block []string
}

func (a AuthorityList) permits(url string) bool {
	for _, blocked := range a.Block {
		if blocked != "" && strings.Contains(url, blocked) {
			return false
		}
	}
	if len(a.Allow) == 0 {
		return true
	}
	for _, allowed := range a.Allow {
		if allowed != "" && strings.Contains(url, allowed) {
			return true
		}
	}
	return false
}

// WebAgent implements the external web search agent (spec.md §4.7,
// component C10): rate-limited, authority-filtered, content-budgeted.
type WebAgent struct {
	searcher  WebSearcher
	policies  *resilience.Registry
	limiter   *ratelimit.TokenBucket
	authority AuthorityList
}

// NewWebAgent constructs a WebAgent.
func NewWebAgent(searcher WebSearcher, policies *resilience.Registry, limiter *ratelimit.TokenBucket, authority AuthorityList) *WebAgent {
	return &WebAgent{searcher: searcher, policies: policies, limiter: limiter, authority: authority}
}

func (a *WebAgent) Type() models.AgentType { return models.AgentTypeWeb }

func (a *WebAgent) Search(ctx context.Context, query string, opts models.SearchOptions) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	opts = opts.WithDefaults()

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.KindTimeout, err, "web agent rate limit wait cancelled")
	}

	result, err := a.policies.Execute(ctx, "websearch.fetch", func(ctx context.Context) (any, error) {
		return a.searcher.Search(ctx, query, opts.MaxResults)
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamTransient, err, "web search failed")
	}

	webResults := result.([]WebResult)
	now := time.Now()
	out := make([]models.SearchResult, 0, len(webResults))
	for i, r := range webResults {
		if !a.authority.permits(r.URL) {
			continue
		}
		content := r.Content
		if len(content) > contentBudget {
			content = content[:contentBudget]
		}
		out = append(out, models.SearchResult{
			ID:             r.URL,
			Content:        content,
			RelevanceScore: rankScore(i, len(webResults)),
			Source: models.SearchResultSource{
				AgentType:  models.AgentTypeWeb,
				SourceName: r.Title,
				URL:        r.URL,
			},
			Metadata: map[string]any{
				"searchQuery":     query,
				"searchTimestamp": now,
				"agentType":       string(models.AgentTypeWeb),
			},
		})
		if len(out) >= opts.MaxResults {
			break
		}
	}
	return out, nil
}

// rankScore derives a relevance score from the provider's result ordering,
// since web search results arrive pre-ranked without a numeric score.
func rankScore(index, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(index)/float64(total)
}
