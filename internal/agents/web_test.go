package agents

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/ratelimit"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/resilience"
)

type fakeWebSearcher struct {
	results []WebResult
	err     error
}

func (f *fakeWebSearcher) Search(ctx context.Context, query string, limit int) ([]WebResult, error) {
	return f.results, f.err
}

func testRegistry() *resilience.Registry {
	logger := logrus.New()
	reg := resilience.NewRegistry(logger)
	reg.Register(&resilience.Policy{
		Name:    "websearch.fetch",
		Breaker: resilience.NewCircuitBreaker(5, time.Second),
		Retry:   resilience.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	})
	return reg
}

func unlimitedBucket() *ratelimit.TokenBucket {
	return ratelimit.NewTokenBucket(ratelimit.TokenBucketConfig{Capacity: 100, RefillRate: 1000})
}

func TestWebAgent_EmptyQueryReturnsEmptyWithoutRemoteCalls(t *testing.T) {
	searcher := &fakeWebSearcher{results: []WebResult{{URL: "https://example.com", Title: "t", Content: "c"}}}
	a := NewWebAgent(searcher, testRegistry(), unlimitedBucket(), AuthorityList{})

	results, err := a.Search(context.Background(), "  ", models.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestWebAgent_FiltersBlockedDomainsAndTruncatesContent(t *testing.T) {
	longContent := make([]byte, contentBudget+500)
	for i := range longContent {
		longContent[i] = 'x'
	}
	searcher := &fakeWebSearcher{results: []WebResult{
		{URL: "https://spam.example.com/page", Title: "spam", Content: "junk"},
		{URL: "https://trusted.example.com/page", Title: "good", Content: string(longContent)},
	}}
	authority := AuthorityList{Block: []string{"spam.example.com"}}
	a := NewWebAgent(searcher, testRegistry(), unlimitedBucket(), authority)

	results, err := a.Search(context.Background(), "oil capacity", models.SearchOptions{MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://trusted.example.com/page", results[0].ID)
	assert.Len(t, results[0].Content, contentBudget)
	assert.Equal(t, models.AgentTypeWeb, results[0].Source.AgentType)
}

func TestWebAgent_AllowListRestrictsToAllowedDomains(t *testing.T) {
	searcher := &fakeWebSearcher{results: []WebResult{
		{URL: "https://other.example.com/page", Title: "other", Content: "c"},
		{URL: "https://manufacturer.example.com/page", Title: "mfr", Content: "c"},
	}}
	authority := AuthorityList{Allow: []string{"manufacturer.example.com"}}
	a := NewWebAgent(searcher, testRegistry(), unlimitedBucket(), authority)

	results, err := a.Search(context.Background(), "specs", models.SearchOptions{MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://manufacturer.example.com/page", results[0].ID)
}

func TestWebAgent_RankScoreDescendsByResultOrder(t *testing.T) {
	searcher := &fakeWebSearcher{results: []WebResult{
		{URL: "https://a.example.com", Title: "a", Content: "c"},
		{URL: "https://b.example.com", Title: "b", Content: "c"},
	}}
	a := NewWebAgent(searcher, testRegistry(), unlimitedBucket(), AuthorityList{})

	results, err := a.Search(context.Background(), "specs", models.SearchOptions{MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Greater(t, results[0].RelevanceScore, results[1].RelevanceScore)
}

func TestWebAgent_WaitCancellationReturnsTimeoutError(t *testing.T) {
	exhausted := ratelimit.NewTokenBucket(ratelimit.TokenBucketConfig{Capacity: 1, RefillRate: 0})
	exhausted.Allow()
	a := NewWebAgent(&fakeWebSearcher{}, testRegistry(), exhausted, AuthorityList{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := a.Search(ctx, "specs", models.SearchOptions{MaxResults: 10})
	require.Error(t, err)
}
