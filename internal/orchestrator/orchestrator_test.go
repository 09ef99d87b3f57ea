package orchestrator

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/agents"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/cache"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/config"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
)

type fakeAgent struct {
	agentType models.AgentType
	mu        sync.Mutex
	calls     int
	results   []models.SearchResult
	err       error
	delay     time.Duration
}

func (a *fakeAgent) Type() models.AgentType { return a.agentType }

func (a *fakeAgent) Search(ctx context.Context, query string, opts models.SearchOptions) ([]models.SearchResult, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.results, nil
}

func (a *fakeAgent) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fakePlanner struct {
	plan models.QueryPlan
}

func (p *fakePlanner) Plan(ctx context.Context, query string, previousQueries []string, includeWeb bool) models.QueryPlan {
	return p.plan
}

type fakeStore struct {
	mu      sync.Mutex
	entries map[string][]models.SearchResult
}

func newFakeStore() *fakeStore { return &fakeStore{entries: make(map[string][]models.SearchResult)} }

func (s *fakeStore) Get(ctx context.Context, key string) ([]models.SearchResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok
}
func (s *fakeStore) Set(ctx context.Context, key string, results []models.SearchResult, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = results
}
func (s *fakeStore) Invalidate(ctx context.Context, pattern string) int { return 0 }
func (s *fakeStore) Stats() cache.Stats                                 { return cache.Stats{} }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestOrchestrator(plan models.QueryPlan, vector, pdf, web *fakeAgent, embed *fakeRerankEmbedder, store cache.Store, deadline time.Duration) *Orchestrator {
	return newTestOrchestratorWithRerankToggle(plan, vector, pdf, web, embed, store, deadline, true)
}

func newTestOrchestratorWithRerankToggle(plan models.QueryPlan, vector, pdf, web *fakeAgent, embed *fakeRerankEmbedder, store cache.Store, deadline time.Duration, semanticRerank bool) *Orchestrator {
	var v, p, w agents.Agent
	if vector != nil {
		v = vector
	}
	if pdf != nil {
		p = pdf
	}
	if web != nil {
		w = web
	}

	return New(
		&fakePlanner{plan: plan},
		v, p, w,
		embed,
		store,
		"chat-model",
		config.RerankConfig{AgentWeight: 0.7, EmbeddingWeight: 0.3},
		semanticRerank,
		config.ConcurrencyConfig{MaxConcurrentPerRequest: 4},
		deadline,
		time.Minute,
		testLogger(),
	)
}

func TestAnswer_SequentialShortCircuitsOncePriorAgentFillsMaxResults(t *testing.T) {
	vector := &fakeAgent{agentType: models.AgentTypeVector, results: []models.SearchResult{
		{ID: "1", RelevanceScore: 0.9, Source: models.SearchResultSource{DocumentID: "d1"}},
	}}
	pdf := &fakeAgent{agentType: models.AgentTypePDF, results: []models.SearchResult{
		{ID: "2", RelevanceScore: 0.8, Source: models.SearchResultSource{DocumentID: "d2"}},
	}}
	plan := models.QueryPlan{OriginalQuery: "q", SubQueries: []string{"q"}, RunParallel: false}
	o := newTestOrchestrator(plan, vector, pdf, nil, &fakeRerankEmbedder{queryVec: []float32{1}, docVecs: [][]float32{{1}}}, newFakeStore(), 0)

	resp, err := o.Answer(context.Background(), Request{
		Query:       "q",
		Preferences: models.SearchPreferences{IncludePDF: true},
		Options:     models.SearchOptions{MaxResults: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, StateDone, resp.State)
	assert.Equal(t, 1, vector.callCount())
	assert.Equal(t, 0, pdf.callCount(), "pdf agent should not run once vector already filled max_results")
}

func TestAnswer_ParallelRunsAllSelectedAgentsRegardlessOfEarlySufficiency(t *testing.T) {
	vector := &fakeAgent{agentType: models.AgentTypeVector, results: []models.SearchResult{
		{ID: "1", RelevanceScore: 0.9, Source: models.SearchResultSource{DocumentID: "d1"}},
	}}
	pdf := &fakeAgent{agentType: models.AgentTypePDF, results: []models.SearchResult{
		{ID: "2", RelevanceScore: 0.8, Source: models.SearchResultSource{DocumentID: "d2"}},
	}}
	plan := models.QueryPlan{OriginalQuery: "q", SubQueries: []string{"q"}, RunParallel: true}
	o := newTestOrchestrator(plan, vector, pdf, nil, &fakeRerankEmbedder{queryVec: []float32{1}, docVecs: [][]float32{{1}, {1}}}, newFakeStore(), 0)

	resp, err := o.Answer(context.Background(), Request{
		Query:       "q",
		Preferences: models.SearchPreferences{IncludePDF: true},
		Options:     models.SearchOptions{MaxResults: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, vector.callCount())
	assert.Equal(t, 1, pdf.callCount(), "parallel mode launches every selected agent regardless of accumulated results")
	assert.Len(t, resp.Results, 1, "results still truncated to max_results after fusion")
}

func TestAnswer_AgentFailureDoesNotAbortOrchestration(t *testing.T) {
	vector := &fakeAgent{agentType: models.AgentTypeVector, err: errors.New("boom")}
	pdf := &fakeAgent{agentType: models.AgentTypePDF, results: []models.SearchResult{
		{ID: "2", RelevanceScore: 0.8, Source: models.SearchResultSource{DocumentID: "d2"}},
	}}
	plan := models.QueryPlan{OriginalQuery: "q", SubQueries: []string{"q"}, RunParallel: false}
	o := newTestOrchestrator(plan, vector, pdf, nil, &fakeRerankEmbedder{queryVec: []float32{1}, docVecs: [][]float32{{1}}}, newFakeStore(), 0)

	resp, err := o.Answer(context.Background(), Request{
		Query:       "q",
		Preferences: models.SearchPreferences{IncludePDF: true},
		Options:     models.SearchOptions{MaxResults: 5},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, resp.Metrics.AgentsFailed)
	assert.True(t, resp.Metrics.Degraded)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "2", resp.Results[0].ID)
}

func TestAnswer_AllAgentsFailedReturnsFatalError(t *testing.T) {
	vector := &fakeAgent{agentType: models.AgentTypeVector, err: errors.New("boom")}
	plan := models.QueryPlan{OriginalQuery: "q", SubQueries: []string{"q"}, RunParallel: false}
	o := newTestOrchestrator(plan, vector, nil, nil, &fakeRerankEmbedder{}, newFakeStore(), 0)

	resp, err := o.Answer(context.Background(), Request{Query: "q", Options: models.SearchOptions{MaxResults: 5}})

	require.Error(t, err)
	assert.Equal(t, StateFailed, resp.State)
}

func TestAnswer_DeadlineExceededBeforeAnyResultReturnsFatalError(t *testing.T) {
	vector := &fakeAgent{agentType: models.AgentTypeVector, delay: 50 * time.Millisecond, results: []models.SearchResult{{ID: "1"}}}
	plan := models.QueryPlan{OriginalQuery: "q", SubQueries: []string{"q"}, RunParallel: false}
	o := newTestOrchestrator(plan, vector, nil, nil, &fakeRerankEmbedder{}, newFakeStore(), 5*time.Millisecond)

	resp, err := o.Answer(context.Background(), Request{Query: "q", Options: models.SearchOptions{MaxResults: 5}})

	require.Error(t, err)
	assert.Equal(t, StateFailed, resp.State)
}

func TestAnswer_WebAgentOnlyRunsWhenPlanAndPreferencesBothAgree(t *testing.T) {
	vector := &fakeAgent{agentType: models.AgentTypeVector, results: []models.SearchResult{{ID: "1", Source: models.SearchResultSource{DocumentID: "d1"}}}}
	web := &fakeAgent{agentType: models.AgentTypeWeb, results: []models.SearchResult{{ID: "2", Source: models.SearchResultSource{DocumentID: "d2"}}}}
	plan := models.QueryPlan{OriginalQuery: "q", SubQueries: []string{"q"}, RunParallel: false, UseWebSearch: false}
	o := newTestOrchestrator(plan, vector, nil, web, &fakeRerankEmbedder{queryVec: []float32{1}, docVecs: [][]float32{{1}}}, newFakeStore(), 0)

	_, err := o.Answer(context.Background(), Request{
		Query:       "q",
		Preferences: models.SearchPreferences{IncludeWeb: true},
		Options:     models.SearchOptions{MaxResults: 5},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, web.callCount(), "plan did not request web search, so it must not run even though preferences allow it")
}

func TestAnswer_EmptyResultsProducesExplicitNoEvidenceAnswerWithoutError(t *testing.T) {
	vector := &fakeAgent{agentType: models.AgentTypeVector, results: nil}
	plan := models.QueryPlan{OriginalQuery: "q", SubQueries: []string{"q"}, RunParallel: false}
	o := newTestOrchestrator(plan, vector, nil, nil, &fakeRerankEmbedder{}, newFakeStore(), 0)

	resp, err := o.Answer(context.Background(), Request{Query: "q", Options: models.SearchOptions{MaxResults: 5}})

	require.NoError(t, err)
	assert.Equal(t, StateDone, resp.State)
	assert.Contains(t, resp.Answer, "don't have enough information")
}

func TestAnswer_CacheHitAvoidsSecondAgentCallForIdenticalQuery(t *testing.T) {
	vector := &fakeAgent{agentType: models.AgentTypeVector, results: []models.SearchResult{{ID: "1", Source: models.SearchResultSource{DocumentID: "d1"}}}}
	plan := models.QueryPlan{OriginalQuery: "q", SubQueries: []string{"q"}, RunParallel: false}
	store := newFakeStore()
	o := newTestOrchestrator(plan, vector, nil, nil, &fakeRerankEmbedder{queryVec: []float32{1}, docVecs: [][]float32{{1}}}, store, 0)

	opts := models.SearchOptions{MaxResults: 5, EnableCaching: true}
	_, err := o.Answer(context.Background(), Request{Query: "q", Options: opts})
	require.NoError(t, err)
	assert.Equal(t, 1, vector.callCount())

	resp2, err := o.Answer(context.Background(), Request{Query: "q", Options: opts})
	require.NoError(t, err)
	assert.Equal(t, 1, vector.callCount(), "second identical query should be served from cache, not a second agent call")
	assert.True(t, resp2.Metrics.CacheHit)
}

func TestAnswer_SemanticRankingDisabledSortsByAgentScoreAndSkipsEmbedding(t *testing.T) {
	vector := &fakeAgent{agentType: models.AgentTypeVector, results: []models.SearchResult{
		{ID: "low", RelevanceScore: 0.2, Source: models.SearchResultSource{DocumentID: "d1"}},
		{ID: "high", RelevanceScore: 0.9, Source: models.SearchResultSource{DocumentID: "d2"}},
	}}
	plan := models.QueryPlan{OriginalQuery: "q", SubQueries: []string{"q"}, RunParallel: false}
	embed := &fakeRerankEmbedder{queryVec: []float32{1}, docVecs: [][]float32{{1}, {0}}}
	o := newTestOrchestratorWithRerankToggle(plan, vector, nil, nil, embed, newFakeStore(), 0, false)

	resp, err := o.Answer(context.Background(), Request{Query: "q", Options: models.SearchOptions{MaxResults: 5}})

	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "high", resp.Results[0].ID, "disabled semantic ranking still sorts fused results by agent_score")
	assert.Equal(t, 0.9, resp.Results[0].RelevanceScore, "agent_score must pass through unblended when semantic ranking is off")
	assert.Equal(t, 0, embed.calls, "the embedding client must not be called at all when semantic ranking is disabled")
}
