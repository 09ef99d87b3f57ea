// Package orchestrator implements the multi-agent retrieval orchestrator
// (spec.md §4.10, component C13): it plans a query, runs the selected
// retrieval agents sequentially-with-short-circuit or in parallel,
// deduplicates and semantically reranks the fused results, and
// synthesises a cited natural-language answer. Every remote call an agent
// makes already goes through the resilience registry; the orchestrator's
// own job is agent selection, fan-out, fusion, and the per-query state
// machine spec.md §4.11 names.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/agents"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/apperrors"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/cache"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/config"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/embedclient"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/logging"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/resilience"
)

// planner is the capability PlannerAgent provides; kept as an interface
// so tests can substitute a stub planner.
type planner interface {
	Plan(ctx context.Context, query string, previousQueries []string, includeWeb bool) models.QueryPlan
}

// Request is one query-answering invocation.
type Request struct {
	Query        string
	Preferences  models.SearchPreferences
	QueryContext models.QueryContext
	Options      models.SearchOptions
}

// Metrics reports degraded-mode visibility per spec.md §7's "user-visible
// behavior" clause.
type Metrics struct {
	AgentsAttempted int
	AgentsFailed    int
	CacheHit        bool
	Degraded        bool
}

// Response is the orchestrator's fused, synthesised answer.
type Response struct {
	Answer        string
	Results       []models.SearchResult
	Plan          models.QueryPlan
	State         State
	Metrics       Metrics
	CorrelationID string
}

// Orchestrator wires the planner, the retrieval agents, the query cache,
// and answer synthesis into a single query-answering pipeline.
type Orchestrator struct {
	planner         planner
	vector          agents.Agent
	pdf             agents.Agent
	web             agents.Agent
	embed           embedclient.Client
	cache           cache.Store
	chatModel       string
	rerankWeights   config.RerankConfig
	semanticRerank  bool
	concurrency     config.ConcurrencyConfig
	requestDeadline time.Duration
	cacheTTL        time.Duration
	logger          *logrus.Logger
}

// New constructs an Orchestrator. pdf and web may be nil when those
// capabilities aren't configured for a deployment; they are then simply
// never selected regardless of preferences or plan. semanticRerank gates
// spec.md §4.10 step 6's embedding-similarity blend
// (config.SearchConfig.EnableSemanticRanking): when false, fused results
// are sorted by agent_score alone and the embedding client is never
// called during fusion.
func New(
	plannerAgent planner,
	vector, pdf, web agents.Agent,
	embed embedclient.Client,
	store cache.Store,
	chatModel string,
	rerankWeights config.RerankConfig,
	semanticRerank bool,
	concurrency config.ConcurrencyConfig,
	requestDeadline time.Duration,
	cacheTTL time.Duration,
	logger *logrus.Logger,
) *Orchestrator {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Orchestrator{
		planner:         plannerAgent,
		vector:          vector,
		pdf:             pdf,
		web:             web,
		embed:           embed,
		cache:           store,
		chatModel:       chatModel,
		rerankWeights:   rerankWeights,
		semanticRerank:  semanticRerank,
		concurrency:     concurrency,
		requestDeadline: requestDeadline,
		cacheTTL:        cacheTTL,
		logger:          logger,
	}
}

// Answer runs one query through plan -> retrieve -> dedup -> rerank ->
// synthesise, honoring the overall request deadline at every suspension
// point.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (*Response, error) {
	correlationID := resilience.NewCorrelationID()
	ctx = logging.WithCorrelationID(ctx, correlationID)
	entry := logging.Entry(ctx, o.logger, "orchestrator")

	if o.requestDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.requestDeadline)
		defer cancel()
	}

	opts := req.Options.WithDefaults()
	resp := &Response{State: StatePlanning, CorrelationID: correlationID}

	plan := o.planner.Plan(ctx, req.Query, nil, req.Preferences.IncludeWeb)
	resp.Plan = plan

	resp.State = StateRetrieving
	selected := o.selectAgents(plan, req.Preferences)
	if len(selected) == 0 {
		resp.State = StateFailed
		return resp, apperrors.New(apperrors.KindValidation, "no retrieval agents selected for this query")
	}

	dedup := newDedupSet()
	metrics := Metrics{}

	if plan.RunParallel {
		o.runParallel(ctx, selected, plan.SubQueries, opts, dedup, &metrics, entry)
	} else {
		o.runSequential(ctx, selected, plan.SubQueries, opts, dedup, &metrics, entry)
	}

	deadlineExceeded := ctx.Err() != nil
	results := dedup.list()

	if len(results) == 0 {
		if deadlineExceeded {
			resp.State = StateFailed
			return resp, apperrors.New(apperrors.KindTimeout, "deadline exceeded before any agent returned results")
		}
		if metrics.AgentsAttempted > 0 && metrics.AgentsFailed == metrics.AgentsAttempted {
			resp.State = StateFailed
			return resp, apperrors.New(apperrors.KindInternal, "all retrieval agents failed and no cached results were available")
		}
	}

	resp.State = StateFusing
	if o.semanticRerank {
		results = rerank(ctx, o.embed, o.chatModel, req.Query, results, o.rerankWeights, entry)
	} else {
		results = sortByAgentScore(results)
	}
	if len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	resp.Results = results

	resp.State = StateSynthesising
	answer, err := o.synthesize(ctx, req.Query, results)
	if err != nil {
		entry.WithError(err).Warn("answer synthesis failed, falling back to raw snippet listing")
		metrics.Degraded = true
		answer = fallbackAnswer(results)
	}
	resp.Answer = answer

	if metrics.AgentsFailed > 0 || deadlineExceeded {
		metrics.Degraded = true
	}
	resp.Metrics = metrics
	resp.State = StateDone
	return resp, nil
}

// selectAgents implements spec.md §4.10 step 2: vector always
// participates; PDF joins when requested by the caller; web joins only
// when both the plan and the caller agree to it.
func (o *Orchestrator) selectAgents(plan models.QueryPlan, prefs models.SearchPreferences) []agents.Agent {
	selected := make([]agents.Agent, 0, 3)
	if o.vector != nil {
		selected = append(selected, o.vector)
	}
	if prefs.IncludePDF && o.pdf != nil {
		selected = append(selected, o.pdf)
	}
	if plan.UseWebSearch && prefs.IncludeWeb && o.web != nil {
		selected = append(selected, o.web)
	}
	return selected
}

// runSequential runs agents in the fixed priority order they were
// selected in (Vector, PDF, Web), short-circuiting once the deduplicated
// result count reaches max_results.
func (o *Orchestrator) runSequential(ctx context.Context, selected []agents.Agent, subQueries []string, opts models.SearchOptions, dedup *dedupSet, metrics *Metrics, entry *logrus.Entry) {
	for _, subQuery := range subQueries {
		for _, agent := range selected {
			if ctx.Err() != nil {
				return
			}
			metrics.AgentsAttempted++
			results, cacheHit, err := o.runAgent(ctx, agent, subQuery, opts)
			if cacheHit {
				metrics.CacheHit = true
			}
			if err != nil {
				metrics.AgentsFailed++
				entry.WithError(err).WithField("agent", agent.Type()).Warn("agent failed, continuing orchestration")
				continue
			}
			for _, r := range results {
				dedup.add(r)
			}
			if dedup.len() >= opts.MaxResults {
				return
			}
		}
	}
}

// runParallel launches every (sub-query, agent) pair concurrently,
// bounded by a semaphore sized to the per-request concurrency limit, and
// awaits all of them before returning.
func (o *Orchestrator) runParallel(ctx context.Context, selected []agents.Agent, subQueries []string, opts models.SearchOptions, dedup *dedupSet, metrics *Metrics, entry *logrus.Entry) {
	limit := o.concurrency.MaxConcurrentPerRequest
	if limit <= 0 {
		limit = 8
	}
	sem := semaphore.NewWeighted(int64(limit))

	var group errgroup.Group
	var mu sync.Mutex

	for _, subQuery := range subQueries {
		for _, agent := range selected {
			subQuery, agent := subQuery, agent
			if err := sem.Acquire(ctx, 1); err != nil {
				group.Wait()
				return
			}
			group.Go(func() error {
				defer sem.Release(1)

				mu.Lock()
				metrics.AgentsAttempted++
				mu.Unlock()

				results, cacheHit, err := o.runAgent(ctx, agent, subQuery, opts)

				mu.Lock()
				defer mu.Unlock()
				if cacheHit {
					metrics.CacheHit = true
				}
				if err != nil {
					metrics.AgentsFailed++
					entry.WithError(err).WithField("agent", agent.Type()).Warn("agent failed, continuing orchestration")
					return nil
				}
				for _, r := range results {
					dedup.add(r)
				}
				return nil
			})
		}
	}
	group.Wait()
}

// runAgent checks the query cache before invoking an agent and populates
// it afterward, per spec.md §4.5. The returned bool reports whether the
// result came from the cache.
func (o *Orchestrator) runAgent(ctx context.Context, agent agents.Agent, query string, opts models.SearchOptions) ([]models.SearchResult, bool, error) {
	if o.cache == nil || !opts.EnableCaching {
		results, err := agent.Search(ctx, query, opts)
		return results, false, err
	}

	key := cache.Fingerprint(agent.Type(), query, opts)
	if cached, ok := o.cache.Get(ctx, key); ok {
		return cached, true, nil
	}

	results, err := agent.Search(ctx, query, opts)
	if err != nil {
		return nil, false, err
	}
	o.cache.Set(ctx, key, results, o.cacheTTL)
	return results, false, nil
}
