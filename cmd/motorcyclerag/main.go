// Command motorcyclerag runs the retrieval-augmented query API server:
// it wires configuration, the resilience registry, the Azure AI Foundry
// collaborator client, the index client, the query cache, every
// retrieval agent, the orchestrator, and the HTTP surface together, then
// serves spec.md §6's endpoints. It follows the reference system's
// cmd/api/main.go APIServer-struct / gin.Default() / r.Run(":"+port)
// shape, replacing that demo server's hardcoded protocol handlers with
// real component wiring.
package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/agents"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/azureclients"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/cache"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/config"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/embedclient"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/httpapi"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/indexclient"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/logging"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/orchestrator"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/ratelimit"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/resilience"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/websearch"
)

// APIServer holds every wired component and exposes the HTTP surface.
type APIServer struct {
	cfg     *config.Config
	logger  *logrus.Logger
	handler *httpapi.Handler
}

// NewAPIServer constructs an APIServer from environment configuration.
func NewAPIServer() (*APIServer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.New(cfg.Monitoring.LogFormat, cfg.Monitoring.LogLevel)
	policies := resilience.NewRegistry(logger)
	for name, cb := range cfg.Resilience.CircuitBreaker {
		policies.Register(&resilience.Policy{
			Name:    name,
			Breaker: resilience.NewCircuitBreaker(cb.FailureThreshold, cb.BreakDuration),
			Retry: resilience.RetryConfig{
				MaxRetries: cfg.Resilience.Retry.MaxRetries,
				BaseDelay:  cfg.Resilience.Retry.BaseDelay,
				MaxDelay:   cfg.Resilience.Retry.MaxDelay,
			},
		})
	}

	foundry := azureclients.NewFoundryClient(
		cfg.AzureAI.FoundryEndpoint,
		os.Getenv("AZURE_FOUNDRY_API_KEY"),
		cfg.HTTPClients.ConnectTimeout,
		cfg.HTTPClients.RequestTimeout,
		cfg.HTTPClients.MaxConnsPerEndpoint,
	)
	embed := embedclient.New(foundry, policies, cfg.AzureAI.Models.Temperature, cfg.AzureAI.Models.MaxTokens)

	index, err := indexclient.New(indexclient.Config{
		Host:   cfg.Search.QdrantURL,
		APIKey: cfg.Search.QdrantAPIKey,
	}, policies, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting index client: %w", err)
	}

	store := cache.New(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.DefaultDuration, logger)

	vectorAgent := agents.NewVectorAgent(embed, index, cfg.AzureAI.Models.Embedding)
	pdfAgent := agents.NewPDFAgent(embed, index, cfg.AzureAI.Models.Embedding)
	plannerAgent := agents.NewPlannerAgent(embed, cfg.AzureAI.Models.Planner, logger)

	searcher := websearch.New(websearch.Config{
		APIKey:      cfg.WebSearch.APIKey,
		BaseURL:     "https://api.search.brave.com/res/v1",
		Timeout:     cfg.HTTPClients.RequestTimeout,
		SafeSearch:  "moderate",
		CountryCode: "us",
		Language:    "en",
	})
	limiter := ratelimit.NewTokenBucket(ratelimit.TokenBucketConfig{
		Capacity:   cfg.WebSearch.RateLimitCapacity,
		RefillRate: cfg.WebSearch.RateLimitRefill,
	})
	webAgent := agents.NewWebAgent(searcher, policies, limiter, agents.AuthorityList{
		Allow: cfg.WebSearch.AllowedDomains,
		Block: cfg.WebSearch.BlockedDomains,
	})

	orch := orchestrator.New(
		plannerAgent,
		vectorAgent, pdfAgent, webAgent,
		embed,
		store,
		cfg.AzureAI.Models.Chat,
		config.RerankConfig{AgentWeight: cfg.Rerank.AgentWeight, EmbeddingWeight: cfg.Rerank.EmbeddingWeight},
		cfg.Search.EnableSemanticRanking,
		cfg.Concurrency,
		cfg.Server.RequestDeadline,
		cfg.Cache.DefaultDuration,
		logger,
	)

	handler := httpapi.NewHandler(orch, index, store, logger)

	return &APIServer{cfg: cfg, logger: logger, handler: handler}, nil
}

// Start runs the HTTP server until the process is terminated.
func (s *APIServer) Start() error {
	if s.cfg.Monitoring.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	s.handler.RegisterRoutes(router)

	s.logger.WithField("port", s.cfg.Server.Port).Info("starting motorcycle RAG query API server")
	return router.Run(s.cfg.Server.Host + ":" + s.cfg.Server.Port)
}

func main() {
	server, err := NewAPIServer()
	if err != nil {
		fmt.Fprintln(os.Stderr, "motorcyclerag: startup failed:", err)
		os.Exit(1)
	}
	if err := server.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "motorcyclerag: server exited:", err)
		os.Exit(1)
	}
}
