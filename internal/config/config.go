// Package config loads the system's configuration surface (spec.md §6)
// from environment variables, following the reference system's
// internal/config.Load() shape: a root Config struct composed of
// per-concern sub-structs, populated through small typed getEnv helpers
// with defaults, validated once at load time.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/apperrors"
)

// Config is the root configuration object, threaded through every
// component constructor at process start.
type Config struct {
	AzureAI     AzureAIConfig
	Search      SearchConfig
	Resilience  ResilienceConfig
	Cache       CacheConfig
	HTTPClients HTTPClientsConfig
	Server      ServerConfig
	Monitoring  MonitoringConfig
	Rerank      RerankConfig
	Concurrency ConcurrencyConfig
	WebSearch   WebSearchConfig
	PDFStore    PDFStoreConfig
}

// AzureAIConfig configures the out-of-scope completion/embedding/layout
// collaborator services.
type AzureAIConfig struct {
	FoundryEndpoint        string
	OpenAIEndpoint         string
	SearchEndpoint         string
	DocIntelligenceEndpoint string
	Models                 ModelsConfig
}

// ModelsConfig names the model deployments used for each purpose.
type ModelsConfig struct {
	Chat        string
	Embedding   string
	Planner     string
	Vision      string
	MaxTokens   int
	Temperature float64
}

// SearchConfig configures the index client and hybrid search behavior.
type SearchConfig struct {
	IndexName              string
	BatchSize              int
	MaxSearchResults       int
	EnableHybridSearch     bool
	EnableSemanticRanking  bool
	QdrantURL              string
	QdrantAPIKey           string
}

// ResilienceConfig configures per-dependency circuit breaker and retry
// policies, keyed the way spec.md §4.4 names them.
type ResilienceConfig struct {
	CircuitBreaker map[string]CircuitBreakerConfig
	Retry          RetryConfig
	FallbackCacheExpiration time.Duration
}

// CircuitBreakerConfig is one dependency's breaker tuning.
type CircuitBreakerConfig struct {
	FailureThreshold int
	BreakDuration    time.Duration
}

// RetryConfig is the shared retry tuning applied across policies.
type RetryConfig struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// CacheConfig configures the query cache.
type CacheConfig struct {
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	DefaultDuration  time.Duration
	MaxEntries       int
	MemoryLimitMB    int
	EnableCompression bool
}

// HTTPClientsConfig configures outbound HTTP transport pooling.
type HTTPClientsConfig struct {
	MaxConnsPerEndpoint int
	ConnectTimeout      time.Duration
	RequestTimeout      time.Duration
	PooledLifetime      time.Duration
	EnableHTTP2         bool
}

// ServerConfig configures the HTTP API surface.
type ServerConfig struct {
	Host            string
	Port            string
	RequestDeadline time.Duration
}

// MonitoringConfig configures logging.
type MonitoringConfig struct {
	LogLevel  string
	LogFormat string
}

// RerankConfig exposes the semantic-rerank blend weights (spec.md §9 open
// question: these were hard-coded in the source and are configuration here).
type RerankConfig struct {
	AgentWeight     float64
	EmbeddingWeight float64
}

// ConcurrencyConfig bounds the orchestrator's fan-out (spec.md §5).
type ConcurrencyConfig struct {
	MaxConcurrentPerRequest int
	MaxConcurrentPerProcess int
}

// WebSearchConfig configures the web search agent's external provider,
// rate limiting, and domain authority list.
type WebSearchConfig struct {
	APIKey            string
	RateLimitCapacity float64
	RateLimitRefill   float64
	AllowedDomains    []string
	BlockedDomains    []string
}

// PDFStoreConfig configures the object store the PDF ingestion CLI
// archives source manuals and figure crops into ahead of processing.
type PDFStoreConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
}

// Load reads configuration from the environment (and an optional .env
// file, loaded best-effort) and validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AzureAI: AzureAIConfig{
			FoundryEndpoint:         getEnv("AZURE_FOUNDRY_ENDPOINT", ""),
			OpenAIEndpoint:          getEnv("AZURE_OPENAI_ENDPOINT", ""),
			SearchEndpoint:          getEnv("AZURE_SEARCH_ENDPOINT", ""),
			DocIntelligenceEndpoint: getEnv("AZURE_DOCINTEL_ENDPOINT", ""),
			Models: ModelsConfig{
				Chat:        getEnv("MODEL_CHAT", "gpt-4o"),
				Embedding:   getEnv("MODEL_EMBEDDING", "text-embedding-3-large"),
				Planner:     getEnv("MODEL_PLANNER", "gpt-4o-mini"),
				Vision:      getEnv("MODEL_VISION", "gpt-4o"),
				MaxTokens:   getIntEnv("MODEL_MAX_TOKENS", 2048),
				Temperature: getFloatEnv("MODEL_TEMPERATURE", 0.2),
			},
		},
		Search: SearchConfig{
			IndexName:             getEnv("SEARCH_INDEX_NAME", "motorcycle-unified"),
			BatchSize:             getIntEnv("SEARCH_BATCH_SIZE", 250),
			MaxSearchResults:      getIntEnv("SEARCH_MAX_RESULTS", 10),
			EnableHybridSearch:    getBoolEnv("SEARCH_ENABLE_HYBRID", true),
			EnableSemanticRanking: getBoolEnv("SEARCH_ENABLE_SEMANTIC_RANK", true),
			QdrantURL:             getEnv("QDRANT_URL", "localhost:6334"),
			QdrantAPIKey:          getEnv("QDRANT_API_KEY", ""),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: map[string]CircuitBreakerConfig{
				"openai.chat":    {FailureThreshold: getIntEnv("CB_OPENAI_CHAT_THRESHOLD", 5), BreakDuration: getDurationEnv("CB_OPENAI_CHAT_BREAK", 30*time.Second)},
				"openai.embed":   {FailureThreshold: getIntEnv("CB_OPENAI_EMBED_THRESHOLD", 5), BreakDuration: getDurationEnv("CB_OPENAI_EMBED_BREAK", 30*time.Second)},
				"search.query":   {FailureThreshold: getIntEnv("CB_SEARCH_QUERY_THRESHOLD", 5), BreakDuration: getDurationEnv("CB_SEARCH_QUERY_BREAK", 20*time.Second)},
				"search.upsert":  {FailureThreshold: getIntEnv("CB_SEARCH_UPSERT_THRESHOLD", 5), BreakDuration: getDurationEnv("CB_SEARCH_UPSERT_BREAK", 20*time.Second)},
				"docintel.analyze": {FailureThreshold: getIntEnv("CB_DOCINTEL_THRESHOLD", 5), BreakDuration: getDurationEnv("CB_DOCINTEL_BREAK", 30*time.Second)},
				"websearch.fetch":  {FailureThreshold: getIntEnv("CB_WEBSEARCH_THRESHOLD", 5), BreakDuration: getDurationEnv("CB_WEBSEARCH_BREAK", 30*time.Second)},
			},
			Retry: RetryConfig{
				MaxRetries: getIntEnv("RETRY_MAX_RETRIES", 3),
				BaseDelay:  getDurationEnv("RETRY_BASE_DELAY", 2*time.Second),
				MaxDelay:   getDurationEnv("RETRY_MAX_DELAY", 30*time.Second),
			},
			FallbackCacheExpiration: getDurationEnv("FALLBACK_CACHE_EXPIRATION", 10*time.Minute),
		},
		Cache: CacheConfig{
			RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:     getEnv("REDIS_PASSWORD", ""),
			RedisDB:           getIntEnv("REDIS_DB", 0),
			DefaultDuration:   getDurationEnv("CACHE_DEFAULT_DURATION", 30*time.Minute),
			MaxEntries:        getIntEnv("CACHE_MAX_ENTRIES", 10000),
			MemoryLimitMB:     getIntEnv("CACHE_MEMORY_LIMIT_MB", 256),
			EnableCompression: getBoolEnv("CACHE_ENABLE_COMPRESSION", false),
		},
		HTTPClients: HTTPClientsConfig{
			MaxConnsPerEndpoint: getIntEnv("HTTP_MAX_CONNS_PER_ENDPOINT", 32),
			ConnectTimeout:      getDurationEnv("HTTP_CONNECT_TIMEOUT", 5*time.Second),
			RequestTimeout:      getDurationEnv("HTTP_REQUEST_TIMEOUT", 30*time.Second),
			PooledLifetime:      getDurationEnv("HTTP_POOLED_LIFETIME", 5*time.Minute),
			EnableHTTP2:         getBoolEnv("HTTP_ENABLE_HTTP2", true),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			RequestDeadline: getDurationEnv("SERVER_REQUEST_DEADLINE", 60*time.Second),
		},
		Monitoring: MonitoringConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
		Rerank: RerankConfig{
			AgentWeight:     getFloatEnv("RERANK_AGENT_WEIGHT", 0.7),
			EmbeddingWeight: getFloatEnv("RERANK_EMBEDDING_WEIGHT", 0.3),
		},
		Concurrency: ConcurrencyConfig{
			MaxConcurrentPerRequest: getIntEnv("CONCURRENCY_PER_REQUEST", 8),
			MaxConcurrentPerProcess: getIntEnv("CONCURRENCY_PER_PROCESS", 64),
		},
		WebSearch: WebSearchConfig{
			APIKey:            getEnv("BRAVE_SEARCH_API_KEY", ""),
			RateLimitCapacity: getFloatEnv("WEBSEARCH_RATE_CAPACITY", 10),
			RateLimitRefill:   getFloatEnv("WEBSEARCH_RATE_REFILL", 1),
			AllowedDomains:    getEnvSlice("WEBSEARCH_ALLOWED_DOMAINS", nil),
			BlockedDomains:    getEnvSlice("WEBSEARCH_BLOCKED_DOMAINS", nil),
		},
		PDFStore: PDFStoreConfig{
			Endpoint:        getEnv("PDFSTORE_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("PDFSTORE_ACCESS_KEY_ID", "minioadmin"),
			SecretAccessKey: getEnv("PDFSTORE_SECRET_ACCESS_KEY", "minioadmin123"),
			UseSSL:          getBoolEnv("PDFSTORE_USE_SSL", false),
			Bucket:          getEnv("PDFSTORE_BUCKET", "motorcycle-manuals"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the cross-field invariants spec.md §6 requires.
func (c *Config) Validate() error {
	if c.Search.BatchSize < 100 || c.Search.BatchSize > 1000 {
		return apperrors.New(apperrors.KindConfig, fmt.Sprintf("search.batch_size %d out of range [100,1000]", c.Search.BatchSize))
	}
	if c.Search.MaxSearchResults <= 0 {
		return apperrors.New(apperrors.KindConfig, "search.max_search_results must be > 0")
	}
	if c.AzureAI.Models.Temperature < 0 || c.AzureAI.Models.Temperature > 2 {
		return apperrors.New(apperrors.KindConfig, fmt.Sprintf("models.temperature %f out of range [0,2]", c.AzureAI.Models.Temperature))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}
