// Package httpapi binds the orchestrator to the HTTP surface spec.md §6
// documents: POST /api/motorcycles/query and GET /api/motorcycles/health.
// It mirrors the reference system's handler conventions (a Handler struct
// holding its dependencies plus a *logrus.Logger, RegisterRoutes binding
// a *gin.Engine, per-request context.WithTimeout, gin.H/typed-struct JSON
// responses) without carrying over any of the reference system's
// protocol-specific (MCP/LSP/ACP) surface, which this system has no use
// for.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/apperrors"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/cache"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/indexclient"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/logging"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/orchestrator"
)

// queryOrchestrator is the capability Handler depends on; kept as an
// interface so tests can substitute a stub orchestrator.
type queryOrchestrator interface {
	Answer(ctx context.Context, req orchestrator.Request) (*orchestrator.Response, error)
}

// Handler implements the query and health HTTP endpoints.
type Handler struct {
	orchestrator queryOrchestrator
	index        indexclient.Client
	cache        cache.Store
	logger       *logrus.Logger
}

// NewHandler constructs a Handler.
func NewHandler(orch queryOrchestrator, index indexclient.Client, store cache.Store, logger *logrus.Logger) *Handler {
	return &Handler{orchestrator: orch, index: index, cache: store, logger: logger}
}

// RegisterRoutes binds this handler's endpoints onto router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/motorcycles")
	{
		api.POST("/query", h.Query)
		api.GET("/health", h.Health)
	}
}

// Query handles POST /api/motorcycles/query.
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	orchReq := orchestrator.Request{Query: req.Query}
	if req.Preferences != nil {
		orchReq.Preferences = *req.Preferences
	}
	if req.Context != nil {
		orchReq.QueryContext = *req.Context
	}

	resp, err := h.orchestrator.Answer(c.Request.Context(), orchReq)
	if err != nil {
		kind := apperrors.KindOf(err)
		status := apperrors.HTTPStatus(kind)
		h.logger.WithError(err).WithField("kind", kind).Error("query failed")
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, MotorcycleQueryResponse{
		Response:    resp.Answer,
		Sources:     sourcesFromResults(resp.Results),
		Metrics:     resp.Metrics,
		QueryID:     resp.CorrelationID,
		GeneratedAt: time.Now(),
	})
}

// Health handles GET /api/motorcycles/health, fanning out lightweight
// checks to the index and cache dependencies, mirroring the reference
// system's per-component health-check aggregation.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	details := make(map[string]string)
	healthy := true

	if err := h.index.Ping(ctx); err != nil {
		details["index"] = "unhealthy: " + err.Error()
		healthy = false
	} else {
		details["index"] = "healthy"
	}

	if h.cache != nil {
		stats := h.cache.Stats()
		details["cache"] = "healthy"
		_ = logging.Entry(ctx, h.logger, "httpapi").WithField("cache_hit_ratio", stats.HitRatio)
	} else {
		details["cache"] = "disabled"
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		IsHealthy: healthy,
		Status:    status,
		Details:   details,
		CheckedAt: time.Now(),
	})
}
