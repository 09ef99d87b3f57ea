package httpapi

import (
	"time"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/orchestrator"
)

// QueryRequest is the POST /api/motorcycles/query request body (spec.md §6).
type QueryRequest struct {
	Query       string                   `json:"query" binding:"required,min=3,max=1000"`
	Preferences *models.SearchPreferences `json:"preferences,omitempty"`
	UserID      string                   `json:"user_id,omitempty"`
	Context     *models.QueryContext    `json:"context,omitempty"`
}

// SourceRef is one cited snippet in a MotorcycleQueryResponse.
type SourceRef struct {
	ID             string           `json:"id"`
	AgentType      models.AgentType `json:"agent_type"`
	DocumentID     string           `json:"document_id,omitempty"`
	URL            string           `json:"url,omitempty"`
	Page           int              `json:"page,omitempty"`
	RelevanceScore float64          `json:"relevance_score"`
}

// MotorcycleQueryResponse is the 200 response body spec.md §6 documents.
type MotorcycleQueryResponse struct {
	Response    string               `json:"response"`
	Sources     []SourceRef          `json:"sources"`
	Metrics     orchestrator.Metrics `json:"metrics"`
	QueryID     string               `json:"query_id"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// ErrorResponse is the error body for both 400 and 500 responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the GET /api/motorcycles/health response body.
type HealthResponse struct {
	IsHealthy bool              `json:"is_healthy"`
	Status    string            `json:"status"`
	Details   map[string]string `json:"details"`
	CheckedAt time.Time         `json:"checked_at"`
}

func sourcesFromResults(results []models.SearchResult) []SourceRef {
	out := make([]SourceRef, 0, len(results))
	for _, r := range results {
		out = append(out, SourceRef{
			ID:             r.ID,
			AgentType:      r.Source.AgentType,
			DocumentID:     r.Source.DocumentID,
			URL:            r.Source.URL,
			Page:           r.Source.Page,
			RelevanceScore: r.RelevanceScore,
		})
	}
	return out
}
