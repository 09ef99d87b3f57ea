// Package models defines the shared data types that flow between the
// ingestion pipeline and the retrieval orchestrator: indexable documents,
// processor output, search results, query plans, and search options.
package models

import (
	"errors"
	"fmt"
	"time"
)

// DocumentType tags the provenance of a MotorcycleDocument.
type DocumentType string

const (
	DocumentTypeSpecification DocumentType = "Specification"
	DocumentTypeManual        DocumentType = "Manual"
	DocumentTypeWebArticle    DocumentType = "WebArticle"
)

// ChunkType tags the structural origin of a PDF-derived document.
type ChunkType string

const (
	ChunkTypeText              ChunkType = "text"
	ChunkTypeTable             ChunkType = "table"
	ChunkTypeFigureDescription ChunkType = "figure-description"
)

// AgentType discriminates the retrieval strategy that produced a SearchResult.
type AgentType string

const (
	AgentTypeVector AgentType = "vector"
	AgentTypeWeb    AgentType = "web"
	AgentTypePDF    AgentType = "pdf"
)

const (
	minContentLen = 10
	maxContentLen = 1_000_000
	maxTitleLen   = 500
)

// DocumentMetadata carries the open-ended provenance and citation fields a
// document accumulates on its way through a processor.
type DocumentMetadata struct {
	SourceFile            string            `json:"source_file"`
	SourceURL             string            `json:"source_url,omitempty"`
	Section               string            `json:"section,omitempty"`
	PageNumber            int               `json:"page_number,omitempty"`
	Author                string            `json:"author,omitempty"`
	PublishedDate         *time.Time        `json:"published_date,omitempty"`
	Tags                  []string          `json:"tags,omitempty"`
	AdditionalProperties  map[string]string `json:"additional_properties,omitempty"`
	ChunkType             ChunkType         `json:"chunk_type,omitempty"`
	OriginalOrdinal       int               `json:"original_ordinal,omitempty"`
}

// MotorcycleDocument is the atomic indexable unit produced by every
// processor and consumed by every retrieval agent.
type MotorcycleDocument struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	Type          DocumentType      `json:"type"`
	ContentVector []float32         `json:"content_vector,omitempty"`
	Metadata      DocumentMetadata  `json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Validate enforces the invariants spec.md §3 states for a document in
// isolation (vector-dimension-vs-schema is checked by the index client,
// which is the sole holder of that context).
func (d *MotorcycleDocument) Validate() error {
	if d.ID == "" {
		return errors.New("models: document id must not be empty")
	}
	if len(d.Content) < minContentLen || len(d.Content) > maxContentLen {
		return fmt.Errorf("models: content length %d out of range [%d,%d]", len(d.Content), minContentLen, maxContentLen)
	}
	if len(d.Title) > maxTitleLen {
		return fmt.Errorf("models: title length %d exceeds %d", len(d.Title), maxTitleLen)
	}
	return nil
}

// ProcessedData is a single processor invocation's output.
type ProcessedData struct {
	BatchID   string                `json:"batch_id"`
	Documents []MotorcycleDocument  `json:"documents"`
	Metadata  map[string]any        `json:"metadata"`
}

// ProcessingResult reports the outcome of a processor run, including
// per-document embedding failures that did not abort the batch.
type ProcessingResult struct {
	Success         bool           `json:"success"`
	Message         string         `json:"message,omitempty"`
	Data            *ProcessedData `json:"data,omitempty"`
	EmbeddingErrors map[string]string `json:"embedding_errors,omitempty"`
	SkippedRows     int            `json:"skipped_rows"`
	TotalRows       int            `json:"total_rows"`
}

// SearchResultSource identifies where a SearchResult came from.
type SearchResultSource struct {
	AgentType  AgentType `json:"agent_type"`
	SourceName string    `json:"source_name"`
	DocumentID string    `json:"document_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Page       int       `json:"page,omitempty"`
}

// SearchResult is a retrieved, scored snippet returned by an agent.
type SearchResult struct {
	ID              string              `json:"id"`
	Content         string              `json:"content"`
	RelevanceScore  float64             `json:"relevance_score"`
	Source          SearchResultSource  `json:"source"`
	Metadata        map[string]any      `json:"metadata,omitempty"`
}

// DedupKey returns the identity a dedup pass should group on: the source
// document id when present, else the result's own id (spec.md §4.10 step 5).
func (r *SearchResult) DedupKey() string {
	if r.Source.DocumentID != "" {
		return r.Source.DocumentID
	}
	return r.ID
}

// QueryPlan is the planner's decomposition of a user query.
type QueryPlan struct {
	OriginalQuery string   `json:"original_query"`
	SubQueries    []string `json:"sub_queries"`
	UseWebSearch  bool     `json:"use_web_search"`
	RunParallel   bool     `json:"run_parallel"`
}

// Validate checks the plan invariants from spec.md §3: sub_queries is
// non-empty and bounded to 6 entries per spec.md §4.9.
func (p *QueryPlan) Validate() error {
	if len(p.SubQueries) == 0 {
		return errors.New("models: query plan must have at least one sub-query")
	}
	if len(p.SubQueries) > 6 {
		return fmt.Errorf("models: query plan has %d sub-queries, max is 6", len(p.SubQueries))
	}
	return nil
}

// TrivialPlan builds the deterministic fallback plan spec.md §4.9 mandates
// when the planner model is unavailable or its response fails to parse.
func TrivialPlan(query string, includeWeb bool) QueryPlan {
	return QueryPlan{
		OriginalQuery: query,
		SubQueries:    []string{query},
		UseWebSearch:  includeWeb,
		RunParallel:   true,
	}
}

// SearchOptions bounds and filters a single agent invocation.
type SearchOptions struct {
	MaxResults        int               `json:"max_results"`
	MinRelevanceScore float64           `json:"min_relevance_score"`
	IncludeMetadata   bool              `json:"include_metadata"`
	Filters           map[string]string `json:"filters,omitempty"`
	Timeout           time.Duration     `json:"timeout"`
	EnableCaching     bool              `json:"enable_caching"`
}

// WithDefaults fills in the defaults spec.md §3/§5 specify and clamps
// MaxResults to [1,100] and MinRelevanceScore to [0,1].
func (o SearchOptions) WithDefaults() SearchOptions {
	out := o
	if out.MaxResults <= 0 {
		out.MaxResults = 10
	}
	if out.MaxResults > 100 {
		out.MaxResults = 100
	}
	if out.MinRelevanceScore < 0 {
		out.MinRelevanceScore = 0
	}
	if out.MinRelevanceScore > 1 {
		out.MinRelevanceScore = 1
	}
	if out.Timeout <= 0 {
		out.Timeout = 30 * time.Second
	}
	return out
}

// SearchPreferences are user-supplied toggles that shape orchestration.
type SearchPreferences struct {
	IncludeWeb bool `json:"include_web"`
	IncludePDF bool `json:"include_pdf"`
}

// QueryContext carries session- and request-scoped data through the
// orchestration pipeline.
type QueryContext struct {
	SessionID  string         `json:"session_id,omitempty"`
	Additional map[string]any `json:"additional,omitempty"`
}
