// Package agents implements the retrieval agents (spec.md §4.6-4.9,
// components C9-C12) the orchestrator fans out to: vector, web, and PDF
// search, plus the query planner. Each lives in its own file, sharing the
// Agent capability interface, following the reference system's pattern of
// one small adapter type per concrete capability rather than a single
// god-object.
package agents

import (
	"context"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
)

// Agent is the retrieval capability the orchestrator fans out to. The
// planner is deliberately not an Agent: it produces a plan, not results.
type Agent interface {
	Type() models.AgentType
	Search(ctx context.Context, query string, opts models.SearchOptions) ([]models.SearchResult, error)
}
