package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/embedclient"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/logging"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
)

// plannerResponse is the structured shape the planner prompt asks the
// completion model to return.
type plannerResponse struct {
	SubQueries   []string `json:"sub_queries"`
	UseWebSearch bool     `json:"use_web_search"`
	RunParallel  bool     `json:"run_parallel"`
}

// PlannerAgent is NOT an Agent: it produces a QueryPlan, not search
// results (spec.md §4.9, component C12).
type PlannerAgent struct {
	chat   embedclient.Client
	model  string
	logger *logrus.Logger
}

// NewPlannerAgent constructs a PlannerAgent.
func NewPlannerAgent(chat embedclient.Client, model string, logger *logrus.Logger) *PlannerAgent {
	return &PlannerAgent{chat: chat, model: model, logger: logger}
}

// Plan prompts the completion model for a query decomposition, falling
// back to the trivial plan on parser failure or model unavailability.
func (p *PlannerAgent) Plan(ctx context.Context, query string, previousQueries []string, includeWeb bool) models.QueryPlan {
	entry := logging.Entry(ctx, p.logger, "planner")

	prompt := buildPlannerPrompt(query, previousQueries)
	raw, err := p.chat.Chat(ctx, p.model, prompt)
	if err != nil {
		entry.WithError(err).Warn("planner model unavailable, falling back to trivial plan")
		return models.TrivialPlan(query, includeWeb)
	}

	var parsed plannerResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		entry.WithError(err).Warn("planner response failed to parse, falling back to trivial plan")
		return models.TrivialPlan(query, includeWeb)
	}

	plan := models.QueryPlan{
		OriginalQuery: query,
		SubQueries:    parsed.SubQueries,
		UseWebSearch:  parsed.UseWebSearch,
		RunParallel:   parsed.RunParallel,
	}
	if err := plan.Validate(); err != nil {
		entry.WithError(err).Warn("planner response failed validation, falling back to trivial plan")
		return models.TrivialPlan(query, includeWeb)
	}
	return plan
}

func buildPlannerPrompt(query string, previousQueries []string) string {
	var b strings.Builder
	b.WriteString("You are a query planner for a motorcycle information retrieval system.\n")
	b.WriteString("Decompose the user's query into 1 to 6 focused sub-queries.\n")
	if len(previousQueries) > 0 {
		b.WriteString("Recent previous queries: ")
		b.WriteString(strings.Join(previousQueries, "; "))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Query: %s\n", query)
	b.WriteString(`Respond with JSON only: {"sub_queries": ["..."], "use_web_search": false, "run_parallel": true}`)
	return b.String()
}

// extractJSON trims any leading/trailing prose a completion model adds
// around the requested JSON object.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}
