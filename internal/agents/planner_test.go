package agents

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatClient struct {
	response string
	err      error
}

func (f *fakeChatClient) Embed(ctx context.Context, model, text string) ([]float32, error) {
	return nil, nil
}
func (f *fakeChatClient) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return nil, nil
}
func (f *fakeChatClient) Chat(ctx context.Context, model, prompt string) (string, error) {
	return f.response, f.err
}

func discardLoggerForPlanner() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestPlannerAgent_ParsesWellFormedJSONResponse(t *testing.T) {
	chat := &fakeChatClient{response: `{"sub_queries": ["oil capacity", "oil type"], "use_web_search": false, "run_parallel": true}`}
	p := NewPlannerAgent(chat, "planner-model", discardLoggerForPlanner())

	plan := p.Plan(context.Background(), "what oil does a CBR600RR need", nil, true)
	assert.Equal(t, []string{"oil capacity", "oil type"}, plan.SubQueries)
	assert.False(t, plan.UseWebSearch)
	assert.True(t, plan.RunParallel)
}

func TestPlannerAgent_StripsSurroundingProseFromResponse(t *testing.T) {
	chat := &fakeChatClient{response: "Sure, here is the plan:\n" +
		`{"sub_queries": ["tire pressure"], "use_web_search": true, "run_parallel": false}` +
		"\nLet me know if you need more."}
	p := NewPlannerAgent(chat, "planner-model", discardLoggerForPlanner())

	plan := p.Plan(context.Background(), "tire pressure", nil, true)
	assert.Equal(t, []string{"tire pressure"}, plan.SubQueries)
	assert.True(t, plan.UseWebSearch)
}

func TestPlannerAgent_FallsBackToTrivialPlanOnChatError(t *testing.T) {
	chat := &fakeChatClient{err: assertError{}}
	p := NewPlannerAgent(chat, "planner-model", discardLoggerForPlanner())

	plan := p.Plan(context.Background(), "chain tension", nil, true)
	require.Len(t, plan.SubQueries, 1)
	assert.Equal(t, "chain tension", plan.SubQueries[0])
	assert.True(t, plan.UseWebSearch)
	assert.True(t, plan.RunParallel)
}

func TestPlannerAgent_FallsBackToTrivialPlanOnMalformedJSON(t *testing.T) {
	chat := &fakeChatClient{response: "not json at all"}
	p := NewPlannerAgent(chat, "planner-model", discardLoggerForPlanner())

	plan := p.Plan(context.Background(), "valve clearance", nil, false)
	assert.Equal(t, []string{"valve clearance"}, plan.SubQueries)
	assert.False(t, plan.UseWebSearch)
}

func TestPlannerAgent_FallsBackToTrivialPlanWhenTooManySubQueries(t *testing.T) {
	chat := &fakeChatClient{response: `{"sub_queries": ["a","b","c","d","e","f","g"], "use_web_search": false, "run_parallel": true}`}
	p := NewPlannerAgent(chat, "planner-model", discardLoggerForPlanner())

	plan := p.Plan(context.Background(), "too many", nil, false)
	assert.Equal(t, []string{"too many"}, plan.SubQueries, "invalid plan must fall back to trivial, not be truncated")
}

func TestPlannerAgent_IncludesPreviousQueriesInPrompt(t *testing.T) {
	prompt := buildPlannerPrompt("oil capacity", []string{"tire pressure", "chain tension"})
	assert.Contains(t, prompt, "tire pressure")
	assert.Contains(t, prompt, "chain tension")
	assert.Contains(t, prompt, "oil capacity")
}
