// Package embedclient implements the embedding and chat-completion
// capability (spec.md §4.1, component C1) that the ingestion processors and
// the orchestrator's answer-synthesis step depend on. It is a thin,
// resilience-wrapped facade over internal/azureclients.FoundryClient,
// matching the reference system's pattern of a capability interface
// injected into its consumers rather than resolved through a global.
package embedclient

import (
	"context"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/apperrors"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/resilience"
)

// maxBatchSize is the provider's documented per-request embedding input
// cap; EmbedBatch chunks larger requests to this size.
const maxBatchSize = 64

// Client is the embedding/chat capability every consumer depends on.
type Client interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)
	Chat(ctx context.Context, model, prompt string) (string, error)
}

// provider is the subset of azureclients.FoundryClient this package needs,
// kept as an interface so tests can substitute a fake transport.
type provider interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
	Chat(ctx context.Context, model, prompt string, temperature float64, maxTokens int) (string, error)
}

type client struct {
	foundry     provider
	policies    *resilience.Registry
	temperature float64
	maxTokens   int
}

// New constructs a Client backed by foundry and protected by the given
// resilience registry's "openai.chat" and "openai.embed" policies.
func New(foundry provider, policies *resilience.Registry, temperature float64, maxTokens int) Client {
	return &client{foundry: foundry, policies: policies, temperature: temperature, maxTokens: maxTokens}
}

func (c *client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, model, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, apperrors.New(apperrors.KindUpstreamTerminal, "embedding provider returned no vectors")
	}
	return vectors[0], nil
}

// EmbedBatch chunks texts into provider-sized batches and embeds each
// chunk under the "openai.embed" policy. If a later chunk fails after
// earlier chunks succeeded, EmbedBatch returns the successful prefix
// alongside a PartialFailure error, per spec.md §4.1's partial-failure rule.
func (c *client) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk := texts[start:end]

		result, err := c.policies.Execute(ctx, "openai.embed", func(ctx context.Context) (any, error) {
			return c.foundry.Embed(ctx, model, chunk)
		})
		if err != nil {
			if len(out) > 0 {
				return out, apperrors.Wrap(apperrors.KindPartialFailure, err, "embedding batch partially failed")
			}
			return nil, err
		}
		out = append(out, result.([][]float32)...)
	}
	return out, nil
}

func (c *client) Chat(ctx context.Context, model, prompt string) (string, error) {
	result, err := c.policies.Execute(ctx, "openai.chat", func(ctx context.Context) (any, error) {
		return c.foundry.Chat(ctx, model, prompt, c.temperature, c.maxTokens)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
