package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
)

// synthesisSnippetCount is N in spec.md §4.10 step 8: the top-N fused
// snippets the synthesis prompt is built from.
const synthesisSnippetCount = 10

// snippetTruncate bounds how much of a snippet's content enters the
// synthesis prompt, independent of rerankContentTruncate.
const snippetTruncate = 800

func (o *Orchestrator) synthesize(ctx context.Context, query string, results []models.SearchResult) (string, error) {
	if len(results) == 0 {
		return "I don't have enough information in the indexed motorcycle corpus to answer that question.", nil
	}

	prompt := buildSynthesisPrompt(query, results)
	return o.embed.Chat(ctx, o.chatModel, prompt)
}

func buildSynthesisPrompt(query string, results []models.SearchResult) string {
	top := results
	if len(top) > synthesisSnippetCount {
		top = top[:synthesisSnippetCount]
	}

	var b strings.Builder
	b.WriteString("You are a motorcycle information assistant. Answer the question using only the numbered snippets below.\n")
	b.WriteString("Cite the snippet id(s) you used for each claim, e.g. (source: 123). ")
	b.WriteString("If the snippets do not contain enough information to answer, say so explicitly instead of guessing.\n\n")
	for _, r := range top {
		fmt.Fprintf(&b, "[%s] %s\n\n", r.ID, truncate(r.Content, snippetTruncate))
	}
	fmt.Fprintf(&b, "Question: %s\n", query)
	return b.String()
}

// fallbackAnswer is used when synthesis itself fails (chat completion
// unavailable): it surfaces the retrieved snippets directly rather than
// returning nothing.
func fallbackAnswer(results []models.SearchResult) string {
	if len(results) == 0 {
		return "I don't have enough information in the indexed motorcycle corpus to answer that question."
	}
	var b strings.Builder
	b.WriteString("The answer synthesis model is unavailable. Here is the relevant information found:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "- [%s] %s\n", r.ID, truncate(r.Content, 200))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
