package orchestrator

import (
	"sync"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
)

// dedupSet accumulates SearchResults across agents and sub-queries,
// keeping only the highest-scored representative per spec.md §4.10 step 5
// dedup key (source.document_id, falling back to id). Safe for
// concurrent use so both the sequential and parallel execution paths can
// share it.
type dedupSet struct {
	mu     sync.Mutex
	byKey  map[string]models.SearchResult
	order  []string
}

func newDedupSet() *dedupSet {
	return &dedupSet{byKey: make(map[string]models.SearchResult)}
}

func (d *dedupSet) add(r models.SearchResult) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := r.DedupKey()
	existing, ok := d.byKey[key]
	if !ok {
		d.byKey[key] = r
		d.order = append(d.order, key)
		return
	}
	if r.RelevanceScore > existing.RelevanceScore {
		d.byKey[key] = r
	}
}

func (d *dedupSet) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byKey)
}

// list returns the deduplicated results in first-seen order.
func (d *dedupSet) list() []models.SearchResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.SearchResult, 0, len(d.order))
	for _, key := range d.order {
		out = append(out, d.byKey[key])
	}
	return out
}
