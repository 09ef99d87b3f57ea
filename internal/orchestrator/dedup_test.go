package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
)

func TestDedupSet_KeepsHighestScoredRepresentativePerDocumentID(t *testing.T) {
	d := newDedupSet()
	d.add(models.SearchResult{ID: "a", RelevanceScore: 0.5, Source: models.SearchResultSource{DocumentID: "doc-1"}})
	d.add(models.SearchResult{ID: "b", RelevanceScore: 0.9, Source: models.SearchResultSource{DocumentID: "doc-1"}})

	require.Equal(t, 1, d.len())
	assert.Equal(t, "b", d.list()[0].ID)
}

func TestDedupSet_FallsBackToIDWhenDocumentIDAbsent(t *testing.T) {
	d := newDedupSet()
	d.add(models.SearchResult{ID: "snippet-1", RelevanceScore: 0.5})
	d.add(models.SearchResult{ID: "snippet-2", RelevanceScore: 0.5})

	assert.Equal(t, 2, d.len())
}

func TestDedupSet_PreservesFirstSeenOrder(t *testing.T) {
	d := newDedupSet()
	d.add(models.SearchResult{ID: "first"})
	d.add(models.SearchResult{ID: "second"})
	d.add(models.SearchResult{ID: "third"})

	list := d.list()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{list[0].ID, list[1].ID, list[2].ID})
}
