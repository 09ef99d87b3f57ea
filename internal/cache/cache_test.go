package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestFingerprint_IsDeterministicAndOrderIndependent(t *testing.T) {
	opts1 := models.SearchOptions{MaxResults: 10, MinRelevanceScore: 0.5, Filters: map[string]string{"make": "Honda", "year": "2023"}}
	opts2 := models.SearchOptions{MaxResults: 10, MinRelevanceScore: 0.5, Filters: map[string]string{"year": "2023", "make": "Honda"}}

	fp1 := Fingerprint(models.AgentTypeVector, "best oil for CBR600", opts1)
	fp2 := Fingerprint(models.AgentTypeVector, "  Best Oil For CBR600  ", opts2)

	assert.Equal(t, fp1, fp2, "fingerprint should be case/whitespace-normalized and filter-order-independent")
}

func TestFingerprint_DiffersOnAgentTypeOrQuery(t *testing.T) {
	opts := models.SearchOptions{MaxResults: 10}
	fp1 := Fingerprint(models.AgentTypeVector, "query", opts)
	fp2 := Fingerprint(models.AgentTypeWeb, "query", opts)
	fp3 := Fingerprint(models.AgentTypeVector, "other query", opts)

	assert.NotEqual(t, fp1, fp2)
	assert.NotEqual(t, fp1, fp3)
}

func TestCache_FallsBackToMemoryStoreWhenNoRedisConfigured(t *testing.T) {
	c := New("", "", 0, 30*time.Minute, discardLogger())
	ctx := context.Background()

	results := []models.SearchResult{{ID: "1", Content: "content"}}
	c.Set(ctx, "key1", results, time.Minute)

	got, ok := c.Get(ctx, "key1")
	require.True(t, ok)
	assert.Equal(t, results, got)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	c := New("", "", 0, 30*time.Minute, discardLogger())
	_, ok := c.Get(context.Background(), "missing")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestCache_ExpiredEntryBehavesAsAbsent(t *testing.T) {
	c := New("", "", 0, 30*time.Minute, discardLogger())
	ctx := context.Background()

	c.Set(ctx, "key1", []models.SearchResult{{ID: "1"}}, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get(ctx, "key1")
	assert.False(t, ok)
}

func TestCache_InvalidateWildcardClearsAll(t *testing.T) {
	c := New("", "", 0, 30*time.Minute, discardLogger())
	ctx := context.Background()

	c.Set(ctx, "a", []models.SearchResult{{ID: "1"}}, time.Minute)
	c.Set(ctx, "b", []models.SearchResult{{ID: "2"}}, time.Minute)

	removed := c.Invalidate(ctx, "*")
	assert.Equal(t, 2, removed)

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
}

func TestCache_InvalidatePatternMatchesSubset(t *testing.T) {
	c := New("", "", 0, 30*time.Minute, discardLogger())
	ctx := context.Background()

	c.Set(ctx, "vector:abc", []models.SearchResult{{ID: "1"}}, time.Minute)
	c.Set(ctx, "web:def", []models.SearchResult{{ID: "2"}}, time.Minute)

	removed := c.Invalidate(ctx, "vector:*")
	assert.Equal(t, 1, removed)

	_, okVector := c.Get(ctx, "vector:abc")
	_, okWeb := c.Get(ctx, "web:def")
	assert.False(t, okVector)
	assert.True(t, okWeb)
}
