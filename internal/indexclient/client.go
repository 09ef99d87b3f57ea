// Package indexclient implements the index capability (spec.md §4.3,
// component C2): schema management, batch upsert, and hybrid query against
// a Qdrant collection per index. It is grounded on the reference system's
// internal/adapters/vectordb/qdrant.Client adapter, carrying over its
// config/connect/collection/upsert/search shape while replacing its
// generic vector-point model with this system's MotorcycleDocument and
// enforcing the vector-dimension invariant the reference adapter left to
// its caller.
package indexclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/sirupsen/logrus"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/apperrors"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/compression"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/logging"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/resilience"
)

// compressedVectorField is the payload field a document's quantized,
// zstd-compressed vector backup (component C5) is stored under, alongside
// the raw float32 vector Qdrant indexes for ANN search. It exists so an
// approximate copy of the vector (int8 quantization precision) can be
// reconstructed from a payload-only fetch (e.g. collection export) without
// re-embedding the source document; the full-precision vector is not
// recoverable from it.
const compressedVectorField = "content_vector_zstd"

// HybridQueryOptions bounds and filters a Query call. Vector drives the
// dense nearest-neighbor ranking when present; Keywords drives a lexical
// match against the schema's text fields regardless of whether Vector is
// set. The match filters candidates rather than scoring them, so when
// Vector is absent the filter alone selects the results and no similarity
// ranking is applied (spec.md §4.6's embedding-failure fallback).
type HybridQueryOptions struct {
	Vector     []float32
	Keywords   string
	Filters    map[string]string
	Limit      int
	MinScore   float64
}

// Client is the index capability every processor and agent depends on.
type Client interface {
	// EnsureSchema idempotently creates (or verifies) the collection
	// backing schema; it is the sole writer of a schema's VectorDim.
	EnsureSchema(ctx context.Context, schema models.IndexSchema) error
	// UpsertBatch indexes docs, rejecting the whole batch up front if any
	// document's vector dimension does not match the schema on file.
	UpsertBatch(ctx context.Context, index models.IndexName, docs []models.MotorcycleDocument) error
	Query(ctx context.Context, index models.IndexName, opts HybridQueryOptions) ([]models.SearchResult, error)
	Ping(ctx context.Context) error
}

type client struct {
	conn     *qdrant.Client
	policies *resilience.Registry
	logger   *logrus.Logger

	mu       sync.RWMutex
	schemas  map[models.IndexName]models.IndexSchema
}

// Config configures the underlying Qdrant connection.
type Config struct {
	Host    string
	Port    int
	APIKey  string
	UseTLS  bool
	Timeout time.Duration
}

// New constructs a Client connected to Qdrant at cfg, protected by the
// registry's "search.query"/"search.upsert" policies.
func New(cfg Config, policies *resilience.Registry, logger *logrus.Logger) (Client, error) {
	conn, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("indexclient: connecting to qdrant: %w", err)
	}
	return &client{
		conn:     conn,
		policies: policies,
		logger:   logger,
		schemas:  make(map[models.IndexName]models.IndexSchema),
	}, nil
}

func (c *client) EnsureSchema(ctx context.Context, schema models.IndexSchema) error {
	entry := logging.Entry(ctx, c.logger, "indexclient").WithField("index", string(schema.Name))

	exists, err := c.conn.CollectionExists(ctx, string(schema.Name))
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamTransient, err, "checking collection existence")
	}

	if !exists {
		vectorField := vectorFieldName(schema)
		if err := c.conn.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: string(schema.Name),
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(schema.VectorDim),
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return apperrors.Wrap(apperrors.KindUpstreamTransient, err, "creating collection")
		}
		for _, f := range schema.Fields {
			if !f.Filterable || f.Kind == "vector" {
				continue
			}
			if err := c.conn.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
				CollectionName: string(schema.Name),
				FieldName:      f.Name,
			}); err != nil {
				entry.WithError(err).Warn("failed to create payload field index, continuing")
			}
		}
		_ = vectorField
		entry.Info("created collection")
	}

	c.mu.Lock()
	c.schemas[schema.Name] = schema
	c.mu.Unlock()
	return nil
}

// validateVectorDims enforces spec.md §9's vector-dimension invariant:
// every document in a batch must match the schema's dimension exactly
// before any of it reaches the wire.
func validateVectorDims(index models.IndexName, schema models.IndexSchema, docs []models.MotorcycleDocument) error {
	for i := range docs {
		if len(docs[i].ContentVector) != schema.VectorDim {
			return apperrors.New(apperrors.KindValidation, fmt.Sprintf(
				"indexclient: document %s has vector dim %d, schema %s requires %d",
				docs[i].ID, len(docs[i].ContentVector), index, schema.VectorDim))
		}
	}
	return nil
}

func vectorFieldName(schema models.IndexSchema) string {
	for _, f := range schema.Fields {
		if f.Kind == "vector" {
			return f.Name
		}
	}
	return "content_vector"
}

// schemaFor returns the schema EnsureSchema previously recorded for index,
// or an error if EnsureSchema has not yet run for it.
func (c *client) schemaFor(index models.IndexName) (models.IndexSchema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[index]
	if !ok {
		return models.IndexSchema{}, apperrors.New(apperrors.KindInternal, fmt.Sprintf("indexclient: schema for %s not initialized, call EnsureSchema first", index))
	}
	return s, nil
}

func (c *client) UpsertBatch(ctx context.Context, index models.IndexName, docs []models.MotorcycleDocument) error {
	schema, err := c.schemaFor(index)
	if err != nil {
		return err
	}

	if err := validateVectorDims(index, schema, docs); err != nil {
		return err
	}

	entry := logging.Entry(ctx, c.logger, "indexclient")
	points := make([]*qdrant.PointStruct, len(docs))
	for i, d := range docs {
		payload, err := payloadFromDocument(d, entry)
		if err != nil {
			return err
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(d.ID),
			Vectors: qdrant.NewVectors(d.ContentVector...),
			Payload: payload,
		}
	}

	_, err = c.policies.Execute(ctx, "search.upsert", func(ctx context.Context) (any, error) {
		_, err := c.conn.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: string(index),
			Points:         points,
		})
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindUpstreamTransient, err, "upserting batch")
		}
		return nil, nil
	})
	return err
}

// payloadFromDocument builds d's Qdrant payload, including a quantized and
// zstd-compressed backup of its content vector (component C5) alongside
// the raw float32 vector Qdrant itself indexes. entry may be nil in tests
// that don't care about the round-trip sanity check's log output.
func payloadFromDocument(d models.MotorcycleDocument, entry *logrus.Entry) (map[string]*qdrant.Value, error) {
	payload := map[string]*qdrant.Value{
		"title":       qdrant.NewValueString(d.Title),
		"content":     qdrant.NewValueString(d.Content),
		"type":        qdrant.NewValueString(string(d.Type)),
		"source_file": qdrant.NewValueString(d.Metadata.SourceFile),
		"source_url":  qdrant.NewValueString(d.Metadata.SourceURL),
		"section":     qdrant.NewValueString(d.Metadata.Section),
		"page_number": qdrant.NewValueInt(int64(d.Metadata.PageNumber)),
		"chunk_type":  qdrant.NewValueString(string(d.Metadata.ChunkType)),
	}
	for k, v := range d.Metadata.AdditionalProperties {
		payload[k] = qdrant.NewValueString(v)
	}

	if len(d.ContentVector) > 0 {
		compressed, err := compressVectorBackup(d.ContentVector, entry)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, err, "compressing content vector backup")
		}
		payload[compressedVectorField] = qdrant.NewValueString(base64.StdEncoding.EncodeToString(compressed))
	}

	return payload, nil
}

// compressVectorBackup quantizes vec to int8, zstd-compresses the
// serialized result, and immediately round-trips it through
// Decompress/UnmarshalQuantizedVector as a write-time sanity check. The
// round trip never fails the upsert — a mismatch only gets logged, since
// the raw float32 vector Qdrant indexes remains the source of truth for
// search; the compressed payload is a reconstructable backup, not the
// primary copy.
func compressVectorBackup(vec []float32, entry *logrus.Entry) ([]byte, error) {
	quantized := compression.Quantize(vec)
	compressed, err := compression.Compress(quantized.Marshal())
	if err != nil {
		return nil, err
	}

	if entry != nil {
		raw, err := compression.Decompress(compressed)
		if err != nil {
			entry.WithError(err).Warn("vector backup failed to decompress during upsert sanity check")
		} else if restored, err := compression.UnmarshalQuantizedVector(raw); err != nil {
			entry.WithError(err).Warn("vector backup failed to unmarshal during upsert sanity check")
		} else if len(restored.Values) != len(quantized.Values) {
			entry.Warn("vector backup length mismatch after round-trip during upsert sanity check")
		}
	}

	return compressed, nil
}

// textSearchFields are the FieldText-kind payload fields (models/schema.go)
// a lexical keyword match is evaluated against. Every schema (CSV, PDF,
// Unified) carries "content"; title-bearing schemas also carry "title".
var textSearchFields = []string{"content", "title"}

// Query issues the combined lexical+vector query spec.md §4.6/C2 calls
// for: equality filters and a keyword match against the schema's text
// fields both narrow the candidate set (Filter), and, when opts.Vector is
// present, a dense nearest-neighbor ranking is layered on top of that
// filtered set. When opts.Vector is empty (the vector agent's lexical-only
// fallback, spec.md §4.6), the call omits Query entirely and the filter
// alone — including the keyword match — determines the result set, giving
// a real keyword search rather than a zero-vector nearest-neighbor query.
func (c *client) Query(ctx context.Context, index models.IndexName, opts HybridQueryOptions) ([]models.SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	filter := filterFromOptions(opts)

	result, err := c.policies.Execute(ctx, "search.query", func(ctx context.Context) (any, error) {
		qp := &qdrant.QueryPoints{
			CollectionName: string(index),
			Filter:         filter,
			Limit:          qdrant.PtrOf(uint64(limit)),
			WithPayload:    qdrant.NewWithPayload(true),
		}
		if len(opts.Vector) > 0 {
			qp.Query = qdrant.NewQuery(opts.Vector...)
			qp.ScoreThreshold = qdrant.PtrOf(float32(opts.MinScore))
		}

		points, err := c.conn.Query(ctx, qp)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindUpstreamTransient, err, "querying index")
		}
		return points, nil
	})
	if err != nil {
		return nil, err
	}

	points := result.([]*qdrant.ScoredPoint)
	out := make([]models.SearchResult, 0, len(points))
	for _, p := range points {
		out = append(out, searchResultFromPoint(index, p))
	}
	return out, nil
}

// filterFromOptions builds the equality (Must) and keyword-match (Should)
// conditions spec.md §4.6's hybrid query requires. Equality filters narrow
// the candidate set exactly; a non-empty Keywords string is matched against
// every text field in textSearchFields as an OR group, so a hit on either
// "content" or "title" qualifies — this is the lexical half of the hybrid
// query, and the only candidate-narrowing mechanism at all when Vector is
// empty.
func filterFromOptions(opts HybridQueryOptions) *qdrant.Filter {
	var filter qdrant.Filter

	if len(opts.Filters) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(opts.Filters))
		for k, v := range opts.Filters {
			conditions = append(conditions, qdrant.NewMatch(k, v))
		}
		filter.Must = conditions
	}

	if keywords := strings.TrimSpace(opts.Keywords); keywords != "" {
		textConditions := make([]*qdrant.Condition, 0, len(textSearchFields))
		for _, field := range textSearchFields {
			textConditions = append(textConditions, qdrant.NewMatchText(field, keywords))
		}
		filter.Should = textConditions
	}

	if len(filter.Must) == 0 && len(filter.Should) == 0 {
		return nil
	}
	return &filter
}

func searchResultFromPoint(index models.IndexName, p *qdrant.ScoredPoint) models.SearchResult {
	payload := p.GetPayload()
	get := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	return models.SearchResult{
		ID:             idString(p.GetId()),
		Content:        get("content"),
		RelevanceScore: float64(p.GetScore()),
		Source: models.SearchResultSource{
			AgentType:  models.AgentTypeVector,
			SourceName: string(index),
			DocumentID: idString(p.GetId()),
			URL:        get("source_url"),
		},
	}
}

func idString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uid := id.GetUuid(); uid != "" {
		return uid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func (c *client) Ping(ctx context.Context) error {
	_, err := c.conn.HealthCheck(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamTransient, err, "index health check failed")
	}
	return nil
}
