// Command ingest drives the CSV/PDF ingestion pipeline (spec.md §4.1,
// §4.2, §4.3) end to end for a single source file: processor → indexing
// service → index, and exits with the codes spec.md §6 specifies for a
// CLI ingest tool. It follows the reference system's cmd/api/main.go
// APIServer-struct wiring shape, replacing the HTTP server loop with a
// single one-shot run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/apperrors"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/azureclients"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/config"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/csvprocessor"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/embedclient"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/indexclient"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/indexing"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/layoutclient"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/logging"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/models"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/pdfprocessor"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/pdfstore"
	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/resilience"
)

// Exit codes per spec.md §6.
const (
	exitSuccess          = 0
	exitValidationError  = 2
	exitUpstreamUnavail  = 3
	exitPartialFailure   = 4
)

func main() {
	kind := flag.String("type", "", "source kind: csv or pdf")
	path := flag.String("file", "", "path to the source file")
	archive := flag.Bool("archive", false, "upload the source pdf to object storage before processing (pdf only)")
	flag.Parse()

	code := run(context.Background(), *kind, *path, *archive)
	os.Exit(code)
}

func run(ctx context.Context, kind, path string, archive bool) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ingest: loading configuration:", err)
		return exitValidationError
	}
	logger := logging.New(cfg.Monitoring.LogFormat, cfg.Monitoring.LogLevel)

	if kind != "csv" && kind != "pdf" {
		fmt.Fprintln(os.Stderr, "ingest: -type must be csv or pdf")
		return exitValidationError
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "ingest: -file is required")
		return exitValidationError
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ingest: reading source file:", err)
		return exitValidationError
	}

	policies := resilience.NewRegistry(logger)
	for name, cb := range cfg.Resilience.CircuitBreaker {
		policies.Register(&resilience.Policy{
			Name:    name,
			Breaker: resilience.NewCircuitBreaker(cb.FailureThreshold, cb.BreakDuration),
			Retry: resilience.RetryConfig{
				MaxRetries: cfg.Resilience.Retry.MaxRetries,
				BaseDelay:  cfg.Resilience.Retry.BaseDelay,
				MaxDelay:   cfg.Resilience.Retry.MaxDelay,
			},
		})
	}

	foundry := azureclients.NewFoundryClient(
		cfg.AzureAI.FoundryEndpoint,
		os.Getenv("AZURE_FOUNDRY_API_KEY"),
		cfg.HTTPClients.ConnectTimeout,
		cfg.HTTPClients.RequestTimeout,
		cfg.HTTPClients.MaxConnsPerEndpoint,
	)
	embed := embedclient.New(foundry, policies, cfg.AzureAI.Models.Temperature, cfg.AzureAI.Models.MaxTokens)

	index, err := indexclient.New(indexclient.Config{
		Host:   cfg.Search.QdrantURL,
		APIKey: cfg.Search.QdrantAPIKey,
	}, policies, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ingest: connecting to index:", err)
		return exitUpstreamUnavail
	}

	svc := indexing.New(index, nil, logger)
	if err := svc.EnsureSchemas(ctx, models.DefaultVectorDim); err != nil {
		fmt.Fprintln(os.Stderr, "ingest: ensuring schemas:", err)
		return exitUpstreamUnavail
	}

	var (
		docs      []models.MotorcycleDocument
		indexName models.IndexName
	)

	switch kind {
	case "csv":
		proc := csvprocessor.New(embed, logger)
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ingest: opening csv:", err)
			return exitValidationError
		}
		defer f.Close()

		result, err := proc.Process(ctx, f, csvprocessor.Options{
			SourceFile:     path,
			EmbeddingModel: cfg.AzureAI.Models.Embedding,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "ingest: processing csv:", err)
			return exitValidationError
		}
		if !result.Success {
			fmt.Fprintln(os.Stderr, "ingest: csv processing failed:", result.Message)
			return exitValidationError
		}
		docs = result.Data.Documents
		indexName = models.IndexCSV

	case "pdf":
		if archive {
			store, err := pdfstore.New(ctx, pdfstore.Config{
				Endpoint:        cfg.PDFStore.Endpoint,
				AccessKeyID:     cfg.PDFStore.AccessKeyID,
				SecretAccessKey: cfg.PDFStore.SecretAccessKey,
				UseSSL:          cfg.PDFStore.UseSSL,
				Bucket:          cfg.PDFStore.Bucket,
			})
			if err != nil {
				fmt.Fprintln(os.Stderr, "ingest: connecting to object storage:", err)
				return exitUpstreamUnavail
			}
			if _, err := store.PutPDF(ctx, path, data); err != nil {
				fmt.Fprintln(os.Stderr, "ingest: archiving source pdf:", err)
				return exitUpstreamUnavail
			}
			logging.Entry(ctx, logger, "ingest").WithField("file", path).Info("archived source pdf before processing")
		}

		layout := layoutclient.New(foundry, policies)
		proc := pdfprocessor.New(layout, embed, logger)
		result, err := proc.Process(ctx, data, pdfprocessor.Options{
			SourceFile:     path,
			EmbeddingModel: cfg.AzureAI.Models.Embedding,
			VisionModel:    cfg.AzureAI.Models.Vision,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "ingest: processing pdf:", err)
			switch apperrors.KindOf(err) {
			case apperrors.KindUpstreamTransient, apperrors.KindCircuitOpen, apperrors.KindTimeout:
				return exitUpstreamUnavail
			default:
				return exitValidationError
			}
		}
		if !result.Success {
			fmt.Fprintln(os.Stderr, "ingest: pdf processing failed")
			return exitValidationError
		}
		docs = result.Data.Documents
		indexName = models.IndexPDF
	}

	startedAt := time.Now()
	batchSize := indexing.BatchSize(indexing.EstimateAvailableMemory(), averageDocBytes(docs))
	report, err := svc.IndexDocuments(ctx, indexName, docs, batchSize)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ingest: indexing documents:", err)
		return exitUpstreamUnavail
	}

	logging.Entry(ctx, logger, "ingest").WithFields(logrus.Fields{
		"documents":      report.TotalDocuments,
		"failed_batches": report.FailedBatches,
		"duration":       time.Since(startedAt).String(),
	}).Info("ingestion complete")

	if report.FailedBatches > 0 {
		fmt.Fprintf(os.Stderr, "ingest: %d of %d batches failed\n", report.FailedBatches, len(report.Batches))
		return exitPartialFailure
	}
	return exitSuccess
}

func averageDocBytes(docs []models.MotorcycleDocument) int64 {
	if len(docs) == 0 {
		return 1024
	}
	var total int64
	for _, d := range docs {
		total += int64(len(d.Content))
	}
	return total / int64(len(docs))
}
