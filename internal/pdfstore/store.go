// Package pdfstore provides object storage for source PDFs and their
// extracted page images ahead of vision captioning (SPEC_FULL.md's DOMAIN
// STACK section, serving component C7). It is grounded on the reference
// system's internal/bigdata.DataLakeClient, the pack's one direct
// github.com/minio/minio-go/v7 caller: the same
// New/BucketExists/MakeBucket-on-construct/PutObject/GetObject shape,
// narrowed from a general data-lake client to a bucket-scoped
// Put/Get wrapper keyed by source file name and figure ordinal.
package pdfstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dpalfery/motorcycle-rag-system-sub001/internal/apperrors"
)

// Config configures the underlying MinIO connection.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
}

// Validate checks that cfg carries enough information to dial MinIO,
// mirroring the reference system's minio.Config.Validate.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return apperrors.New(apperrors.KindConfig, "pdfstore: endpoint is required")
	}
	if c.AccessKeyID == "" {
		return apperrors.New(apperrors.KindConfig, "pdfstore: access_key_id is required")
	}
	if c.SecretAccessKey == "" {
		return apperrors.New(apperrors.KindConfig, "pdfstore: secret_access_key is required")
	}
	if c.Bucket == "" {
		return apperrors.New(apperrors.KindConfig, "pdfstore: bucket is required")
	}
	return nil
}

// pdfKey returns the object key a source PDF is stored under.
func pdfKey(sourceFile string) string {
	return "pdfs/" + sourceFile
}

// figureKey returns the object key a figure crop is stored under.
func figureKey(sourceFile string, pageNumber, ordinal int) string {
	return fmt.Sprintf("figures/%s/p%d-%d.png", sourceFile, pageNumber, ordinal)
}

// Store persists and retrieves source PDF bytes and figure crops keyed by
// object name, ahead of C7's layout extraction and multimodal enrichment.
type Store struct {
	client *minio.Client
	bucket string
}

// New connects to MinIO at cfg and ensures the configured bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, err, "pdfstore: constructing minio client")
	}

	exists, err := cl.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamTransient, err, "pdfstore: checking bucket existence")
	}
	if !exists {
		if err := cl.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, apperrors.Wrap(apperrors.KindUpstreamTransient, err, "pdfstore: creating bucket")
		}
	}

	return &Store{client: cl, bucket: cfg.Bucket}, nil
}

// PutPDF uploads the raw bytes of a source PDF under sourceFile's name,
// returning the object key it was stored under.
func (s *Store) PutPDF(ctx context.Context, sourceFile string, data []byte) (string, error) {
	key := pdfKey(sourceFile)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindUpstreamTransient, err, "pdfstore: uploading source pdf")
	}
	return key, nil
}

// GetPDF downloads the raw bytes of a previously stored source PDF.
func (s *Store) GetPDF(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamTransient, err, "pdfstore: fetching source pdf")
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamTransient, err, "pdfstore: reading source pdf")
	}
	return data, nil
}

// PutFigure uploads a figure/image crop extracted by the layout client,
// keyed by source file and page number, so it can be re-fetched for
// re-captioning without re-running layout extraction.
func (s *Store) PutFigure(ctx context.Context, sourceFile string, pageNumber, ordinal int, data []byte) (string, error) {
	key := figureKey(sourceFile, pageNumber, ordinal)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "image/png",
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindUpstreamTransient, err, "pdfstore: uploading figure crop")
	}
	return key, nil
}
