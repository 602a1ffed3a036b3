// Package gcs archives crawl records as JSON objects in Google Cloud Storage.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/font-crawler/internal/crawler"
)

// Config captures the bucket layout.
type Config struct {
	Bucket string
	Prefix string
}

// CrawlStore stores one object per crawl at <prefix>/<crawl id>.json.
type CrawlStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed crawl store.
func New(client *storage.Client, cfg Config) (*CrawlStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "crawls"
	}
	return &CrawlStore{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

func (s *CrawlStore) objectName(id string) string {
	return path.Join(s.prefix, id+".json")
}

// SaveCrawl uploads the record as JSON, replacing any previous object.
func (s *CrawlStore) SaveCrawl(ctx context.Context, record crawler.CrawlRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("crawl id is required")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal crawl: %w", err)
	}
	writer := s.client.Bucket(s.bucket).Object(s.objectName(record.ID)).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// GetCrawl downloads and decodes the record for id.
func (s *CrawlStore) GetCrawl(ctx context.Context, id string) (crawler.CrawlRecord, error) {
	reader, err := s.client.Bucket(s.bucket).Object(s.objectName(id)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return crawler.CrawlRecord{}, fmt.Errorf("get crawl %s: %w", id, crawler.ErrCrawlNotFound)
	}
	if err != nil {
		return crawler.CrawlRecord{}, fmt.Errorf("open object: %w", err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return crawler.CrawlRecord{}, fmt.Errorf("read object: %w", err)
	}
	var rec crawler.CrawlRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return crawler.CrawlRecord{}, fmt.Errorf("decode crawl: %w", err)
	}
	if rec.Fonts == nil {
		rec.Fonts = []string{}
	}
	return rec, nil
}

// Close releases the storage client.
func (s *CrawlStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close storage client: %w", err)
	}
	return nil
}
