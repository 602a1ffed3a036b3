// Package memory keeps crawl records in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/font-crawler/internal/crawler"
)

// CrawlStore keeps crawl records in memory for development and tests.
type CrawlStore struct {
	mu     sync.RWMutex
	crawls map[string]crawler.CrawlRecord
}

// NewCrawlStore constructs an empty CrawlStore.
func NewCrawlStore() *CrawlStore {
	return &CrawlStore{crawls: make(map[string]crawler.CrawlRecord)}
}

// SaveCrawl stores or replaces the record keyed by its ID.
func (s *CrawlStore) SaveCrawl(_ context.Context, record crawler.CrawlRecord) error {
	if record.ID == "" {
		return fmt.Errorf("crawl id is required")
	}
	record.Fonts = append([]string{}, record.Fonts...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crawls[record.ID] = record
	return nil
}

// GetCrawl returns the record for id or crawler.ErrCrawlNotFound.
func (s *CrawlStore) GetCrawl(_ context.Context, id string) (crawler.CrawlRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.crawls[id]
	if !ok {
		return crawler.CrawlRecord{}, fmt.Errorf("get crawl %s: %w", id, crawler.ErrCrawlNotFound)
	}
	record.Fonts = append([]string{}, record.Fonts...)
	return record, nil
}
