// Package scrape runs crawls on behalf of callers: it bounds concurrency,
// assigns crawl ids, persists and publishes the outcome and reports progress.
package scrape

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/font-crawler/internal/crawler"
	"github.com/JakeFAU/font-crawler/internal/metrics"
	"github.com/JakeFAU/font-crawler/internal/progress"
)

const (
	defaultMaxConcurrent     = 4
	defaultSideEffectTimeout = 10 * time.Second
)

// Config controls Service behavior.
type Config struct {
	// MaxConcurrent bounds how many crawls run at once.
	MaxConcurrent int64
	// Topic receives a completion message per crawl. Empty disables publishing.
	Topic string
	// SideEffectTimeout bounds the store and publish calls after a crawl.
	SideEffectTimeout time.Duration
}

// Crawler is the engine surface the service drives.
type Crawler interface {
	Crawl(ctx context.Context, req crawler.Request) (crawler.Result, error)
}

// CompletionMessage is the payload published when a crawl finishes.
type CompletionMessage struct {
	CrawlID      string   `json:"crawl_id"`
	StartURL     string   `json:"start_url"`
	Strategy     string   `json:"strategy"`
	Status       string   `json:"status"`
	Reason       string   `json:"reason,omitempty"`
	Fonts        []string `json:"fonts"`
	PagesVisited int      `json:"pages_visited"`
	PagesFailed  int      `json:"pages_failed"`
	FinishedAt   string   `json:"finished_at"`
}

// Service executes crawls and records their outcome.
type Service struct {
	engine    Crawler
	store     crawler.CrawlStore
	publisher crawler.Publisher
	emitter   progress.Emitter
	ids       crawler.IDGenerator
	clock     crawler.Clock
	slots     *semaphore.Weighted
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Service. store, publisher and emitter may be nil.
func New(
	engine Crawler,
	store crawler.CrawlStore,
	publisher crawler.Publisher,
	emitter progress.Emitter,
	ids crawler.IDGenerator,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.SideEffectTimeout <= 0 {
		cfg.SideEffectTimeout = defaultSideEffectTimeout
	}
	return &Service{
		engine:    engine,
		store:     store,
		publisher: publisher,
		emitter:   emitter,
		ids:       ids,
		clock:     clock,
		slots:     semaphore.NewWeighted(cfg.MaxConcurrent),
		cfg:       cfg,
		logger:    logger,
	}
}

// Scrape runs one crawl. The returned record is populated whenever a crawl
// was started, including when err is non-nil; err carries the fatal crawl
// error.
func (s *Service) Scrape(ctx context.Context, req crawler.Request) (crawler.CrawlRecord, error) {
	waitStart := time.Now()
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return crawler.CrawlRecord{}, fmt.Errorf("acquire crawl slot: %w", err)
	}
	metrics.CrawlSlotAcquired(time.Since(waitStart))
	defer func() {
		s.slots.Release(1)
		metrics.CrawlSlotReleased()
	}()

	id, err := s.ids.NewID()
	if err != nil {
		return crawler.CrawlRecord{}, fmt.Errorf("generate crawl id: %w", err)
	}
	req.ID = id
	started := s.clock.Now()
	crawlID := progress.ParseCrawlID(id)

	logger := s.logger.With(
		zap.String("crawl_id", id),
		zap.String("start_url", req.StartURL),
		zap.String("strategy", string(req.Strategy)),
		zap.Int("page_limit", req.PageLimit),
	)
	logger.Info("crawl started")
	s.emit(progress.Event{CrawlID: crawlID, TS: started, Stage: progress.StageCrawlStart, Strategy: string(req.Strategy)})

	result, crawlErr := s.engine.Crawl(ctx, req)
	finished := s.clock.Now()

	record := crawler.CrawlRecord{
		ID:           id,
		Request:      req,
		Status:       crawler.CrawlStatusSucceeded,
		Fonts:        result.Fonts,
		PagesVisited: result.PagesVisited,
		PagesFailed:  result.PagesFailed,
		StartedAt:    started,
		FinishedAt:   finished,
	}
	if record.Fonts == nil {
		record.Fonts = []string{}
	}
	evt := progress.Event{
		CrawlID:  crawlID,
		TS:       finished,
		Stage:    progress.StageCrawlDone,
		Strategy: string(req.Strategy),
		Fonts:    len(record.Fonts),
		Pages:    record.PagesVisited,
		Dur:      finished.Sub(started),
	}
	if crawlErr != nil {
		record.Status = crawler.CrawlStatusFailed
		record.Reason = crawlErr.Error()
		evt.Stage = progress.StageCrawlError
		evt.Note = record.Reason
		logger.Error("crawl failed", zap.Error(crawlErr), zap.Duration("duration", evt.Dur))
	} else {
		logger.Info("crawl finished",
			zap.Int("fonts", len(record.Fonts)),
			zap.Int("pages_visited", record.PagesVisited),
			zap.Int("pages_failed", record.PagesFailed),
			zap.Duration("duration", evt.Dur),
		)
	}

	s.persist(ctx, record, logger)
	s.emit(evt)
	metrics.ObserveCrawlResult(string(req.Strategy), string(record.Status))

	if crawlErr != nil {
		return record, crawlErr
	}
	return record, nil
}

// Get returns a stored crawl record.
func (s *Service) Get(ctx context.Context, id string) (crawler.CrawlRecord, error) {
	if s.store == nil {
		return crawler.CrawlRecord{}, fmt.Errorf("get crawl %s: %w", id, crawler.ErrCrawlNotFound)
	}
	rec, err := s.store.GetCrawl(ctx, id)
	if err != nil {
		return crawler.CrawlRecord{}, fmt.Errorf("load crawl: %w", err)
	}
	return rec, nil
}

// persist stores and publishes the record. Failures are logged and counted
// but never change the crawl outcome.
func (s *Service) persist(ctx context.Context, record crawler.CrawlRecord, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SideEffectTimeout)
	defer cancel()

	if s.store != nil {
		if err := s.store.SaveCrawl(ctx, record); err != nil {
			metrics.ObserveSideEffectFailure("store")
			logger.Error("save crawl failed", zap.Error(err))
		}
	}
	if s.publisher == nil || s.cfg.Topic == "" {
		return
	}
	msg := CompletionMessage{
		CrawlID:      record.ID,
		StartURL:     record.Request.StartURL,
		Strategy:     string(record.Request.Strategy),
		Status:       string(record.Status),
		Reason:       record.Reason,
		Fonts:        record.Fonts,
		PagesVisited: record.PagesVisited,
		PagesFailed:  record.PagesFailed,
		FinishedAt:   record.FinishedAt.Format(time.RFC3339),
	}
	msgID, err := s.publisher.Publish(ctx, s.cfg.Topic, msg)
	if err != nil {
		metrics.ObserveSideEffectFailure("publish")
		logger.Error("publish crawl failed", zap.String("topic", s.cfg.Topic), zap.Error(err))
		return
	}
	logger.Debug("crawl published", zap.String("topic", s.cfg.Topic), zap.String("message_id", msgID))
}

func (s *Service) emit(evt progress.Event) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(evt)
}
