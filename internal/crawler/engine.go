package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/font-crawler/internal/progress"
)

// EngineConfig carries the traversal knobs that apply to every crawl.
type EngineConfig struct {
	// MaxDepth skips entries discovered deeper than this. Zero disables it.
	MaxDepth int
	// SameHostOnly drops outgoing links whose host differs from the page.
	SameHostOnly bool
	// CanonicalizeURLs keys the visited ledger on CanonicalURL instead of the
	// exact URL string.
	CanonicalizeURLs bool
}

// Engine walks the link graph of a start URL and aggregates font families.
// An Engine is stateless between crawls and may run many crawls concurrently;
// each crawl owns its ledger, frontier and browser session.
type Engine struct {
	browser Browser
	seeder  *Seeder
	cfg     EngineConfig
	emitter progress.Emitter
	logger  *zap.Logger
	now     func() time.Time
}

// NewEngine wires the engine to its browser and discovery seeder. emitter may
// be nil.
func NewEngine(browser Browser, seeder *Seeder, cfg EngineConfig, emitter progress.Emitter, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if seeder == nil {
		seeder = NewSeeder(SeederConfig{}, logger)
	}
	return &Engine{
		browser: browser,
		seeder:  seeder,
		cfg:     cfg,
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
	}
}

// crawlRun is the per-invocation state threaded through the page step.
type crawlRun struct {
	req      Request
	crawlID  [16]byte
	limit    int
	session  Session
	ledger   *Ledger
	frontier Frontier
	fonts    *FontSet
}

// Crawl runs one crawl to completion. Per-page navigation failures and error
// statuses are recorded and skipped; the returned error is non-nil only for
// invalid requests, an unavailable browser, failed discovery, extraction
// contract violations, or a cancelled ctx.
func (e *Engine) Crawl(ctx context.Context, req Request) (result Result, err error) {
	req, err = prepareRequest(req)
	if err != nil {
		return Result{}, err
	}

	session, err := e.browser.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrBrowserUnavailable) {
			return Result{}, fmt.Errorf("open browser: %w", err)
		}
		return Result{}, fmt.Errorf("open browser: %w: %w", ErrBrowserUnavailable, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			e.logger.Warn("close browser session", zap.Error(cerr))
		}
	}()

	run := &crawlRun{
		req:      req,
		crawlID:  progress.ParseCrawlID(req.ID),
		limit:    req.PageLimit,
		session:  session,
		ledger:   NewLedger(e.cfg.CanonicalizeURLs),
		frontier: NewFrontier(req.Strategy),
		fonts:    NewFontSet(),
	}

	switch req.Strategy {
	case StrategyNone:
		run.limit = 1
		run.frontier.Push(Entry{URL: req.StartURL})
	case StrategyBreadthFirst, StrategyDepthFirst:
		run.frontier.Push(Entry{URL: req.StartURL})
	case StrategyDiscoverySeeded:
		seeds, err := e.seeder.Seed(ctx, session, req.StartURL, run.limit)
		if err != nil {
			return Result{}, fmt.Errorf("seed crawl: %w", err)
		}
		for _, seed := range seeds {
			run.frontier.Push(Entry{URL: seed})
		}
	}

	for run.ledger.Count(OutcomeOK) < run.limit {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("crawl cancelled: %w", err)
		}
		entry, ok := run.frontier.Pop()
		if !ok {
			break
		}
		if err := e.visit(ctx, run, entry); err != nil {
			return Result{}, err
		}
	}

	return Result{
		Fonts:        run.fonts.Slice(),
		PagesVisited: run.ledger.Count(OutcomeOK),
		PagesFailed:  run.ledger.Count(OutcomeFailed),
		Pages:        run.ledger.Outcomes(),
	}, nil
}

// visit is the per-URL step shared by every strategy. It only returns an
// error for failures that must abort the crawl.
func (e *Engine) visit(ctx context.Context, run *crawlRun, entry Entry) error {
	if run.ledger.IsVisited(entry.URL) {
		return nil
	}
	if e.cfg.MaxDepth > 0 && entry.Depth > e.cfg.MaxDepth {
		return nil
	}
	run.ledger.MarkVisited(entry.URL, entry.Depth)

	start := e.now()
	page, err := run.session.Fetch(ctx, entry.URL)
	dur := e.now().Sub(start)
	switch {
	case err != nil && errors.Is(err, ErrNavigation):
		run.ledger.Record(entry.URL, OutcomeFailed, 0, err.Error())
		e.pageEvent(run, progress.StagePageFailed, entry, 0, 0, dur, err.Error())
		e.logger.Debug("page navigation failed", zap.String("url", entry.URL), zap.Error(err))
		return nil
	case err != nil:
		return fmt.Errorf("fetch %s: %w", entry.URL, err)
	case page.Status >= 400:
		note := fmt.Sprintf("status %d", page.Status)
		run.ledger.Record(entry.URL, OutcomeFailed, page.Status, note)
		e.pageEvent(run, progress.StagePageFailed, entry, page.Status, 0, dur, note)
		e.logger.Debug("page returned error status",
			zap.String("url", entry.URL),
			zap.Int("status", page.Status),
		)
		return nil
	}

	run.ledger.Record(entry.URL, OutcomeOK, page.Status, "")
	for _, raw := range page.RawFontValues {
		run.fonts.AddRaw(raw)
	}
	e.pageEvent(run, progress.StagePageOK, entry, page.Status, len(page.RawFontValues), dur, "")
	e.logger.Debug("page visited",
		zap.String("url", entry.URL),
		zap.Int("depth", entry.Depth),
		zap.Int("font_values", len(page.RawFontValues)),
		zap.Int("links", len(page.OutgoingLinks)),
	)

	if !run.req.Strategy.recursive() {
		return nil
	}
	children := make([]Entry, 0, len(page.OutgoingLinks))
	for _, link := range page.OutgoingLinks {
		if e.cfg.SameHostOnly && !sameHost(entry.URL, link) {
			continue
		}
		children = append(children, Entry{URL: link, Depth: entry.Depth + 1})
	}
	run.frontier.PushAll(children...)
	return nil
}

func (e *Engine) pageEvent(run *crawlRun, stage progress.Stage, entry Entry, status, fonts int, dur time.Duration, note string) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(progress.Event{
		CrawlID:     run.crawlID,
		TS:          e.now().UTC(),
		Stage:       stage,
		Site:        hostLabel(entry.URL),
		URL:         entry.URL,
		Depth:       entry.Depth,
		StatusClass: progress.ClassifyStatus(status),
		Fonts:       fonts,
		Dur:         dur,
		Note:        note,
	})
}

// prepareRequest validates req and fills defaults.
func prepareRequest(req Request) (Request, error) {
	strategy, err := ParseStrategy(string(req.Strategy))
	if err != nil {
		return Request{}, err
	}
	req.Strategy = strategy
	if req.PageLimit < 0 {
		return Request{}, fmt.Errorf("%w: page limit must be >= 1, got %d", ErrInvalidRequest, req.PageLimit)
	}
	if req.PageLimit == 0 {
		req.PageLimit = DefaultPageLimit
	}
	if err := ValidateStartURL(req.StartURL); err != nil {
		return Request{}, err
	}
	return req, nil
}

func hostLabel(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
