package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/font-crawler/internal/crawler"
	"github.com/JakeFAU/font-crawler/internal/progress"
	memorypub "github.com/JakeFAU/font-crawler/internal/publisher/memory"
	memorystore "github.com/JakeFAU/font-crawler/internal/storage/memory"
)

type stubEngine struct {
	result crawler.Result
	err    error
	block  chan struct{}
	seen   []crawler.Request
	mu     sync.Mutex
}

func (s *stubEngine) Crawl(ctx context.Context, req crawler.Request) (crawler.Result, error) {
	s.mu.Lock()
	s.seen = append(s.seen, req)
	s.mu.Unlock()
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return crawler.Result{}, ctx.Err()
		}
	}
	return s.result, s.err
}

type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) NewID() (string, error) {
	return fmt.Sprintf("0190b6c2-0000-7000-8000-%012d", g.n.Add(1)), nil
}

type failingIDs struct{}

func (failingIDs) NewID() (string, error) { return "", errors.New("entropy exhausted") }

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Stage, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Stage)
	}
	return out
}

type failingStore struct{}

func (failingStore) SaveCrawl(context.Context, crawler.CrawlRecord) error {
	return errors.New("disk full")
}

func (failingStore) GetCrawl(_ context.Context, id string) (crawler.CrawlRecord, error) {
	return crawler.CrawlRecord{}, fmt.Errorf("get crawl %s: %w", id, crawler.ErrCrawlNotFound)
}

func newClock() *stepClock {
	return &stepClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestScrapeSuccessPersistsAndPublishes(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{result: crawler.Result{Fonts: []string{"arial", "roboto"}, PagesVisited: 2, PagesFailed: 1}}
	store := memorystore.NewCrawlStore()
	pub := memorypub.New()
	emitter := &recordingEmitter{}
	svc := New(engine, store, pub, emitter, &seqIDs{}, newClock(), Config{Topic: "crawls"}, zap.NewNop())

	req := crawler.Request{StartURL: "https://example.com", Strategy: crawler.StrategyBreadthFirst, PageLimit: 3}
	rec, err := svc.Scrape(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, crawler.CrawlStatusSucceeded, rec.Status)
	require.Equal(t, []string{"arial", "roboto"}, rec.Fonts)
	require.Equal(t, 2, rec.PagesVisited)
	require.Equal(t, 1, rec.PagesFailed)
	require.True(t, rec.FinishedAt.After(rec.StartedAt))

	require.Len(t, engine.seen, 1)
	require.Equal(t, rec.ID, engine.seen[0].ID, "engine receives the crawl id")

	stored, err := svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec, stored)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "crawls", msgs[0].Topic)
	msg, ok := msgs[0].Payload.(CompletionMessage)
	require.True(t, ok)
	require.Equal(t, rec.ID, msg.CrawlID)
	require.Equal(t, "succeeded", msg.Status)

	require.Equal(t, []progress.Stage{progress.StageCrawlStart, progress.StageCrawlDone}, emitter.stages())
}

func TestScrapeFailureRecordsReason(t *testing.T) {
	t.Parallel()

	boom := fmt.Errorf("open browser: %w", crawler.ErrBrowserUnavailable)
	engine := &stubEngine{err: boom}
	store := memorystore.NewCrawlStore()
	emitter := &recordingEmitter{}
	svc := New(engine, store, nil, emitter, &seqIDs{}, newClock(), Config{}, nil)

	rec, err := svc.Scrape(context.Background(), crawler.Request{StartURL: "https://example.com", Strategy: crawler.StrategyNone})
	require.ErrorIs(t, err, crawler.ErrBrowserUnavailable)
	require.Equal(t, crawler.CrawlStatusFailed, rec.Status)
	require.Equal(t, boom.Error(), rec.Reason)
	require.NotNil(t, rec.Fonts)
	require.Empty(t, rec.Fonts)

	stored, err := store.GetCrawl(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, crawler.CrawlStatusFailed, stored.Status)
	require.Equal(t, []progress.Stage{progress.StageCrawlStart, progress.StageCrawlError}, emitter.stages())
}

func TestScrapeSideEffectFailuresAreLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	pub := memorypub.New()
	pub.FailWith(errors.New("topic gone"))
	engine := &stubEngine{result: crawler.Result{Fonts: []string{"arial"}, PagesVisited: 1}}
	svc := New(engine, failingStore{}, pub, nil, &seqIDs{}, newClock(), Config{Topic: "crawls"}, zap.New(core))

	rec, err := svc.Scrape(context.Background(), crawler.Request{StartURL: "https://example.com", Strategy: crawler.StrategyNone})
	require.NoError(t, err)
	require.Equal(t, crawler.CrawlStatusSucceeded, rec.Status)
	require.Equal(t, 1, logs.FilterMessage("save crawl failed").Len())
	require.Equal(t, 1, logs.FilterMessage("publish crawl failed").Len())
}

func TestScrapeIDFailure(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{}
	svc := New(engine, nil, nil, nil, failingIDs{}, newClock(), Config{}, nil)
	_, err := svc.Scrape(context.Background(), crawler.Request{StartURL: "https://example.com"})
	require.ErrorContains(t, err, "generate crawl id")
	require.Empty(t, engine.seen)
}

func TestScrapeBoundsConcurrency(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{block: make(chan struct{})}
	svc := New(engine, nil, nil, nil, &seqIDs{}, newClock(), Config{MaxConcurrent: 1}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Scrape(context.Background(), crawler.Request{StartURL: "https://a.example"})
		done <- err
	}()
	require.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return len(engine.seen) == 1
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Scrape(ctx, crawler.Request{StartURL: "https://b.example"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorContains(t, err, "acquire crawl slot")

	close(engine.block)
	require.NoError(t, <-done)
}

func TestGetWithoutStore(t *testing.T) {
	t.Parallel()

	svc := New(&stubEngine{}, nil, nil, nil, &seqIDs{}, newClock(), Config{}, nil)
	_, err := svc.Get(context.Background(), "x")
	require.ErrorIs(t, err, crawler.ErrCrawlNotFound)
}
