package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/font-crawler/internal/progress"
)

// PrometheusSink exports crawl progress as Prometheus collectors: crawl
// lifecycle counters plus per-site page outcomes.
type PrometheusSink struct {
	crawlsStarted   *prometheus.CounterVec
	crawlsCompleted *prometheus.CounterVec
	crawlsRunning   prometheus.Gauge
	crawlRuntime    *prometheus.HistogramVec
	crawlFonts      prometheus.Histogram

	pages        *prometheus.CounterVec
	pageDuration *prometheus.HistogramVec

	tracker *crawlTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		crawlsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fontcrawler_crawls_started_total",
			Help: "Total crawls that have started, by strategy.",
		}, []string{"strategy"}),
		crawlsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fontcrawler_crawls_completed_total",
			Help: "Total crawls completed partitioned by result.",
		}, []string{"result"}),
		crawlsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fontcrawler_crawls_running",
			Help: "Current number of running crawls.",
		}),
		crawlRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fontcrawler_crawl_runtime_seconds",
			Help:    "Wall time per completed crawl.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"result"}),
		crawlFonts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fontcrawler_crawl_font_families",
			Help:    "Distinct font families returned per successful crawl.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fontcrawler_pages_total",
			Help: "Page outcomes partitioned by site, outcome and status class.",
		}, []string{"site", "outcome", "status_class"}),
		pageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fontcrawler_page_duration_seconds",
			Help:    "Page fetch and extraction duration partitioned by outcome.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"outcome"}),
		tracker: newCrawlTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.crawlsStarted,
		s.crawlsCompleted,
		s.crawlsRunning,
		s.crawlRuntime,
		s.crawlFonts,
		s.pages,
		s.pageDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageCrawlStart, progress.StageCrawlDone, progress.StageCrawlError:
			s.handleCrawlEvent(evt)
		case progress.StagePageOK, progress.StagePageFailed:
			s.handlePageEvent(evt)
		}
	}
	return nil
}

func (s *PrometheusSink) handleCrawlEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageCrawlStart:
		s.crawlsStarted.WithLabelValues(labelOr(evt.Strategy, "unknown")).Inc()
		if s.tracker.start(evt.CrawlID) {
			s.crawlsRunning.Inc()
		}
		return
	case progress.StageCrawlDone:
		s.crawlsCompleted.WithLabelValues("success").Inc()
		s.crawlFonts.Observe(float64(evt.Fonts))
		s.observeRuntime(evt, "success")
	case progress.StageCrawlError:
		s.crawlsCompleted.WithLabelValues("error").Inc()
		s.observeRuntime(evt, "error")
	}
	if s.tracker.complete(evt.CrawlID) {
		s.crawlsRunning.Dec()
	}
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.crawlRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handlePageEvent(evt progress.Event) {
	outcome := "ok"
	if evt.Stage == progress.StagePageFailed {
		outcome = "failed"
	}
	statusClass := labelOr(string(evt.StatusClass), string(progress.StatusOther))
	s.pages.WithLabelValues(labelOr(evt.Site, "unknown"), outcome, statusClass).Inc()
	if evt.Dur > 0 {
		s.pageDuration.WithLabelValues(outcome).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

func labelOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

type crawlTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newCrawlTracker() *crawlTracker {
	return &crawlTracker{running: make(map[[16]byte]struct{})}
}

func (t *crawlTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *crawlTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
