// Package static implements the crawler's page fetch port with plain HTTP
// requests through colly. It does not run JavaScript: fonts come from inline
// style attributes and embedded <style> sheets, which makes it a lightweight
// fallback where Chrome is unavailable.
package static

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/font-crawler/internal/crawler"
	"github.com/JakeFAU/font-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/font-crawler/internal/policy/robots"
)

const (
	defaultTimeout         = 15 * time.Second
	defaultPreviewSelector = ".preview"
	defaultNextText        = "Next >"
)

// Config controls collector behavior.
type Config struct {
	UserAgent       string
	Timeout         time.Duration
	PreviewSelector string
	// NextText is matched against anchor text when a listing has no
	// rel="next" link.
	NextText string
}

// Browser implements crawler.Browser using a colly collector.
type Browser struct {
	cfg           Config
	limiter       *ratelimit.Limiter
	robots        robots.Policy
	logger        *zap.Logger
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

// New builds a Browser. limiter and policy may be nil.
func New(cfg Config, limiter *ratelimit.Limiter, policy robots.Policy, logger *zap.Logger) *Browser {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PreviewSelector == "" {
		cfg.PreviewSelector = defaultPreviewSelector
	}
	if cfg.NextText == "" {
		cfg.NextText = defaultNextText
	}
	if policy == nil {
		policy = robots.AllowAll{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Browser{
		cfg:           cfg,
		limiter:       limiter,
		robots:        policy,
		logger:        logger,
		transport:     transport,
		baseCollector: c,
	}
}

// Open implements crawler.Browser. Sessions share the pooled transport and
// need no startup work.
func (b *Browser) Open(context.Context) (crawler.Session, error) {
	return &session{browser: b}, nil
}

type session struct {
	browser *Browser
}

// document is one fetched page.
type document struct {
	status   int
	finalURL string
	doc      *goquery.Document
}

func (b *Browser) buildCollector(result *document, body *[]byte, fetchErr *error) *colly.Collector {
	collector := b.baseCollector.Clone()
	if b.cfg.UserAgent != "" {
		collector.UserAgent = b.cfg.UserAgent
	}
	// robots.txt is enforced by the shared policy before the visit
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.AllowURLRevisit = true
	collector.SetRequestTimeout(b.cfg.Timeout)
	collector.WithTransport(b.transport)

	collector.OnResponse(func(r *colly.Response) {
		result.status = r.StatusCode
		result.finalURL = r.Request.URL.String()
		*body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
	return collector
}

// get downloads url. Transport failures are wrapped with crawler.ErrNavigation.
func (s *session) get(ctx context.Context, url string) (document, error) {
	b := s.browser
	if !b.robots.Allowed(ctx, url) {
		return document{}, fmt.Errorf("%w: %s disallowed by robots.txt", crawler.ErrNavigation, url)
	}
	if err := b.limiter.Wait(ctx, url); err != nil {
		return document{}, fmt.Errorf("%w: %w", crawler.ErrNavigation, err)
	}

	var (
		result   document
		body     []byte
		fetchErr error
	)
	collector := b.buildCollector(&result, &body, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return document{}, fmt.Errorf("%w: colly fetch canceled: %w", crawler.ErrNavigation, ctx.Err())
	case err := <-done:
		if err == nil {
			err = fetchErr
		}
		if err != nil {
			return document{}, fmt.Errorf("%w: visit %s: %w", crawler.ErrNavigation, url, err)
		}
	}
	if result.status == 0 {
		return document{}, fmt.Errorf("%w: visit %s: no response", crawler.ErrNavigation, url)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return document{}, fmt.Errorf("parse html from %s: %w", url, err)
	}
	result.doc = doc
	return result, nil
}

// Fetch implements crawler.Session.
func (s *session) Fetch(ctx context.Context, url string) (crawler.PageResult, error) {
	fetched, err := s.get(ctx, url)
	if err != nil {
		return crawler.PageResult{}, err
	}
	result := crawler.PageResult{URL: fetched.finalURL, Status: fetched.status}
	if fetched.status >= 400 {
		return result, nil
	}
	result.RawFontValues = extractFonts(fetched.doc)
	result.OutgoingLinks = extractLinks(fetched.doc, fetched.finalURL)

	s.browser.logger.Debug("page fetched",
		zap.String("url", url),
		zap.Int("status", fetched.status),
		zap.Int("font_values", len(result.RawFontValues)),
		zap.Int("links", len(result.OutgoingLinks)),
	)
	return result, nil
}

// OpenListing implements crawler.Session.
func (s *session) OpenListing(ctx context.Context, url string) (crawler.ListingPage, error) {
	fetched, err := s.get(ctx, url)
	if err != nil {
		return nil, err
	}
	if fetched.status >= 400 {
		return nil, fmt.Errorf("listing %s returned status %d", url, fetched.status)
	}
	return &listingPage{
		session: s,
		current: fetched,
		seen:    map[string]struct{}{fetched.finalURL: {}},
	}, nil
}

// Close implements crawler.Session.
func (s *session) Close() error {
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
