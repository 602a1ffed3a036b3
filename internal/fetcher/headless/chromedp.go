package headless

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/font-crawler/internal/crawler"
	"github.com/JakeFAU/font-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/font-crawler/internal/policy/robots"
)

const (
	defaultNavigationTimeout = 45 * time.Second
	defaultSettleDelay       = 500 * time.Millisecond
	defaultPreviewSelector   = ".preview"
	defaultNextXPath         = "//a[contains(text(), 'Next >')]"
)

// Config controls the behavior of the headless browser.
type Config struct {
	ExecPath          string
	UserAgent         string
	NoSandbox         bool
	NavigationTimeout time.Duration
	// SettleDelay is waited after each navigation or pagination click so
	// late scripts can apply styles.
	SettleDelay     time.Duration
	PreviewSelector string
	NextXPath       string
}

func (c Config) withDefaults() Config {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = defaultNavigationTimeout
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.PreviewSelector == "" {
		c.PreviewSelector = defaultPreviewSelector
	}
	if c.NextXPath == "" {
		c.NextXPath = defaultNextXPath
	}
	return c
}

// Browser implements crawler.Browser on top of headless Chrome. Every Open
// starts a dedicated Chrome process that lives until the session is closed.
type Browser struct {
	cfg     Config
	limiter *ratelimit.Limiter
	robots  robots.Policy
	logger  *zap.Logger
}

// NewChromedp creates a headless browser backed by chromedp. limiter and
// policy may be nil.
func NewChromedp(cfg Config, limiter *ratelimit.Limiter, policy robots.Policy, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = robots.AllowAll{}
	}
	return &Browser{
		cfg:     cfg.withDefaults(),
		limiter: limiter,
		robots:  policy,
		logger:  logger,
	}
}

func (b *Browser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if b.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}
	if b.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.cfg.UserAgent))
	}
	return opts
}

// Open launches Chrome and returns a session bound to a single tab. Failure to
// start the browser is reported as crawler.ErrBrowserUnavailable.
func (b *Browser) Open(ctx context.Context) (crawler.Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, b.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(b.logger.Sugar().Debugf),
		chromedp.WithErrorf(b.logger.Sugar().Debugf),
	)

	s := &session{
		browser:     b,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		meta:        &responseMeta{},
		loads:       newLoadTracker(),
	}
	chromedp.ListenTarget(tabCtx, func(ev any) {
		s.meta.captureEvent(ev)
		s.loads.captureEvent(ev)
	})

	// the first Run starts the Chrome process
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: start chrome: %w", crawler.ErrBrowserUnavailable, err)
	}
	b.logger.Debug("chrome session started")
	return s, nil
}

// session is one Chrome tab reused for every page of a crawl.
type session struct {
	browser     *Browser
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	meta        *responseMeta
	loads       *loadTracker

	closeOnce sync.Once
	closeErr  error
}

// navigate loads url in the tab and reports the document status. Errors are
// wrapped with crawler.ErrNavigation.
func (s *session) navigate(ctx context.Context, url string) (int, string, error) {
	cfg := s.browser.cfg
	if !s.browser.robots.Allowed(ctx, url) {
		return 0, "", fmt.Errorf("%w: %s disallowed by robots.txt", crawler.ErrNavigation, url)
	}
	if err := s.browser.limiter.Wait(ctx, url); err != nil {
		return 0, "", fmt.Errorf("%w: %w", crawler.ErrNavigation, err)
	}

	navCtx, cancel := context.WithTimeout(s.tabCtx, cfg.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	s.meta.reset()
	var finalURL string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(cfg.SettleDelay),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		return 0, "", fmt.Errorf("%w: navigate %s: %w", crawler.ErrNavigation, url, err)
	}
	status, resolved := s.meta.snapshot(url, finalURL)
	return status, resolved, nil
}

// Fetch renders url and extracts font-family values and outgoing links.
func (s *session) Fetch(ctx context.Context, url string) (crawler.PageResult, error) {
	status, finalURL, err := s.navigate(ctx, url)
	if err != nil {
		return crawler.PageResult{}, err
	}
	result := crawler.PageResult{URL: finalURL, Status: status}
	if status >= 400 {
		return result, nil
	}

	evalCtx, cancel := context.WithTimeout(s.tabCtx, s.browser.cfg.NavigationTimeout)
	defer cancel()
	var fonts, links []string
	if err := chromedp.Run(evalCtx, chromedp.Evaluate(fontScript, &fonts)); err != nil {
		return crawler.PageResult{}, fmt.Errorf("evaluate font script: %w", err)
	}
	if err := chromedp.Run(evalCtx, chromedp.Evaluate(linkScript, &links)); err != nil {
		return crawler.PageResult{}, fmt.Errorf("evaluate link script: %w", err)
	}
	result.RawFontValues = fonts
	result.OutgoingLinks = filterLinks(links)

	s.browser.logger.Debug("page rendered",
		zap.String("url", url),
		zap.Int("status", status),
		zap.Int("font_values", len(fonts)),
		zap.Int("links", len(result.OutgoingLinks)),
	)
	return result, nil
}

// OpenListing navigates to a listing page for discovery.
func (s *session) OpenListing(ctx context.Context, url string) (crawler.ListingPage, error) {
	status, _, err := s.navigate(ctx, url)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("listing %s returned status %d", url, status)
	}
	return &listingPage{session: s}, nil
}

// Close shuts Chrome down. It is safe to call more than once.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.tabCtx); err != nil {
			s.closeErr = fmt.Errorf("close chrome: %w", err)
		}
		s.tabCancel()
		s.allocCancel()
	})
	return s.closeErr
}
