package headless

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// navigationGrace is how long NextPage watches for a click to start loading a
// new document before treating the pagination as in-page.
const navigationGrace = 250 * time.Millisecond

// listingPage drives a paginated listing in the session's tab.
type listingPage struct {
	session *session
}

// PreviewLinks returns the hrefs of every element matching the preview selector.
func (l *listingPage) PreviewLinks(ctx context.Context) ([]string, error) {
	runCtx, cancel := l.runContext(ctx)
	defer cancel()
	var links []string
	script := previewScript(l.session.browser.cfg.PreviewSelector)
	err := chromedp.Run(runCtx, chromedp.Evaluate(script, &links))
	if err != nil && runCtx.Err() == nil {
		// A pagination click can replace the document between the click and
		// this call; wait for the new one and try once more.
		l.session.browser.logger.Debug("preview evaluation failed, retrying after document load", zap.Error(err))
		err = chromedp.Run(runCtx,
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Evaluate(script, &links),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("collect preview links: %w", err)
	}
	return filterLinks(links), nil
}

// NextPage clicks the first node matching the next-page XPath. When the click
// loads a new document it waits for that document's load event and body;
// otherwise it waits the settle delay for in-page loading. It reports false
// when the listing has no such control.
func (l *listingPage) NextPage(ctx context.Context) (bool, error) {
	runCtx, cancel := l.runContext(ctx)
	defer cancel()
	cfg := l.session.browser.cfg

	var nodes []*cdp.Node
	if err := chromedp.Run(runCtx, chromedp.Nodes(cfg.NextXPath, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
		return false, fmt.Errorf("find next control: %w", err)
	}
	if len(nodes) == 0 {
		return false, nil
	}
	before, _ := l.session.loads.snapshot()
	if err := chromedp.Run(runCtx, chromedp.MouseClickNode(nodes[0])); err != nil {
		return false, fmt.Errorf("click next control: %w", err)
	}
	navigated, err := l.session.loads.waitAfter(runCtx, before, max(cfg.SettleDelay, navigationGrace))
	if err != nil {
		return false, fmt.Errorf("wait for next listing page: %w", err)
	}
	if err := chromedp.Run(runCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return false, fmt.Errorf("wait for next listing page: %w", err)
	}
	if navigated {
		if err := chromedp.Run(runCtx, chromedp.Sleep(cfg.SettleDelay)); err != nil {
			return false, fmt.Errorf("settle next listing page: %w", err)
		}
	}
	l.session.browser.logger.Debug("listing advanced",
		zap.String("xpath", cfg.NextXPath),
		zap.Bool("navigated", navigated),
	)
	return true, nil
}

func (l *listingPage) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(l.session.tabCtx, l.session.browser.cfg.NavigationTimeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
