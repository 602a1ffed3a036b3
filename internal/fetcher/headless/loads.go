package headless

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
)

// loadCounts is a snapshot of main-frame document loads in a tab.
type loadCounts struct {
	started uint64
	fired   uint64
}

// loadTracker counts main-frame loads started and finished in a tab so a
// pagination click can tell whether it replaced the document.
type loadTracker struct {
	mu        sync.Mutex
	mainFrame cdp.FrameID
	counts    loadCounts
	changed   chan struct{}
}

func newLoadTracker() *loadTracker {
	return &loadTracker{changed: make(chan struct{})}
}

func (t *loadTracker) captureEvent(ev any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch e := ev.(type) {
	case *page.EventFrameNavigated:
		if e.Frame != nil && e.Frame.ParentID == "" {
			t.mainFrame = e.Frame.ID
		}
		return
	case *page.EventFrameStartedLoading:
		if t.mainFrame == "" || e.FrameID != t.mainFrame {
			return
		}
		t.counts.started++
	case *page.EventLoadEventFired:
		t.counts.fired++
	default:
		return
	}
	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *loadTracker) snapshot() (loadCounts, <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts, t.changed
}

// waitAfter waits up to grace for a load to start after before was taken.
// When one starts it then waits, bounded by ctx, for the load event. It
// reports whether the document was replaced.
func (t *loadTracker) waitAfter(ctx context.Context, before loadCounts, grace time.Duration) (bool, error) {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	for {
		now, changed := t.snapshot()
		if now.started > before.started {
			break
		}
		select {
		case <-changed:
		case <-timer.C:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	for {
		now, changed := t.snapshot()
		if now.fired > before.fired {
			return true, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}
