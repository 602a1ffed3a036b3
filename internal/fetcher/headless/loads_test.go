package headless

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/require"
)

func TestLoadTrackerInPageClick(t *testing.T) {
	t.Parallel()

	tr := newLoadTracker()
	tr.captureEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{ID: "main"}})
	before, _ := tr.snapshot()

	// An iframe loading is not a new listing document.
	tr.captureEvent(&page.EventFrameStartedLoading{FrameID: "ad-frame"})

	navigated, err := tr.waitAfter(context.Background(), before, 20*time.Millisecond)
	require.NoError(t, err)
	require.False(t, navigated)
}

func TestLoadTrackerWaitsForNavigationToLoad(t *testing.T) {
	t.Parallel()

	tr := newLoadTracker()
	tr.captureEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{ID: "main"}})
	tr.captureEvent(&page.EventLoadEventFired{})
	before, _ := tr.snapshot()

	go func() {
		tr.captureEvent(&page.EventFrameStartedLoading{FrameID: "main"})
		time.Sleep(50 * time.Millisecond)
		tr.captureEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{ID: "main"}})
		tr.captureEvent(&page.EventLoadEventFired{})
	}()

	start := time.Now()
	navigated, err := tr.waitAfter(context.Background(), before, time.Second)
	require.NoError(t, err)
	require.True(t, navigated)
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestLoadTrackerHonorsContext(t *testing.T) {
	t.Parallel()

	tr := newLoadTracker()
	tr.captureEvent(&page.EventFrameNavigated{Frame: &cdp.Frame{ID: "main"}})
	before, _ := tr.snapshot()
	tr.captureEvent(&page.EventFrameStartedLoading{FrameID: "main"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	navigated, err := tr.waitAfter(ctx, before, time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, navigated)
}
