package headless

import (
	"context"
	"fmt"

	"github.com/JakeFAU/font-crawler/internal/crawler"
)

// Noop is a crawler.Browser for deployments without Chrome. Open always
// fails with crawler.ErrBrowserUnavailable.
type Noop struct{}

// NewNoop creates a new Noop browser.
func NewNoop() *Noop {
	return &Noop{}
}

// Open implements crawler.Browser.
func (Noop) Open(context.Context) (crawler.Session, error) {
	return nil, fmt.Errorf("%w: headless browser not configured", crawler.ErrBrowserUnavailable)
}
