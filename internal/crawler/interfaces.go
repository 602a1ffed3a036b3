package crawler

import (
	"context"
	"time"
)

// Browser starts page-fetching sessions. A session is acquired once per crawl.
type Browser interface {
	Open(ctx context.Context) (Session, error)
}

// Session is an open browser (or HTTP client) owned by a single crawl.
//
// Fetch must wrap navigation failures with ErrNavigation; any other error is
// treated as a contract violation and aborts the crawl.
type Session interface {
	Fetch(ctx context.Context, url string) (PageResult, error)
	OpenListing(ctx context.Context, url string) (ListingPage, error)
	Close() error
}

// ListingPage is a paginated directory page used by the discovery seeder.
type ListingPage interface {
	// PreviewLinks returns the absolute URLs of preview entries currently shown.
	PreviewLinks(ctx context.Context) ([]string, error)
	// NextPage activates the "next page" control. It returns false when the
	// page has no such control.
	NextPage(ctx context.Context) (bool, error)
}

// CrawlStore persists crawl summaries.
type CrawlStore interface {
	SaveCrawl(ctx context.Context, record CrawlRecord) error
	GetCrawl(ctx context.Context, id string) (CrawlRecord, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces crawl IDs.
type IDGenerator interface {
	NewID() (string, error)
}
