package crawler

import "errors"

var (
	// ErrBrowserUnavailable means the browser session could not be started.
	ErrBrowserUnavailable = errors.New("browser unavailable")
	// ErrUnknownStrategy is returned for strategies outside the supported set.
	ErrUnknownStrategy = errors.New("unknown crawl strategy")
	// ErrInvalidRequest flags a request that cannot be crawled.
	ErrInvalidRequest = errors.New("invalid crawl request")
	// ErrNavigation marks a recoverable per-page navigation failure
	// (network, DNS, timeout). Fetchers wrap such errors with it.
	ErrNavigation = errors.New("navigation failed")
	// ErrDiscovery wraps any failure while seeding from a listing page.
	ErrDiscovery = errors.New("discovery failed")
)

// ErrCrawlNotFound is returned by crawl stores for unknown IDs.
var ErrCrawlNotFound = errors.New("crawl not found")
