package crawler

import (
	"fmt"
	"time"
)

// Strategy selects how the engine walks the link graph rooted at the start URL.
type Strategy string

// Supported crawl strategies.
const (
	StrategyNone            Strategy = "none"
	StrategyBreadthFirst    Strategy = "breadth-first"
	StrategyDepthFirst      Strategy = "depth-first"
	StrategyDiscoverySeeded Strategy = "discover"
)

// ParseStrategy maps a textual strategy name onto a Strategy. The empty string
// and "false" select StrategyNone.
func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(raw) {
	case "", "false", StrategyNone:
		return StrategyNone, nil
	case StrategyBreadthFirst, StrategyDepthFirst, StrategyDiscoverySeeded:
		return Strategy(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, raw)
	}
}

// recursive reports whether the strategy follows outgoing links.
func (s Strategy) recursive() bool {
	return s == StrategyBreadthFirst || s == StrategyDepthFirst
}

// DefaultPageLimit applies when a request does not specify a page limit.
const DefaultPageLimit = 1

// Request is the immutable input of one crawl. ID is optional and only used
// to tag progress events.
type Request struct {
	ID        string   `json:"-"`
	StartURL  string   `json:"start_url"`
	Strategy  Strategy `json:"strategy"`
	PageLimit int      `json:"page_limit"`
}

// Entry is a URL waiting in a Frontier together with its discovery depth.
type Entry struct {
	URL   string
	Depth int
}

// PageResult is what the Page Fetch Port reports for one navigated page.
type PageResult struct {
	URL           string
	Status        int
	RawFontValues []string
	OutgoingLinks []string
}

// Outcome is the ledger marker recorded for a dispatched URL.
type Outcome string

// Ledger outcomes.
const (
	OutcomePending Outcome = "pending"
	OutcomeOK      Outcome = "visited-ok"
	OutcomeFailed  Outcome = "visited-failed"
)

// PageOutcome describes how a single dispatched URL ended.
type PageOutcome struct {
	URL     string  `json:"url"`
	Outcome Outcome `json:"outcome"`
	Status  int     `json:"status,omitempty"`
	Depth   int     `json:"depth"`
	Error   string  `json:"error,omitempty"`
}

// Result aggregates everything a crawl produced.
type Result struct {
	Fonts        []string      `json:"fonts"`
	PagesVisited int           `json:"pages_visited"`
	PagesFailed  int           `json:"pages_failed"`
	Pages        []PageOutcome `json:"pages"`
}

// CrawlStatus is the terminal state persisted for a crawl.
type CrawlStatus string

// Crawl status values persisted in the crawl store.
const (
	CrawlStatusSucceeded CrawlStatus = "succeeded"
	CrawlStatusFailed    CrawlStatus = "failed"
)

// CrawlRecord is the persisted summary of one crawl invocation.
type CrawlRecord struct {
	ID           string      `json:"id"`
	Request      Request     `json:"request"`
	Status       CrawlStatus `json:"status"`
	Reason       string      `json:"reason,omitempty"`
	Fonts        []string    `json:"fonts"`
	PagesVisited int         `json:"pages_visited"`
	PagesFailed  int         `json:"pages_failed"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   time.Time   `json:"finished_at"`
}
