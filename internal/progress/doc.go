// Package progress provides the event primitives, non-blocking hub, and emitter
// interface that the crawl engine and scrape service use to report crawl
// progress. Events are batched on a background goroutine and fanned out to
// pluggable sinks such as structured logs or Prometheus metrics.
package progress
