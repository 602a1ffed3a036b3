// Package api hosts the HTTP server, middleware, and handlers. Notable routes:
//   - POST /parseFonts crawls a URL and answers with its font families.
//   - POST /webflowDiscover crawls pages seeded from the discovery listing.
//   - GET /v1/crawls/{crawl_id} returns a stored crawl record.
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
package api
