package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/font-crawler/internal/crawler"
)

const maxBodyBytes = 1 << 20

type parseFontsRequest struct {
	URL           *string         `json:"url"`
	CrawlRelative json.RawMessage `json:"crawlRelative"`
	PageLimit     *int            `json:"pageLimit"`
}

type discoverRequest struct {
	PageLimit *int `json:"pageLimit"`
}

func (s *Server) parseFonts(w http.ResponseWriter, r *http.Request) {
	var body parseFontsRequest
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	req, err := body.toRequest()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.runCrawl(w, r, req)
}

func (s *Server) webflowDiscover(w http.ResponseWriter, r *http.Request) {
	var body discoverRequest
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := pageLimit(body.PageLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.runCrawl(w, r, crawler.Request{
		StartURL:  s.cfg.Discovery.ListingURL,
		Strategy:  crawler.StrategyDiscoverySeeded,
		PageLimit: limit,
	})
}

func (s *Server) runCrawl(w http.ResponseWriter, r *http.Request, req crawler.Request) {
	record, err := s.scraper.Scrape(r.Context(), req)
	if record.ID != "" {
		w.Header().Set("X-Crawl-ID", record.ID)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FontsResult(record.Fonts))
}

// fail answers a crawl endpoint with ok=false. These endpoints report failures
// in the body with status 200.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn("crawl request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.Error(err),
	)
	writeJSON(w, http.StatusOK, FontsFailure(err))
}

func (s *Server) getCrawl(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "crawl_id")
	record, err := s.scraper.Get(r.Context(), id)
	if errors.Is(err, crawler.ErrCrawlNotFound) {
		writeError(w, http.StatusNotFound, "crawl not found")
		return
	}
	if err != nil {
		s.logger.Error("load crawl failed", zap.String("crawl_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load crawl")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func decodeBody(r *http.Request, dst any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", crawler.ErrInvalidRequest, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %w", crawler.ErrInvalidRequest, err)
	}
	return nil
}

func (b parseFontsRequest) toRequest() (crawler.Request, error) {
	if b.URL == nil || *b.URL == "" {
		return crawler.Request{}, fmt.Errorf("%w: url is required", crawler.ErrInvalidRequest)
	}
	strategy, err := parseCrawlRelative(b.CrawlRelative)
	if err != nil {
		return crawler.Request{}, err
	}
	limit, err := pageLimit(b.PageLimit)
	if err != nil {
		return crawler.Request{}, err
	}
	return crawler.Request{StartURL: *b.URL, Strategy: strategy, PageLimit: limit}, nil
}

// parseCrawlRelative accepts an absent value, null or false for a single page
// crawl, and "breadth-first" or "depth-first" for recursive crawls.
func parseCrawlRelative(raw json.RawMessage) (crawler.Strategy, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("false")) {
		return crawler.StrategyNone, nil
	}
	var name string
	if err := json.Unmarshal(trimmed, &name); err != nil {
		return "", fmt.Errorf("%w: crawlRelative %s", crawler.ErrUnknownStrategy, trimmed)
	}
	switch crawler.Strategy(name) {
	case crawler.StrategyBreadthFirst, crawler.StrategyDepthFirst:
		return crawler.Strategy(name), nil
	default:
		return "", fmt.Errorf("%w: %q", crawler.ErrUnknownStrategy, name)
	}
}

func pageLimit(v *int) (int, error) {
	if v == nil {
		return crawler.DefaultPageLimit, nil
	}
	if *v < 1 {
		return 0, fmt.Errorf("%w: pageLimit must be >= 1", crawler.ErrInvalidRequest)
	}
	return *v, nil
}
