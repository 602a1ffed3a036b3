package api

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/font-crawler/internal/config"
	"github.com/JakeFAU/font-crawler/internal/crawler"
	"github.com/JakeFAU/font-crawler/internal/metrics"
)

// Scraper runs crawls and reads stored results.
type Scraper interface {
	Scrape(ctx context.Context, req crawler.Request) (crawler.CrawlRecord, error)
	Get(ctx context.Context, id string) (crawler.CrawlRecord, error)
}

// Server wires HTTP handlers to the scrape service.
type Server struct {
	router   chi.Router
	scraper  Scraper
	cfg      config.Config
	logger   *zap.Logger
	draining atomic.Bool
}

// NewServer constructs a Server with middleware and routes.
func NewServer(scraper Scraper, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		scraper: scraper,
		cfg:     cfg,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(cfg.Server.RequestTimeout))
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/parseFonts", s.parseFonts)
		r.Post("/webflowDiscover", s.webflowDiscover)
		r.Get("/v1/crawls/{crawl_id}", s.getCrawl)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetDraining flips /readyz to 503 so load balancers stop routing new crawls
// while the process shuts down.
func (s *Server) SetDraining() {
	s.draining.Store(true)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
