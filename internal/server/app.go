// Package server builds the application's dependencies and runs the HTTP
// server until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/font-crawler/internal/api"
	"github.com/JakeFAU/font-crawler/internal/clock/system"
	"github.com/JakeFAU/font-crawler/internal/config"
	"github.com/JakeFAU/font-crawler/internal/crawler"
	"github.com/JakeFAU/font-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/font-crawler/internal/fetcher/static"
	"github.com/JakeFAU/font-crawler/internal/id/uuid"
	"github.com/JakeFAU/font-crawler/internal/logging"
	"github.com/JakeFAU/font-crawler/internal/metrics"
	"github.com/JakeFAU/font-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/font-crawler/internal/policy/robots"
	"github.com/JakeFAU/font-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/font-crawler/internal/progress/sinks"
	gcppublisher "github.com/JakeFAU/font-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/font-crawler/internal/scrape"
	gcsstore "github.com/JakeFAU/font-crawler/internal/storage/gcs"
	memorystore "github.com/JakeFAU/font-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/font-crawler/internal/storage/postgres"
)

// App contains the application's dependencies.
type App struct {
	cfg         config.Config
	logger      *zap.Logger
	ownsLogger  bool
	apiServer   *api.Server
	service     *scrape.Service
	progressHub *progress.Hub
	publisher   *gcppublisher.Publisher
	pgStore     *pgstore.CrawlStore
	gcsStore    *gcsstore.CrawlStore
}

type buildOptions struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
}

// Option customizes Build.
type Option func(*buildOptions)

// WithLogger supplies a logger instead of building one from config.
func WithLogger(logger *zap.Logger) Option {
	return func(o *buildOptions) { o.logger = logger }
}

// WithRegisterer registers the progress collectors on reg instead of the
// default Prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *buildOptions) { o.registerer = reg }
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := buildOptions{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{cfg: cfg, logger: o.logger}
	if app.logger == nil {
		logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		app.logger = logger
		app.ownsLogger = true
		zap.ReplaceGlobals(logger)
	}
	metrics.Init()

	app.logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("fetcher", cfg.Crawler.Fetcher),
		zap.String("storage", cfg.Storage.Backend),
	)

	if err := app.setupProgress(ctx, o.registerer); err != nil {
		app.closeQuietly()
		return nil, err
	}
	store, err := app.setupStore(ctx)
	if err != nil {
		app.closeQuietly()
		return nil, err
	}
	publisher, err := app.setupPublisher(ctx)
	if err != nil {
		app.closeQuietly()
		return nil, err
	}

	engine := crawler.NewEngine(
		app.setupBrowser(),
		crawler.NewSeeder(crawler.SeederConfig{MaxRounds: cfg.Discovery.MaxRounds}, app.logger.Named("seeder")),
		crawler.EngineConfig{
			MaxDepth:         cfg.Crawler.MaxDepth,
			SameHostOnly:     cfg.Crawler.SameHostOnly,
			CanonicalizeURLs: cfg.Crawler.CanonicalizeURLs,
		},
		app.emitter(),
		app.logger.Named("engine"),
	)
	app.service = scrape.New(
		engine,
		store,
		publisher,
		app.emitter(),
		uuid.New(),
		system.New(),
		scrape.Config{
			MaxConcurrent:     int64(cfg.Crawler.MaxConcurrent),
			Topic:             cfg.PubSub.TopicName,
			SideEffectTimeout: cfg.Crawler.SideEffectsTimeout,
		},
		app.logger.Named("scrape"),
	)
	app.apiServer = api.NewServer(app.service, cfg, app.logger.Named("api"))
	return app, nil
}

// Service exposes the scrape service for one-shot crawls.
func (a *App) Service() *scrape.Service {
	return a.service
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run listens on the configured port and serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is done, then drains in-flight requests
// within server.shutdown_timeout.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}
	a.logger.Info("shutdown initiated")
	a.apiServer.SetDraining()

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if err := a.Close(shutdownCtx); err != nil {
		return errors.Join(serveErr, err)
	}
	return serveErr
}

// Close releases infrastructure in reverse dependency order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close progress hub: %w", err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.gcsStore != nil {
		if err := a.gcsStore.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.ownsLogger {
		_ = a.logger.Sync()
	}
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeQuietly() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		a.logger.Warn("cleanup after failed build", zap.Error(err))
	}
}

func (a *App) emitter() progress.Emitter {
	if a.progressHub == nil {
		return nil
	}
	return a.progressHub
}

func (a *App) setupProgress(ctx context.Context, reg prometheus.Registerer) error {
	pcfg := a.cfg.Progress
	if !pcfg.Enabled {
		a.logger.Info("progress tracking disabled")
		return nil
	}
	promSink, err := progresssinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("progress prometheus sink init failed: %w", err)
	}
	sinkList := []progress.Sink{promSink}
	if pcfg.LogEvents {
		sinkList = append(sinkList, progresssinks.NewLogSink(a.logger.Named("progress_log")))
	}
	hubCfg := progress.Config{
		BufferSize:     pcfg.BufferSize,
		MaxBatchEvents: pcfg.MaxBatchEvents,
		MaxBatchWait:   pcfg.MaxBatchWait,
		SinkTimeout:    pcfg.SinkTimeout,
		LifecycleWait:  pcfg.LifecycleWait,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         a.logger.Named("progress_hub"),
	}
	a.progressHub = progress.NewHub(hubCfg, sinkList...)
	a.logger.Info("progress hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return nil
}

func (a *App) setupStore(ctx context.Context) (crawler.CrawlStore, error) {
	switch a.cfg.Storage.Backend {
	case config.StoragePostgres:
		store, err := pgstore.NewCrawlStore(ctx, pgstore.Config{
			DSN:             a.cfg.DB.DSN,
			Table:           a.cfg.DB.Table,
			MaxConns:        a.cfg.DB.MaxConns,
			MinConns:        a.cfg.DB.MinConns,
			MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("crawl store init failed: %w", err)
		}
		a.pgStore = store
		if a.cfg.DB.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("crawl store migrate failed: %w", err)
			}
		}
		a.logger.Info("using postgres crawl store", zap.String("table", a.cfg.DB.Table))
		return store, nil
	case config.StorageGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		store, err := gcsstore.New(client, gcsstore.Config{Bucket: a.cfg.Storage.GCSBucket, Prefix: a.cfg.Storage.Prefix})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("gcs crawl store init failed: %w", err)
		}
		a.gcsStore = store
		a.logger.Info("using GCS crawl store", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return store, nil
	default:
		a.logger.Info("using in-memory crawl store")
		return memorystore.NewCrawlStore(), nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (crawler.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Info("no Pub/Sub topic configured, crawl completions are not published")
		return nil, nil
	}
	pub, err := gcppublisher.Dial(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.publisher = pub
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return pub, nil
}

func (a *App) setupBrowser() crawler.Browser {
	limiter := ratelimit.New(ratelimit.Config{
		RPS:     a.cfg.Crawler.RateLimitRPS,
		Burst:   a.cfg.Crawler.RateLimitBurst,
		IdleTTL: a.cfg.Crawler.RateLimitIdleTTL,
	})
	policy := robots.New(robots.Config{
		Respect:   a.cfg.Crawler.RespectRobots,
		UserAgent: a.cfg.Crawler.UserAgent,
		Timeout:   a.cfg.Crawler.RobotsTimeout,
	}, a.logger.Named("robots"))

	switch a.cfg.Crawler.Fetcher {
	case config.FetcherDisabled:
		a.logger.Warn("fetcher disabled, every crawl will fail")
		return headless.NewNoop()
	case config.FetcherStatic:
		a.logger.Info("using static fetcher", zap.String("user_agent", a.cfg.Crawler.UserAgent))
		return static.New(static.Config{
			UserAgent:       a.cfg.Crawler.UserAgent,
			Timeout:         a.cfg.Static.Timeout,
			PreviewSelector: a.cfg.Discovery.PreviewSelector,
			NextText:        a.cfg.Discovery.NextText,
		}, limiter, policy, a.logger.Named("static"))
	}
	a.logger.Info("using headless fetcher",
		zap.String("user_agent", a.cfg.Crawler.UserAgent),
		zap.Duration("nav_timeout", a.cfg.Headless.NavTimeout),
	)
	return headless.NewChromedp(headless.Config{
		ExecPath:          a.cfg.Headless.ExecPath,
		UserAgent:         a.cfg.Crawler.UserAgent,
		NoSandbox:         a.cfg.Headless.NoSandbox,
		NavigationTimeout: a.cfg.Headless.NavTimeout,
		SettleDelay:       a.cfg.Headless.SettleDelay,
		PreviewSelector:   a.cfg.Discovery.PreviewSelector,
		NextXPath:         a.cfg.Discovery.NextXPath,
	}, limiter, policy, a.logger.Named("headless"))
}
