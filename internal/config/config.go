// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Fetcher names accepted by crawler.fetcher.
const (
	FetcherHeadless = "headless"
	FetcherStatic   = "static"
	// FetcherDisabled answers every crawl with a browser-unavailable error.
	FetcherDisabled = "disabled"
)

// Storage backends accepted by storage.backend.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageGCS      = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Static    StaticConfig    `mapstructure:"static"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs traversal and politeness.
type CrawlerConfig struct {
	Fetcher            string        `mapstructure:"fetcher"`
	MaxConcurrent      int           `mapstructure:"max_concurrent_crawls"`
	MaxDepth           int           `mapstructure:"max_depth"`
	SameHostOnly       bool          `mapstructure:"same_host_only"`
	CanonicalizeURLs   bool          `mapstructure:"canonicalize_urls"`
	UserAgent          string        `mapstructure:"user_agent"`
	RateLimitRPS       float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
	RateLimitIdleTTL   time.Duration `mapstructure:"rate_limit_idle_ttl"`
	RespectRobots      bool          `mapstructure:"respect_robots"`
	RobotsTimeout      time.Duration `mapstructure:"robots_timeout"`
	SideEffectsTimeout time.Duration `mapstructure:"side_effects_timeout"`
}

// HeadlessConfig configures the Chrome-backed fetcher.
type HeadlessConfig struct {
	ExecPath    string        `mapstructure:"exec_path"`
	NoSandbox   bool          `mapstructure:"no_sandbox"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// StaticConfig configures the plain HTTP fetcher.
type StaticConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// DiscoveryConfig configures the listing-page seeder.
type DiscoveryConfig struct {
	ListingURL      string `mapstructure:"listing_url"`
	PreviewSelector string `mapstructure:"preview_selector"`
	NextXPath       string `mapstructure:"next_xpath"`
	NextText        string `mapstructure:"next_text"`
	MaxRounds       int    `mapstructure:"max_rounds"`
}

// StorageConfig selects where crawl records are kept.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
	SinkTimeout    time.Duration `mapstructure:"sink_timeout"`
	LifecycleWait  time.Duration `mapstructure:"lifecycle_wait"`
	LogEvents      bool          `mapstructure:"log_events"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment. Environment variables use the
// FONTCRAWLER_ prefix with dots replaced by underscores; PORT also sets
// server.port.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FONTCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "FONTCRAWLER_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind port env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "10m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("crawler.fetcher", FetcherHeadless)
	v.SetDefault("crawler.max_concurrent_crawls", 4)
	v.SetDefault("crawler.max_depth", 0)
	v.SetDefault("crawler.same_host_only", false)
	v.SetDefault("crawler.canonicalize_urls", false)
	v.SetDefault("crawler.user_agent", "font-crawler/0.1")
	v.SetDefault("crawler.rate_limit_rps", 2.0)
	v.SetDefault("crawler.rate_limit_burst", 2)
	v.SetDefault("crawler.rate_limit_idle_ttl", "10m")
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("crawler.robots_timeout", "5s")
	v.SetDefault("crawler.side_effects_timeout", "10s")
	v.SetDefault("headless.no_sandbox", false)
	v.SetDefault("headless.nav_timeout", "45s")
	v.SetDefault("headless.settle_delay", "500ms")
	v.SetDefault("static.timeout", "20s")
	v.SetDefault("discovery.listing_url", "https://webflow.com/discover/popular#recent")
	v.SetDefault("discovery.preview_selector", ".preview")
	v.SetDefault("discovery.next_xpath", "//a[contains(text(), 'Next >')]")
	v.SetDefault("discovery.next_text", "Next >")
	v.SetDefault("discovery.max_rounds", 50)
	v.SetDefault("storage.backend", StorageMemory)
	v.SetDefault("storage.prefix", "crawls")
	v.SetDefault("db.table", "crawls")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.max_batch_events", 1000)
	v.SetDefault("progress.max_batch_wait", "500ms")
	v.SetDefault("progress.sink_timeout", "10s")
	v.SetDefault("progress.lifecycle_wait", "100ms")
	v.SetDefault("progress.log_events", true)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Crawler.Fetcher {
	case FetcherHeadless, FetcherStatic, FetcherDisabled:
	default:
		return fmt.Errorf("crawler.fetcher must be %q, %q or %q, got %q",
			FetcherHeadless, FetcherStatic, FetcherDisabled, c.Crawler.Fetcher)
	}
	if c.Crawler.MaxConcurrent <= 0 {
		return fmt.Errorf("crawler.max_concurrent_crawls must be > 0")
	}
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.Crawler.RateLimitRPS < 0 {
		return fmt.Errorf("crawler.rate_limit_rps must be >= 0")
	}
	if c.Discovery.MaxRounds <= 0 {
		return fmt.Errorf("discovery.max_rounds must be > 0")
	}
	if u, err := url.Parse(c.Discovery.ListingURL); err != nil || u.Host == "" {
		return fmt.Errorf("discovery.listing_url must be an absolute URL")
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required when storage.backend is postgres")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required when storage.backend is gcs")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub.topic_name is set")
	}
	return nil
}
