package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/font-crawler/internal/api"
	"github.com/JakeFAU/font-crawler/internal/config"
	"github.com/JakeFAU/font-crawler/internal/crawler"
	"github.com/JakeFAU/font-crawler/internal/server"
)

type crawlOptions struct {
	strategy  string
	pageLimit int
	fetcher   string
}

// NewCrawlCmd creates the one-shot crawl subcommand.
func NewCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl [url]",
		Short: "Crawl once and print the API response as JSON",
		Long: `Crawl a URL once and print {"ok":true,"fontFamilies":[...]} or
{"ok":false,"reason":"..."} to stdout. With --strategy discover the URL
defaults to discovery.listing_url.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, args, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.strategy, "strategy", "s", string(crawler.StrategyNone),
		"none, breadth-first, depth-first or discover")
	cmd.Flags().IntVarP(&opts.pageLimit, "page-limit", "n", crawler.DefaultPageLimit, "maximum pages to visit")
	cmd.Flags().StringVar(&opts.fetcher, "fetcher", "", "override crawler.fetcher (headless or static)")
	return cmd
}

func runCrawl(cmd *cobra.Command, args []string, opts *crawlOptions) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.fetcher != "" {
		cfg.Crawler.Fetcher = opts.fetcher
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}

	strategy, err := crawler.ParseStrategy(opts.strategy)
	if err != nil {
		return fmt.Errorf("parse strategy: %w", err)
	}
	var startURL string
	switch {
	case len(args) == 1:
		startURL = args[0]
	case strategy == crawler.StrategyDiscoverySeeded:
		startURL = cfg.Discovery.ListingURL
	default:
		return fmt.Errorf("a url is required unless --strategy is discover")
	}

	ctx := cmd.Context()
	app, err := server.Build(ctx, cfg, server.WithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer closeApp(ctx, app, app.Logger())

	record, crawlErr := app.Service().Scrape(ctx, crawler.Request{
		StartURL:  startURL,
		Strategy:  strategy,
		PageLimit: opts.pageLimit,
	})
	return writeResult(cmd.OutOrStdout(), record, crawlErr)
}

// closeApp releases the app's infrastructure. Errors are logged because the
// crawl result has already been written.
func closeApp(ctx context.Context, c interface{ Close(context.Context) error }, logger *zap.Logger) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := c.Close(closeCtx); err != nil {
		logger.Error("app shutdown failed", zap.Error(err))
	}
}

func writeResult(w io.Writer, record crawler.CrawlRecord, crawlErr error) error {
	resp := api.FontsResult(record.Fonts)
	if crawlErr != nil {
		resp = api.FontsFailure(crawlErr)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
