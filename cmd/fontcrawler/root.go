package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fontcrawler",
		Short: "Collect the font families used by web pages",
		Long: `fontcrawler crawls a page, and optionally the pages it links to, and
reports the font families its text is rendered with.

Configuration is read from an optional file (--config) and from environment
variables prefixed with FONTCRAWLER_, e.g. FONTCRAWLER_CRAWLER_FETCHER=static.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "path to a YAML/JSON/TOML config file")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewCrawlCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
