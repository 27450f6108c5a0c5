package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bbkcrawl",
		Short: "Crawl Bundesbank speeches, interviews and press releases",
		Long: `bbkcrawl walks the paginated press listings of the Deutsche Bundesbank for a
date range, downloads every linked document and writes the extracted title, author,
text and URL of each one, plus every URL that could not be fetched, to a JSON report.

Settings come from built-in defaults, an optional YAML or TOML config file
(./.bbkcrawl.yaml or $XDG_CONFIG_HOME/bbkcrawl/config.{yaml,toml}), the
BBKCRAWL_* environment variables and finally command line flags.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Config file (YAML or TOML)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().Bool("log-json", false, "Log as JSON instead of text")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewRetryCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command until it returns or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
