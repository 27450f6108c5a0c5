// Package main runs the crawler behind a small JSON HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"bbk-press-crawler/internal/config"
	"bbk-press-crawler/internal/store"
	"bbk-press-crawler/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newServeCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bbkcrawl-server",
		Short: "Serve the Bundesbank press crawler over HTTP",
		Long: `bbkcrawl-server exposes the crawler as a JSON API:

  GET  /health     liveness
  POST /crawl      run a crawl for {"start_date","end_date","content_types"}
  POST /document   fetch and extract one document {"url"}
  GET  /runs       list archived runs (requires archive: true)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	cmd.Flags().StringP("config", "c", "", "Config file (YAML or TOML)")
	cmd.Flags().String("addr", "", "Listen address (default from config, \":8080\")")
	cmd.Flags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.Flags().Bool("log-json", false, "Log as JSON instead of text")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, os.Getenv)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.ServerAddr = v
	}
	cfg.Verbose, _ = cmd.Flags().GetBool("verbose")
	cfg.LogJSON, _ = cmd.Flags().GetBool("log-json")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log := logger.New(cmd.ErrOrStderr(), logger.Options{Verbose: cfg.Verbose, JSON: cfg.LogJSON})

	var archive *store.Archive
	if cfg.Archive {
		if archive, err = store.Open(cfg.ArchiveDir); err != nil {
			return err
		}
		defer archive.Close()
	}

	s, err := newServer(cfg, log, archive)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
