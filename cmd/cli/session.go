package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bbk-press-crawler/internal/app"
	"bbk-press-crawler/internal/config"
	"bbk-press-crawler/internal/crawler"
	"bbk-press-crawler/internal/ioformats"
	"bbk-press-crawler/internal/models"
	"bbk-press-crawler/internal/report"
	"bbk-press-crawler/internal/store"
	"bbk-press-crawler/pkg/logger"
)

var errInvalidRange = errors.New("start date is after end date")

// session holds what every crawling command needs: the effective configuration, a
// logger teed into the daily run log and, when enabled, the archive.
type session struct {
	cfg     *config.Config
	log     *slog.Logger
	runLog  *os.File
	archive *store.Archive
}

// addOutputFlags registers the flags shared by crawl and retry.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("data-dir", "", "Directory for JSON reports (default from config, \"data\")")
	cmd.Flags().Bool("archive", false, "Also record the run in the SQLite archive")
	cmd.Flags().String("summary", "", "Write a Markdown run summary to this file (\"-\" for stdout)")
	cmd.Flags().String("ndjson", "", "Write the retrieved documents as NDJSON to this file")
}

func openSession(cmd *cobra.Command) (*session, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, os.Getenv)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("data-dir") {
		if cfg.DataDir, err = cmd.Flags().GetString("data-dir"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("archive") {
		if cfg.Archive, err = cmd.Flags().GetBool("archive"); err != nil {
			return nil, err
		}
	}
	if cfg.Verbose, err = cmd.Flags().GetBool("verbose"); err != nil {
		return nil, err
	}
	if cfg.LogJSON, err = cmd.Flags().GetBool("log-json"); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	runLog, err := logger.OpenRunLog(cfg.LogDir, time.Now())
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg:    cfg,
		runLog: runLog,
		log: logger.New(io.MultiWriter(cmd.ErrOrStderr(), runLog),
			logger.Options{Verbose: cfg.Verbose, JSON: cfg.LogJSON}),
	}

	if cfg.Archive {
		a, err := store.Open(cfg.ArchiveDir)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.archive = a
	}
	return s, nil
}

// openArchive returns the session archive, opening it on demand for read access.
func (s *session) openArchive() (*store.Archive, error) {
	if s.archive == nil {
		a, err := store.Open(s.cfg.ArchiveDir)
		if err != nil {
			return nil, err
		}
		s.archive = a
	}
	return s.archive, nil
}

func (s *session) engine() (*app.Engine, error) {
	var extra []crawler.Sink
	if s.cfg.Archive && s.archive != nil {
		extra = append(extra, s.archive)
	}
	return app.NewEngine(s.cfg, s.log, extra...)
}

func (s *session) Close() {
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			s.log.Warn("close archive", "error", err)
		}
	}
	if s.runLog != nil {
		_ = s.runLog.Close()
	}
}

// finish prints the run counts and writes the optional summary and NDJSON outputs.
func finish(cmd *cobra.Command, eng *app.Engine, bundle *models.ResultBundle) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Successfully retrieved %d documents.\n", len(bundle.Successes))
	fmt.Fprintf(out, "Failed to retrieve %d documents.\n", len(bundle.Errors))
	if p := eng.ReportPath(); p != "" {
		fmt.Fprintf(out, "Report written to %s\n", p)
	}

	if p, _ := cmd.Flags().GetString("summary"); p != "" {
		if err := writeTo(out, p, func(w io.Writer) error {
			return report.WriteMarkdown(w, report.Summary{
				Bundle:   bundle,
				Stats:    eng.Tally.Snapshot(),
				Location: eng.ReportPath(),
			})
		}); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	if p, _ := cmd.Flags().GetString("ndjson"); p != "" {
		if err := writeTo(out, p, func(w io.Writer) error {
			return ioformats.WriteNDJSON(w, bundle.Successes)
		}); err != nil {
			return fmt.Errorf("write ndjson: %w", err)
		}
	}
	return nil
}

// writeTo runs fn against stdout for "-" and against a created file otherwise.
func writeTo(stdout io.Writer, path string, fn func(io.Writer) error) error {
	if path == "-" {
		return fn(stdout)
	}
	f, err := os.Create(path) //nolint:gosec // user supplied path
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseDate(flag, v string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: want YYYY-MM-DD, got %q", flag, v)
	}
	return t, nil
}
