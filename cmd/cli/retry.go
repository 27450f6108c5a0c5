package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bbk-press-crawler/internal/ioformats"
	"bbk-press-crawler/internal/models"
)

// NewRetryCmd creates the retry command.
func NewRetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry [file]",
		Short: "Fetch a list of document URLs again",
		Long: `Retry downloads an explicit list of document URLs without walking the listings
and writes a new report.

The list is read from a CSV file with a "url" column, an NDJSON file whose lines carry
"url" or "document_url", or a previous JSON report, in which case its failed URLs are
retried and its query dates are reused. With --run the failed URLs of an archived run
are retried instead.

Examples:
  bbkcrawl retry data/2023-11-01_2023-11-30_2023-12-01.json
  bbkcrawl retry --from 2023-11-01 --to 2023-11-30 urls.csv
  bbkcrawl retry --run 5f0c1f6e-0c55-4b8a-a1b4-0c1f1de5d6a1`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRetryCmd,
	}

	cmd.Flags().String("run", "", "Retry the failed URLs of this archived run ID")
	cmd.Flags().String("from", "", "Query start date recorded in the report (default: today)")
	cmd.Flags().String("to", "", "Query end date recorded in the report (default: --from)")
	addOutputFlags(cmd)

	return cmd
}

func runRetryCmd(cmd *cobra.Command, args []string) error {
	runID, err := cmd.Flags().GetString("run")
	if err != nil {
		return err
	}
	if (runID == "") == (len(args) == 0) {
		return errors.New("give either a file or --run")
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	var (
		urls       []string
		start, end string
	)
	if runID != "" {
		a, err := s.openArchive()
		if err != nil {
			return err
		}
		run, err := a.GetRun(cmd.Context(), runID)
		if err != nil {
			return err
		}
		if urls, err = a.FailedURLs(cmd.Context(), runID); err != nil {
			return err
		}
		start, end = run.QueryStartDate, run.QueryEndDate
	} else {
		path := args[0]
		if strings.EqualFold(filepath.Ext(path), ".json") {
			b, err := ioformats.ReadBundle(path)
			if err != nil {
				return err
			}
			start, end = b.Metadata.QueryStartDate, b.Metadata.QueryEndDate
		}
		if urls, err = ioformats.ReadURLs(path); err != nil && !errors.Is(err, ioformats.ErrEmptyInput) {
			return fmt.Errorf("read %s: %w", path, err)
		}
	}
	if len(urls) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to retry.")
		return nil
	}

	req, err := retryRequest(cmd, start, end)
	if err != nil {
		return err
	}
	eng, err := s.engine()
	if err != nil {
		return err
	}
	s.log.Info("retry started", "urls", len(urls))

	bundle, err := eng.Orchestrator.Retrieve(cmd.Context(), req, urls)
	if err != nil {
		return err
	}
	return finish(cmd, eng, bundle)
}

// retryRequest picks the query dates for the new report: flags first, then the dates of
// the source run, then today.
func retryRequest(cmd *cobra.Command, start, end string) (models.CrawlRequest, error) {
	if v, _ := cmd.Flags().GetString("from"); v != "" {
		start = v
	}
	if v, _ := cmd.Flags().GetString("to"); v != "" {
		end = v
	}
	if start == "" {
		start = time.Now().UTC().Format(models.DateLayout)
	}
	if end == "" {
		end = start
	}
	from, err := parseDate("from", start)
	if err != nil {
		return models.CrawlRequest{}, err
	}
	to, err := parseDate("to", end)
	if err != nil {
		return models.CrawlRequest{}, err
	}
	if to.Before(from) {
		return models.CrawlRequest{}, fmt.Errorf("%w: %s > %s", errInvalidRange, start, end)
	}
	return models.NewCrawlRequest(from, to), nil
}
