package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bbk-press-crawler/internal/config"
	"bbk-press-crawler/internal/models"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the press listings for a date range",
		Long: `Crawl walks the listings of every configured language and content type for the
given date range, downloads every linked document and writes a JSON report named
{from}_{to}_{run date}.json into the data directory.

Examples:
  # Everything published in November 2023
  bbkcrawl crawl --from 2023-11-01 --to 2023-11-30

  # Only speeches and interviews of a single day, with a Markdown summary
  bbkcrawl crawl --from 2023-11-29 --types Speeches,Interviews --summary -`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().String("from", "", "First publication date, YYYY-MM-DD (required)")
	cmd.Flags().String("to", "", "Last publication date, YYYY-MM-DD (default: --from)")
	cmd.Flags().StringSlice("types", nil, "Content types: Speeches, Interviews, Press-releases (default from config: all)")
	addOutputFlags(cmd)
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	req, err := crawlRequestFromFlags(cmd)
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	types := req.ContentTypes()
	if len(types) == 0 {
		types = s.cfg.ContentTypes
	}
	req = models.NewCrawlRequest(req.StartDate(), req.EndDate(), types...)

	eng, err := s.engine()
	if err != nil {
		return err
	}
	s.log.Info("crawl started", "from", req.StartDate().Format(models.DateLayout),
		"to", req.EndDate().Format(models.DateLayout), "content_types", fmt.Sprint(req.ContentTypes()))

	bundle, err := eng.Orchestrator.Run(cmd.Context(), req)
	if err != nil {
		return err
	}
	return finish(cmd, eng, bundle)
}

// crawlRequestFromFlags reads --from, --to and --types. Content types are left empty
// when --types is not given so the configured default applies.
func crawlRequestFromFlags(cmd *cobra.Command) (models.CrawlRequest, error) {
	fromStr, err := cmd.Flags().GetString("from")
	if err != nil {
		return models.CrawlRequest{}, err
	}
	from, err := parseDate("from", fromStr)
	if err != nil {
		return models.CrawlRequest{}, err
	}
	to := from
	if toStr, _ := cmd.Flags().GetString("to"); toStr != "" {
		if to, err = parseDate("to", toStr); err != nil {
			return models.CrawlRequest{}, err
		}
	}
	if to.Before(from) {
		return models.CrawlRequest{}, fmt.Errorf("%w: %s > %s", errInvalidRange,
			from.Format(models.DateLayout), to.Format(models.DateLayout))
	}

	raw, err := cmd.Flags().GetStringSlice("types")
	if err != nil {
		return models.CrawlRequest{}, err
	}
	types, err := config.ParseContentTypes(raw)
	if err != nil {
		return models.CrawlRequest{}, err
	}
	return models.NewCrawlRequest(from, to, types...), nil
}
