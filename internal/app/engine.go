// Package app assembles a crawl engine from a Config. Both the command line tool and the
// HTTP server build their runs through it.
package app

import (
	"context"
	"log/slog"
	"sync"

	"bbk-press-crawler/internal/config"
	"bbk-press-crawler/internal/crawler"
	"bbk-press-crawler/internal/ioformats"
	"bbk-press-crawler/internal/models"
	"bbk-press-crawler/internal/parser"
)

// Engine is a single-use set of collaborators for one run.
type Engine struct {
	Site         *crawler.Site
	Client       *crawler.HTTPClient
	Tally        *crawler.Tally
	Orchestrator *crawler.Orchestrator

	report *RecordingSink
}

// NewEngine wires the fetcher, extractor and sinks. The JSON file sink into cfg.DataDir is
// always first; extra sinks such as the archive follow it.
func NewEngine(cfg *config.Config, log *slog.Logger, extra ...crawler.Sink) (*Engine, error) {
	site, err := crawler.NewSite(cfg.Origin, cfg.UserAgent, cfg.AcceptLanguage)
	if err != nil {
		return nil, err
	}
	tally := crawler.NewTally()
	client := crawler.NewHTTPClient(cfg.Timeout, cfg.DialTimeout, cfg.MaxBodySize,
		crawler.WithBackoff(cfg.InitialBackoff, cfg.MaxBackoff),
		crawler.WithLogger(log),
		crawler.WithObserver(tally),
	)

	jsonSink := ioformats.NewJSONFileSink(cfg.DataDir)
	jsonSink.Indent = true
	rec := &RecordingSink{Sink: jsonSink}

	orch := crawler.NewOrchestrator(site, client, parser.New(),
		crawler.WithSinks(append([]crawler.Sink{rec}, extra...)...),
		crawler.WithLanguages(cfg.Languages...),
		crawler.WithRequestDelay(cfg.RequestDelay),
		crawler.WithOrchestratorLogger(log),
		crawler.WithListingObserver(tally),
	)
	return &Engine{Site: site, Client: client, Tally: tally, Orchestrator: orch, report: rec}, nil
}

// ReportPath is where the JSON bundle of the last run went, or "" if it was not written.
func (e *Engine) ReportPath() string { return e.report.Location() }

// RecordingSink remembers the location its wrapped sink returned.
type RecordingSink struct {
	crawler.Sink

	mu  sync.Mutex
	loc string
}

func (r *RecordingSink) Persist(ctx context.Context, b *models.ResultBundle, n models.Naming) (string, error) {
	loc, err := r.Sink.Persist(ctx, b, n)
	if err == nil {
		r.mu.Lock()
		r.loc = loc
		r.mu.Unlock()
	}
	return loc, err
}

func (r *RecordingSink) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loc
}
