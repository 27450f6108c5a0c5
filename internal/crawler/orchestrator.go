package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bbk-press-crawler/internal/models"
	"bbk-press-crawler/internal/parser"
)

// Extractor maps one document page to a record. It must not fail.
type Extractor interface {
	Extract(html, sourceURL string) models.DocumentRecord
}

// Sink persists a finished bundle and reports where it went.
type Sink interface {
	Persist(ctx context.Context, bundle *models.ResultBundle, naming models.Naming) (string, error)
}

type Orchestrator struct {
	site      *Site
	fetcher   Fetcher
	walker    *Walker
	extractor Extractor
	sinks     []Sink
	languages []models.Language
	delay     time.Duration
	sleep     SleepFunc
	now       func() time.Time
	log       *slog.Logger
}

type OrchestratorOption func(*Orchestrator)

func WithSinks(s ...Sink) OrchestratorOption {
	return func(o *Orchestrator) { o.sinks = append(o.sinks, s...) }
}

// WithRequestDelay pauses between consecutive document fetches.
func WithRequestDelay(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.delay = d }
}

func WithLanguages(langs ...models.Language) OrchestratorOption {
	return func(o *Orchestrator) { o.languages = langs }
}

func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

func WithDelaySleep(fn SleepFunc) OrchestratorOption {
	return func(o *Orchestrator) { o.sleep = fn }
}

func WithOrchestratorLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.log = l }
}

func WithListingObserver(obs Observer) OrchestratorOption {
	return func(o *Orchestrator) { o.walker.observer = obs }
}

func NewOrchestrator(site *Site, f Fetcher, ex Extractor, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		site:      site,
		fetcher:   f,
		walker:    NewWalker(site, f, nil, nil),
		extractor: ex,
		languages: models.SupportedLanguages,
		sleep:     sleepContext,
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.walker.log = o.log
	return o
}

// Discover walks every (language, content type) pair of the request in order.
func (o *Orchestrator) Discover(ctx context.Context, req models.CrawlRequest) *models.URLIndex {
	index := models.NewURLIndex()
	for _, lang := range o.languages {
		o.log.Info("retrieving content", "language", lang.String())
		for _, ct := range req.ContentTypes() {
			key := models.Key{Language: lang, ContentType: ct}
			listing := o.walker.Walk(ctx, key, req.StartDate(), req.EndDate())
			index.Append(key, listing.URLs...)
			o.log.Info("discovered documents", "key", key.String(), "urls", len(listing.URLs),
				"pages", listing.Pages, "truncated", listing.Truncated)
		}
	}
	return index
}

// Run discovers, retrieves and hands the bundle to every sink. Fetch and parse problems
// end up in the bundle; a sink failure is returned as an error. A cancelled run returns
// the context error and nothing is persisted.
func (o *Orchestrator) Run(ctx context.Context, req models.CrawlRequest) (*models.ResultBundle, error) {
	index := o.Discover(ctx, req)
	if err := ctx.Err(); err != nil {
		o.log.Warn("run cancelled during discovery, nothing written", "error", err)
		return nil, err
	}

	bundle := models.NewResultBundle(req, o.now())
	for _, key := range index.Keys() {
		o.log.Info("downloading documents", "key", key.String(), "urls", len(index.URLs(key)))
		if err := o.retrieve(ctx, bundle, o.site.Referer(key), index.URLs(key)); err != nil {
			o.log.Warn("run cancelled during retrieval, nothing written", "error", err)
			return nil, err
		}
	}
	o.log.Info("run finished", "successes", len(bundle.Successes), "errors", len(bundle.Errors))

	if err := o.persist(ctx, bundle, models.NewNaming(req, o.now())); err != nil {
		return bundle, err
	}
	return bundle, nil
}

// Retrieve runs the document phase alone over an explicit URL list. Cancellation is
// handled as in Run.
func (o *Orchestrator) Retrieve(ctx context.Context, req models.CrawlRequest, urls []string) (*models.ResultBundle, error) {
	bundle := models.NewResultBundle(req, o.now())
	if err := o.retrieve(ctx, bundle, o.site.Origin().String()+"/", urls); err != nil {
		o.log.Warn("retrieval cancelled, nothing written", "error", err)
		return nil, err
	}
	o.log.Info("retrieval finished", "successes", len(bundle.Successes), "errors", len(bundle.Errors))
	if err := o.persist(ctx, bundle, models.NewNaming(req, o.now())); err != nil {
		return bundle, err
	}
	return bundle, nil
}

// retrieve fetches urls in order into bundle. It stops with the context error as soon
// as ctx is done, so a cancelled fetch is never recorded as a failed document.
func (o *Orchestrator) retrieve(ctx context.Context, bundle *models.ResultBundle, referer string, urls []string) error {
	header := o.site.Headers(referer)
	for i, u := range urls {
		if i > 0 && o.delay > 0 {
			if err := o.sleep(ctx, o.delay); err != nil {
				return err
			}
		}
		out := o.fetcher.Fetch(ctx, u, header)
		if err := ctx.Err(); err != nil {
			return err
		}
		if !out.OK() {
			bundle.AddError(u)
			continue
		}
		bundle.AddSuccess(o.extractor.Extract(parser.Decode(out.Body, out.ContentType), u))
	}
	return ctx.Err()
}

func (o *Orchestrator) persist(ctx context.Context, bundle *models.ResultBundle, naming models.Naming) error {
	for _, s := range o.sinks {
		loc, err := s.Persist(ctx, bundle, naming)
		if err != nil {
			return fmt.Errorf("persist bundle: %w", err)
		}
		o.log.Info("bundle written", "location", loc)
	}
	return nil
}
