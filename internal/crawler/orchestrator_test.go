package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bbk-press-crawler/internal/models"
)

type stubExtractor struct{}

func (stubExtractor) Extract(html, sourceURL string) models.DocumentRecord {
	return models.DocumentRecord{URL: sourceURL, HTML: html}
}

type memorySink struct {
	bundles []*models.ResultBundle
	names   []models.Naming
	err     error
}

func (m *memorySink) Persist(_ context.Context, b *models.ResultBundle, n models.Naming) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.bundles = append(m.bundles, b)
	m.names = append(m.names, n)
	return "memory", nil
}

// siteFake serves listing pages with a fixed link set per locale and fails document
// URLs containing "broken".
func siteFake(t *testing.T) *fakeFetcher {
	f := &fakeFetcher{}
	f.respond = func(u string) models.FetchOutcome {
		switch {
		case strings.Contains(u, "/action/en/"):
			return ok(`<ul class="resultlist"><a class="teasable__link" href="/en/doc-1">1</a><a class="teasable__link" href="/en/broken-2">2</a></ul>`)
		case strings.Contains(u, "/action/de/"):
			return ok(`<ul class="resultlist"><a class="teasable__link" href="/de/doc-3">3</a></ul>`)
		case strings.Contains(u, "broken"):
			return failed(models.FetchTerminal)
		default:
			return ok("<html>" + u + "</html>")
		}
	}
	return f
}

func fixedNow() time.Time { return time.Date(2023, 11, 29, 8, 0, 0, 0, time.UTC) }

func TestRunPartitionsEveryURL(t *testing.T) {
	f := siteFake(t)
	sink := &memorySink{}
	o := NewOrchestrator(testSite(t), f, stubExtractor{},
		WithSinks(sink), WithClock(fixedNow), WithOrchestratorLogger(quietLogger()))

	req := models.NewCrawlRequest(testFrom, testTo, models.Speeches, models.PressReleases)
	bundle, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// 2 languages x 2 content types, one listing page each
	listingCalls := 0
	for _, c := range f.calls {
		if strings.Contains(c, "bbksearch") {
			listingCalls++
		}
	}
	if listingCalls != 4 {
		t.Fatalf("want 4 listing fetches, got %d", listingCalls)
	}

	// en keys: doc-1 ok, broken-2 fails; de keys: doc-3 ok; each for two content types
	if len(bundle.Successes) != 4 || len(bundle.Errors) != 2 {
		t.Fatalf("want 4 successes / 2 errors, got %d / %d", len(bundle.Successes), len(bundle.Errors))
	}
	inSuccess := map[string]int{}
	for _, s := range bundle.Successes {
		inSuccess[s.URL]++
	}
	for _, e := range bundle.Errors {
		if inSuccess[e] > 0 {
			t.Fatalf("url %q in both successes and errors", e)
		}
		if e != "https://www.bundesbank.de/en/broken-2" {
			t.Fatalf("unexpected error url %q", e)
		}
	}
	if bundle.Successes[0].URL != "https://www.bundesbank.de/en/doc-1" {
		t.Fatalf("successes not in discovery order: %q", bundle.Successes[0].URL)
	}
	if bundle.Metadata.RunStartDateTime != "2023-11-29T08:00:00Z" || bundle.Metadata.QueryStartDate != "2023-01-01" {
		t.Fatalf("unexpected metadata %+v", bundle.Metadata)
	}
	if len(sink.bundles) != 1 || sink.bundles[0] != bundle {
		t.Fatal("bundle not handed to sink exactly once")
	}
	if sink.names[0].FileName() != "2023-01-01_2023-01-02_2023-11-29.json" {
		t.Fatalf("unexpected naming %q", sink.names[0].FileName())
	}
}

func TestRunUsesKeyReferer(t *testing.T) {
	f := siteFake(t)
	o := NewOrchestrator(testSite(t), f, stubExtractor{},
		WithLanguages(models.German), WithOrchestratorLogger(quietLogger()))
	if _, err := o.Run(context.Background(), models.NewCrawlRequest(testFrom, testTo, models.Interviews)); err != nil {
		t.Fatal(err)
	}
	for i, h := range f.headers {
		if got := h.Get("Referer"); got != "https://www.bundesbank.de/de/presse/interviews" {
			t.Fatalf("call %d (%s): unexpected referer %q", i, f.calls[i], got)
		}
	}
}

func TestRunSinkFailure(t *testing.T) {
	boom := errors.New("disk full")
	o := NewOrchestrator(testSite(t), siteFake(t), stubExtractor{},
		WithSinks(&memorySink{err: boom}), WithOrchestratorLogger(quietLogger()))
	_, err := o.Run(context.Background(), models.NewCrawlRequest(testFrom, testTo, models.Speeches))
	if !errors.Is(err, boom) {
		t.Fatalf("want sink error, got %v", err)
	}
}

func TestRunRequestDelay(t *testing.T) {
	rec := &sleepRecorder{}
	o := NewOrchestrator(testSite(t), siteFake(t), stubExtractor{},
		WithLanguages(models.English), WithRequestDelay(10*time.Second), WithDelaySleep(rec.sleep),
		WithOrchestratorLogger(quietLogger()))
	if _, err := o.Run(context.Background(), models.NewCrawlRequest(testFrom, testTo, models.Speeches)); err != nil {
		t.Fatal(err)
	}
	if !equalWaits(rec.waits, 10*time.Second) {
		t.Fatalf("want one delay between two documents, got %v", rec.waits)
	}
}

func TestRetrieve(t *testing.T) {
	f := siteFake(t)
	sink := &memorySink{}
	o := NewOrchestrator(testSite(t), f, stubExtractor{}, WithSinks(sink), WithClock(fixedNow),
		WithOrchestratorLogger(quietLogger()))
	urls := []string{"https://www.bundesbank.de/en/doc-9", "https://www.bundesbank.de/en/broken-9"}
	bundle, err := o.Retrieve(context.Background(), models.NewCrawlRequest(fixedNow(), fixedNow()), urls)
	if err != nil {
		t.Fatal(err)
	}
	if len(bundle.Successes) != 1 || len(bundle.Errors) != 1 || bundle.Errors[0] != urls[1] {
		t.Fatalf("unexpected bundle %+v", bundle)
	}
	if len(f.calls) != 2 {
		t.Fatalf("retrieve must not walk listings, got calls %v", f.calls)
	}
	if len(sink.bundles) != 1 {
		t.Fatal("retrieve bundle not persisted")
	}
}

// cancellingExtractor cancels the run after extracting `after` documents.
type cancellingExtractor struct {
	after  int
	seen   int
	cancel context.CancelFunc
}

func (c *cancellingExtractor) Extract(html, sourceURL string) models.DocumentRecord {
	c.seen++
	if c.seen == c.after {
		c.cancel()
	}
	return models.DocumentRecord{URL: sourceURL}
}

func TestRunCancelledMidRetrievalWritesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Query().Has("pageNumString") {
			fmt.Fprint(w, `<ul class="resultlist">`)
			for i := 0; i < 10; i++ {
				fmt.Fprintf(w, `<a class="teasable__link" href="/en/doc-%d">%d</a>`, i, i)
			}
			fmt.Fprint(w, `</ul>`)
			return
		}
		fmt.Fprint(w, "<html><body>document</body></html>")
	}))
	defer srv.Close()

	site, err := NewSite(srv.URL, "", "")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ex := &cancellingExtractor{after: 1, cancel: cancel}
	sink := &memorySink{}
	o := NewOrchestrator(site, newTestClient(&sleepRecorder{}, 4*time.Second), ex,
		WithSinks(sink), WithLanguages(models.English), WithOrchestratorLogger(quietLogger()))

	bundle, err := o.Run(ctx, models.NewCrawlRequest(testFrom, testTo, models.Speeches))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if bundle != nil {
		t.Fatalf("cancelled run must not return a bundle, got %d successes / %d errors",
			len(bundle.Successes), len(bundle.Errors))
	}
	if len(sink.bundles) != 0 {
		t.Fatal("cancelled run must not reach the sinks")
	}
	if ex.seen != 1 {
		t.Fatalf("retrieval must stop after cancellation, extracted %d documents", ex.seen)
	}
}

func TestRunCancelledBeforeRetrievalWritesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &memorySink{}
	o := NewOrchestrator(testSite(t), siteFake(t), stubExtractor{},
		WithSinks(sink), WithOrchestratorLogger(quietLogger()))
	if _, err := o.Run(ctx, models.NewCrawlRequest(testFrom, testTo, models.Speeches)); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if len(sink.bundles) != 0 {
		t.Fatal("cancelled run must not reach the sinks")
	}
}

func TestRetrieveCancelledDuringDelay(t *testing.T) {
	f := siteFake(t)
	sink := &memorySink{}
	interrupted := func(context.Context, time.Duration) error { return context.Canceled }
	o := NewOrchestrator(testSite(t), f, stubExtractor{}, WithSinks(sink),
		WithRequestDelay(time.Second), WithDelaySleep(interrupted), WithOrchestratorLogger(quietLogger()))

	urls := []string{"https://www.bundesbank.de/en/doc-1", "https://www.bundesbank.de/en/doc-2"}
	if _, err := o.Retrieve(context.Background(), models.NewCrawlRequest(fixedNow(), fixedNow()), urls); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if len(f.calls) != 1 {
		t.Fatalf("no fetch may follow an interrupted delay, got %v", f.calls)
	}
	if len(sink.bundles) != 0 {
		t.Fatal("interrupted retrieval must not reach the sinks")
	}
}
