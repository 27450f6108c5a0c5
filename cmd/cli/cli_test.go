package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bbk-press-crawler/internal/ioformats"
)

const listingHTML = `<html><body><ul class="resultlist">
<li><a class="teasable__link" href="/en/press/speeches/doc-1">One</a></li>
</ul></body></html>`

const documentHTML = `<html lang="en"><body><div id="main-content"><main class="main">
<h1 class="main__headline">Monetary policy in uncertain times</h1>
<div class="metadata__authors">Joachim Nagel</div>
<div class="main"><p>Inflation remains the central concern of the monetary policy of the euro area.</p></div>
</main></div></body></html>`

// pressSite serves one listing page with a single link and answers every other path
// with a document, except paths containing "broken".
func pressSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch {
		case r.URL.Query().Has("pageNumString"):
			fmt.Fprint(w, listingHTML)
		case strings.Contains(r.URL.Path, "broken"):
			http.NotFound(w, r)
		default:
			fmt.Fprint(w, documentHTML)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, origin string) (cfgPath, dataDir string) {
	t.Helper()
	dir := t.TempDir()
	dataDir = filepath.Join(dir, "data")
	cfgPath = filepath.Join(dir, "crawl.yaml")
	body := fmt.Sprintf(`origin: %s
languages: [English]
content_types: [Speeches]
data_dir: %s
log_dir: %s
archive_dir: %s
`, origin, dataDir, filepath.Join(dir, "logs"), filepath.Join(dir, "archive"))
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath, dataDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func onlyReport(t *testing.T, dataDir string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dataDir, "*.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("want one report in %s, got %v (%v)", dataDir, matches, err)
	}
	return matches[0]
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	if cmd.Use != "bbkcrawl" || cmd.Version == "" {
		t.Fatalf("unexpected root command %q / %q", cmd.Use, cmd.Version)
	}
	for _, name := range []string{"config", "verbose", "log-json"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing persistent flag --%s", name)
		}
	}
	want := map[string]bool{"crawl": false, "retry [file]": false, "version": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Use]; ok {
			want[sub.Use] = true
		}
	}
	for use, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", use)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "bbkcrawl version ") || !strings.Contains(out, "commit:") {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestCrawlWritesReportAndSummary(t *testing.T) {
	srv := pressSite(t)
	cfgPath, dataDir := writeConfig(t, srv.URL)
	summary := filepath.Join(t.TempDir(), "summary.md")
	docs := filepath.Join(t.TempDir(), "docs.ndjson")

	out, err := execute(t, "--config", cfgPath, "crawl",
		"--from", "2023-11-29", "--summary", summary, "--ndjson", docs)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if !strings.Contains(out, "Successfully retrieved 1 documents.") ||
		!strings.Contains(out, "Failed to retrieve 0 documents.") {
		t.Fatalf("unexpected output %q", out)
	}

	path := onlyReport(t, dataDir)
	if !strings.HasPrefix(filepath.Base(path), "2023-11-29_2023-11-29_") {
		t.Fatalf("unexpected report name %q", path)
	}
	b, err := ioformats.ReadBundle(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Successes) != 1 || b.Successes[0].URL != srv.URL+"/en/press/speeches/doc-1" {
		t.Fatalf("unexpected successes %+v", b.Successes)
	}
	if b.Successes[0].Title != "Monetary policy in uncertain times" {
		t.Fatalf("unexpected title %q", b.Successes[0].Title)
	}

	md, err := os.ReadFile(summary)
	if err != nil || !strings.Contains(string(md), "# Bundesbank crawl summary") {
		t.Fatalf("summary not written: %v", err)
	}
	lines, err := os.ReadFile(docs)
	if err != nil || strings.Count(string(lines), "\n") != 1 {
		t.Fatalf("want one NDJSON line, got %q (%v)", lines, err)
	}
}

func TestCrawlRejectsBadInput(t *testing.T) {
	srv := pressSite(t)
	cfgPath, _ := writeConfig(t, srv.URL)

	if _, err := execute(t, "--config", cfgPath, "crawl", "--from", "2023-12-01", "--to", "2023-11-01"); !errors.Is(err, errInvalidRange) {
		t.Fatalf("want errInvalidRange, got %v", err)
	}
	if _, err := execute(t, "--config", cfgPath, "crawl", "--from", "29.11.2023"); err == nil {
		t.Fatal("expected error for malformed date")
	}
	if _, err := execute(t, "--config", cfgPath, "crawl", "--from", "2023-11-29", "--types", "Podcasts"); err == nil {
		t.Fatal("expected error for unknown content type")
	}
	if _, err := execute(t, "crawl"); err == nil {
		t.Fatal("expected error without --from")
	}
}

func TestRetryFromPreviousReport(t *testing.T) {
	srv := pressSite(t)
	cfgPath, dataDir := writeConfig(t, srv.URL)

	prev := filepath.Join(t.TempDir(), "2023-11-01_2023-11-30_2023-12-01.json")
	body := fmt.Sprintf(`{"metadata":{"query_start_date":"2023-11-01","query_end_date":"2023-11-30","run_start_datetime":"2023-12-01T08:00:00Z"},
"errors":["%[1]s/en/press/speeches/doc-2","%[1]s/en/press/speeches/broken"],"successes":[]}`, srv.URL)
	if err := os.WriteFile(prev, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "--config", cfgPath, "retry", prev)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !strings.Contains(out, "Successfully retrieved 1 documents.") ||
		!strings.Contains(out, "Failed to retrieve 1 documents.") {
		t.Fatalf("unexpected output %q", out)
	}

	b, err := ioformats.ReadBundle(onlyReport(t, dataDir))
	if err != nil {
		t.Fatal(err)
	}
	if b.Metadata.QueryStartDate != "2023-11-01" || b.Metadata.QueryEndDate != "2023-11-30" {
		t.Fatalf("query dates not carried over: %+v", b.Metadata)
	}
	if len(b.Errors) != 1 || !strings.HasSuffix(b.Errors[0], "/broken") {
		t.Fatalf("unexpected errors %v", b.Errors)
	}
}

func TestRetryArgs(t *testing.T) {
	if _, err := execute(t, "retry"); err == nil {
		t.Fatal("expected error without file or --run")
	}
	if _, err := execute(t, "retry", "--run", "x", "file.csv"); err == nil {
		t.Fatal("expected error with both file and --run")
	}
}
