package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"bbk-press-crawler/internal/app"
	"bbk-press-crawler/internal/config"
	"bbk-press-crawler/internal/crawler"
	"bbk-press-crawler/internal/models"
	"bbk-press-crawler/internal/parser"
	"bbk-press-crawler/internal/store"
)

// documentTimeout bounds POST /document, which includes the backoff waits.
const documentTimeout = 2 * time.Minute

type crawlReq struct {
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	ContentTypes []string `json:"content_types"`
}

type crawlResp struct {
	Metadata  models.Metadata `json:"metadata"`
	Successes int             `json:"successes"`
	Errors    []string        `json:"errors"`
	Report    string          `json:"report,omitempty"`
	Truncated []string        `json:"truncated_listings,omitempty"`
}

type documentReq struct {
	URL string `json:"url"`
}

// server runs at most one crawl at a time; document lookups are independent of it.
type server struct {
	cfg     *config.Config
	log     *slog.Logger
	archive *store.Archive

	site   *crawler.Site
	client *crawler.HTTPClient
	parser *parser.Parser

	crawling sync.Mutex
}

func newServer(cfg *config.Config, log *slog.Logger, archive *store.Archive) (*server, error) {
	site, err := crawler.NewSite(cfg.Origin, cfg.UserAgent, cfg.AcceptLanguage)
	if err != nil {
		return nil, err
	}
	client := crawler.NewHTTPClient(cfg.Timeout, cfg.DialTimeout, cfg.MaxBodySize,
		crawler.WithBackoff(cfg.InitialBackoff, cfg.MaxBackoff),
		crawler.WithLogger(log),
	)
	return &server{
		cfg:     cfg,
		log:     log,
		archive: archive,
		site:    site,
		client:  client,
		parser:  parser.New(),
	}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /crawl", s.handleCrawl)
	mux.HandleFunc("POST /document", s.handleDocument)
	mux.HandleFunc("GET /runs", s.handleRuns)
	return logRequest(s.log, mux)
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /crawl  {"start_date":"2023-11-01","end_date":"2023-11-30","content_types":["Speeches"]}
func (s *server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StartDate == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	cr, err := s.crawlRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.crawling.TryLock() {
		writeError(w, http.StatusConflict, "a crawl is already running")
		return
	}
	defer s.crawling.Unlock()

	var extra []crawler.Sink
	if s.archive != nil {
		extra = append(extra, s.archive)
	}
	eng, err := app.NewEngine(s.cfg, s.log, extra...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	bundle, err := eng.Orchestrator.Run(r.Context(), cr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := crawlResp{
		Metadata:  bundle.Metadata,
		Successes: len(bundle.Successes),
		Errors:    bundle.Errors,
		Report:    eng.ReportPath(),
	}
	for _, k := range eng.Tally.Snapshot().TruncatedKeys() {
		resp.Truncated = append(resp.Truncated, k.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) crawlRequest(req crawlReq) (models.CrawlRequest, error) {
	from, err := time.Parse(models.DateLayout, req.StartDate)
	if err != nil {
		return models.CrawlRequest{}, errors.New("start_date: want YYYY-MM-DD")
	}
	to := from
	if req.EndDate != "" {
		if to, err = time.Parse(models.DateLayout, req.EndDate); err != nil {
			return models.CrawlRequest{}, errors.New("end_date: want YYYY-MM-DD")
		}
	}
	if to.Before(from) {
		return models.CrawlRequest{}, errors.New("start_date is after end_date")
	}
	types := s.cfg.ContentTypes
	if len(req.ContentTypes) > 0 {
		if types, err = config.ParseContentTypes(req.ContentTypes); err != nil {
			return models.CrawlRequest{}, err
		}
	}
	return models.NewCrawlRequest(from, to, types...), nil
}

// POST /document  {"url":"https://www.bundesbank.de/en/press/speeches/..."}
func (s *server) handleDocument(w http.ResponseWriter, r *http.Request) {
	var req documentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), documentTimeout)
	defer cancel()

	out := s.client.Fetch(ctx, req.URL, s.site.Headers(s.site.Origin().String()+"/"))
	switch {
	case errors.Is(out.Err, crawler.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, out.Err.Error())
		return
	case !out.OK():
		msg := "fetch failed"
		if out.Err != nil {
			msg = out.Err.Error()
		}
		writeError(w, http.StatusBadGateway, msg)
		return
	}
	writeJSON(w, http.StatusOK, s.parser.Extract(parser.Decode(out.Body, out.ContentType), req.URL))
}

// GET /runs?limit=20
func (s *server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive disabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := s.archive.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequest(l *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		l.Info("request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "elapsed", time.Since(start))
	})
}
