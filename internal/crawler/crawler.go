package crawler

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bbk-press-crawler/internal/models"
)

const (
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 300 * time.Second
	maxRedirects          = 10
)

var (
	ErrInvalidURL       = errors.New("invalid url")
	ErrBackoffExhausted = errors.New("backoff exhausted")
	errTooManyRedirects = errors.New("stopped after too many redirects")
)

// StatusError reports a non-200 response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("http status %d", e.Code) }

// Observer receives every fetch outcome and listing summary. Implementations must be
// safe for concurrent use when one client is shared between runs.
type Observer interface {
	ObserveFetch(models.FetchOutcome)
	ObserveListing(models.Key, Listing)
}

type nopObserver struct{}

func (nopObserver) ObserveFetch(models.FetchOutcome)   {}
func (nopObserver) ObserveListing(models.Key, Listing) {}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type HTTPClient struct {
	client         *http.Client
	sizeCap        int64
	initialBackoff time.Duration
	maxBackoff     time.Duration
	sleep          SleepFunc
	log            *slog.Logger
	observer       Observer
}

type Option func(*HTTPClient)

// WithBackoff sets the first wait and the cap on a single wait.
func WithBackoff(initial, max time.Duration) Option {
	return func(h *HTTPClient) {
		if initial > 0 {
			h.initialBackoff = initial
		}
		if max > 0 {
			h.maxBackoff = max
		}
	}
}

func WithSleep(fn SleepFunc) Option {
	return func(h *HTTPClient) { h.sleep = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *HTTPClient) { h.log = l }
}

func WithObserver(o Observer) Option {
	return func(h *HTTPClient) { h.observer = o }
}

func NewHTTPClient(timeout, dialTimeout time.Duration, sizeCap int64, opts ...Option) *HTTPClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	h := &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
		sizeCap:        sizeCap,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		sleep:          sleepContext,
		log:            slog.Default(),
		observer:       nopObserver{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Fetch performs one logical GET. 200 succeeds at once; 429, 5xx and network errors are
// retried after waits of 1, 2, 4... times the initial backoff until the pending wait
// reaches the cap; any other status is terminal.
func (h *HTTPClient) Fetch(ctx context.Context, rawURL string, header http.Header) models.FetchOutcome {
	start := time.Now()
	out := models.FetchOutcome{URL: rawURL}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		out.Kind = models.FetchTerminal
		out.Err = fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
		return h.finish(out, start)
	}

	wait := h.initialBackoff
	for {
		out.Attempts++
		status, body, contentType, err := h.attempt(ctx, u, header)
		out.StatusCode = status

		switch {
		case err == nil && status == http.StatusOK:
			out.Kind = models.FetchSuccess
			out.Body = body
			out.ContentType = contentType
			out.Err = nil
			return h.finish(out, start)
		case ctx.Err() != nil:
			out.Kind = models.FetchTerminal
			out.Err = ctx.Err()
			return h.finish(out, start)
		case errors.Is(err, errTooManyRedirects):
			out.Kind = models.FetchTerminal
			out.Err = err
			return h.finish(out, start)
		case err == nil && !retryable(status):
			out.Kind = models.FetchTerminal
			out.Err = &StatusError{Code: status}
			return h.finish(out, start)
		}

		if err == nil {
			err = &StatusError{Code: status}
		}
		if wait >= h.maxBackoff {
			out.Kind = models.FetchExhausted
			out.Err = fmt.Errorf("%w after %d attempts: %w", ErrBackoffExhausted, out.Attempts, err)
			return h.finish(out, start)
		}
		h.log.Warn("retrying request",
			"url", rawURL, "status", status, "attempt", out.Attempts, "wait", wait, "error", err)
		if serr := h.sleep(ctx, wait); serr != nil {
			out.Kind = models.FetchTerminal
			out.Err = serr
			return h.finish(out, start)
		}
		wait *= 2
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

func (h *HTTPClient) attempt(ctx context.Context, u *url.URL, header http.Header) (int, []byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, nil, "", err
	}
	req.Header = header.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return resp.StatusCode, nil, "", nil
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, "", err
		}
		defer gz.Close()
		body = gz
	}

	// enforce a size cap
	data, err := io.ReadAll(io.LimitReader(body, h.sizeCap))
	if err != nil {
		return resp.StatusCode, nil, "", err
	}
	return resp.StatusCode, data, resp.Header.Get("Content-Type"), nil
}

func (h *HTTPClient) finish(out models.FetchOutcome, start time.Time) models.FetchOutcome {
	out.Elapsed = time.Since(start)
	attrs := []any{"url", out.URL, "outcome", out.Kind.String(), "status", out.StatusCode,
		"attempts", out.Attempts, "elapsed", out.Elapsed}
	if out.OK() {
		h.log.Info("downloaded", attrs...)
	} else {
		h.log.Error("request failed", append(attrs, "error", out.Err)...)
	}
	h.observer.ObserveFetch(out)
	return out
}
