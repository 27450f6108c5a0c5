package crawler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"bbk-press-crawler/internal/models"
	"bbk-press-crawler/internal/parser"
)

// Fetcher is the single-URL retrieval contract the walker and orchestrator depend on.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, header http.Header) models.FetchOutcome
}

// Listing is what one walk over the result pages of a key produced.
type Listing struct {
	URLs  []string
	Pages int
	// Truncated is set when a page fetch failed and pagination ended early.
	Truncated bool
}

type Walker struct {
	site     *Site
	fetcher  Fetcher
	log      *slog.Logger
	observer Observer
}

func NewWalker(site *Site, f Fetcher, log *slog.Logger, obs Observer) *Walker {
	if log == nil {
		log = slog.Default()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Walker{site: site, fetcher: f, log: log, observer: obs}
}

// Walk pages through the search results for one key. It stops on a failed fetch, on a
// page without a result list, on a short page, or on a page whose links were all seen
// before; links of the last two kinds of page are still appended.
func (w *Walker) Walk(ctx context.Context, key models.Key, from, to time.Time) Listing {
	log := w.log.With("language", key.Language.String(), "content_type", key.ContentType.String())
	header := w.site.Headers(w.site.Referer(key))
	listing := Listing{URLs: []string{}}
	seen := map[string]struct{}{}

	for page := 0; ; page++ {
		pageURL := w.site.ListingURL(key, from, to, page)
		out := w.fetcher.Fetch(ctx, pageURL, header)
		if !out.OK() {
			listing.Truncated = true
			log.Warn("listing fetch failed, pagination truncated", "page", page, "url", pageURL, "error", out.Err)
			break
		}
		listing.Pages++

		links, found := parser.ListingLinks(parser.Decode(out.Body, out.ContentType), w.site.Origin())
		if !found {
			log.Info("no result list on page", "page", page)
			break
		}
		log.Info("found links", "page", page+1, "count", len(links))

		stale := subset(links, seen)
		listing.URLs = append(listing.URLs, links...)
		for _, l := range links {
			seen[l] = struct{}{}
		}
		if len(links) < PageSize || stale {
			break
		}
	}

	w.observer.ObserveListing(key, listing)
	return listing
}

func subset(links []string, seen map[string]struct{}) bool {
	for _, l := range links {
		if _, ok := seen[l]; !ok {
			return false
		}
	}
	return true
}
