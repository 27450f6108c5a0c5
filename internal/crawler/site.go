package crawler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bbk-press-crawler/internal/models"
)

const (
	DefaultOrigin = "https://www.bundesbank.de"
	PageSize      = 50

	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/88.0.4324.150 Safari/537.36"
	DefaultAcceptLanguage = "en-US,en;q=0.9"
)

var contentPaths = map[models.Language]map[models.ContentType]string{
	models.English: {
		models.Speeches:      "730564",
		models.Interviews:    "730132",
		models.PressReleases: "730186",
	},
	models.German: {
		models.Speeches:      "729950",
		models.Interviews:    "729904",
		models.PressReleases: "724000",
	},
}

var refererPaths = map[models.Language]map[models.ContentType]string{
	models.English: {
		models.Speeches:      "/en/press/speeches",
		models.Interviews:    "/en/press/interviews",
		models.PressReleases: "/en/press/press-releases",
	},
	models.German: {
		models.Speeches:      "/de/presse/reden",
		models.Interviews:    "/de/presse/interviews",
		models.PressReleases: "/de/presse/pressenotizen",
	},
}

// Site describes the listing endpoints of one origin and the header template sent to it.
type Site struct {
	origin         *url.URL
	userAgent      string
	acceptLanguage string
}

func NewSite(origin, userAgent, acceptLanguage string) (*Site, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("origin %q must be absolute", origin)
	}
	u.Path, u.RawQuery, u.Fragment = "", "", ""
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if acceptLanguage == "" {
		acceptLanguage = DefaultAcceptLanguage
	}
	return &Site{origin: u, userAgent: userAgent, acceptLanguage: acceptLanguage}, nil
}

func (s *Site) Origin() *url.URL {
	u := *s.origin
	return &u
}

func (s *Site) Referer(k models.Key) string {
	return s.origin.String() + refererPaths[k.Language][k.ContentType]
}

// ListingURL builds the search URL for one results page (zero based).
func (s *Site) ListingURL(k models.Key, from, to time.Time, page int) string {
	q := "query=&tfi-730578=&tfi-730576=" +
		"&dateFrom=" + from.Format(models.ListingDateLayout) +
		"&dateTo=" + to.Format(models.ListingDateLayout) +
		"&hitsPerPageString=" + strconv.Itoa(PageSize) +
		"&sort=bbksortdate+desc" +
		"&pageNumString=" + strconv.Itoa(page)
	return fmt.Sprintf("%s/action/%s/%s/bbksearch?%s",
		s.origin.String(), k.Language.Locale(), contentPaths[k.Language][k.ContentType], q)
}

// Headers returns a fresh header set; callers may modify it freely.
func (s *Site) Headers(referer string) http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Encoding", "gzip")
	h.Set("Accept-Language", s.acceptLanguage)
	h.Set("Cache-Control", "no-cache")
	h.Set("Dnt", "1")
	h.Set("Pragma", "no-cache")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Sec-Gpc", "1")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("User-Agent", s.userAgent)
	if referer != "" {
		h.Set("Referer", referer)
	}
	return h
}
