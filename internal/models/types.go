package models

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Date layouts used on the wire.
const (
	DateLayout        = "2006-01-02"
	ListingDateLayout = "02.01.2006"
	TimestampLayout   = "2006-01-02T15:04:05Z"
)

type Language int

const (
	English Language = iota
	German
)

// SupportedLanguages is the fixed crawl order.
var SupportedLanguages = []Language{English, German}

var languageTags = map[Language]language.Tag{
	English: language.English,
	German:  language.German,
}

func (l Language) String() string {
	switch l {
	case English:
		return "English"
	case German:
		return "German"
	}
	return fmt.Sprintf("Language(%d)", int(l))
}

// Locale returns the two letter path segment used by the site ("en", "de").
func (l Language) Locale() string {
	tag, ok := languageTags[l]
	if !ok {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

// ParseLanguage accepts the display name or the locale code.
func ParseLanguage(s string) (Language, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, l := range SupportedLanguages {
		if norm == strings.ToLower(l.String()) || norm == l.Locale() {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unsupported language %q", s)
}

type ContentType int

const (
	Speeches ContentType = iota
	Interviews
	PressReleases
)

var AllContentTypes = []ContentType{Speeches, Interviews, PressReleases}

func (c ContentType) String() string {
	switch c {
	case Speeches:
		return "Speeches"
	case Interviews:
		return "Interviews"
	case PressReleases:
		return "Press-releases"
	}
	return fmt.Sprintf("ContentType(%d)", int(c))
}

// ParseContentType accepts the display name in any case, with '-' or '_' or ' '.
func ParseContentType(s string) (ContentType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	for _, ct := range AllContentTypes {
		if strings.ToLower(ct.String()) == norm {
			return ct, nil
		}
	}
	return 0, fmt.Errorf("unknown content type %q", s)
}

// CrawlRequest is immutable once built; use NewCrawlRequest.
type CrawlRequest struct {
	startDate    time.Time
	endDate      time.Time
	contentTypes []ContentType
}

// NewCrawlRequest truncates both dates to calendar days and drops repeated content types.
func NewCrawlRequest(start, end time.Time, types ...ContentType) CrawlRequest {
	seen := make(map[ContentType]struct{}, len(types))
	cts := make([]ContentType, 0, len(types))
	for _, ct := range types {
		if _, dup := seen[ct]; dup {
			continue
		}
		seen[ct] = struct{}{}
		cts = append(cts, ct)
	}
	return CrawlRequest{startDate: civil(start), endDate: civil(end), contentTypes: cts}
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r CrawlRequest) StartDate() time.Time { return r.startDate }
func (r CrawlRequest) EndDate() time.Time   { return r.endDate }

func (r CrawlRequest) ContentTypes() []ContentType {
	return append([]ContentType(nil), r.contentTypes...)
}

type Key struct {
	Language    Language
	ContentType ContentType
}

func (k Key) String() string { return k.Language.String() + "/" + k.ContentType.String() }

// URLIndex keeps discovered URLs per key in discovery order. Duplicates are retained.
type URLIndex struct {
	keys []Key
	urls map[Key][]string
}

func NewURLIndex() *URLIndex {
	return &URLIndex{urls: map[Key][]string{}}
}

func (ix *URLIndex) Append(k Key, urls ...string) {
	if _, ok := ix.urls[k]; !ok {
		ix.keys = append(ix.keys, k)
		ix.urls[k] = []string{}
	}
	ix.urls[k] = append(ix.urls[k], urls...)
}

func (ix *URLIndex) Keys() []Key { return append([]Key(nil), ix.keys...) }

func (ix *URLIndex) URLs(k Key) []string { return ix.urls[k] }

func (ix *URLIndex) Len() int {
	n := 0
	for _, u := range ix.urls {
		n += len(u)
	}
	return n
}

type OutcomeKind int

const (
	FetchSuccess OutcomeKind = iota
	FetchTerminal
	FetchExhausted
)

func (k OutcomeKind) String() string {
	switch k {
	case FetchSuccess:
		return "success"
	case FetchTerminal:
		return "terminal-error"
	case FetchExhausted:
		return "exhausted-backoff"
	}
	return "unknown"
}

// FetchOutcome is the result of one logical fetch, after all retries.
type FetchOutcome struct {
	URL         string
	Kind        OutcomeKind
	StatusCode  int
	Body        []byte
	ContentType string
	Attempts    int
	Elapsed     time.Duration
	Err         error
}

func (o FetchOutcome) OK() bool { return o.Kind == FetchSuccess }

type DocumentRecord struct {
	AccessedAt          string `json:"datetime_accessed"`
	HTML                string `json:"document_html"`
	Text                string `json:"document_text"`
	Title               string `json:"document_title"`
	HTMLSourceLanguage  string `json:"document_html_source_language"`
	TextSourceLanguage  string `json:"document_text_source_language"`
	TitleSourceLanguage string `json:"document_title_source_language"`
	Author              string `json:"document_author"`
	URL                 string `json:"document_url"`
}

type Metadata struct {
	QueryStartDate   string `json:"query_start_date"`
	QueryEndDate     string `json:"query_end_date"`
	RunStartDateTime string `json:"run_start_datetime"`
}

// ResultBundle is append-only while a run is in progress.
type ResultBundle struct {
	Metadata  Metadata         `json:"metadata"`
	Errors    []string         `json:"errors"`
	Successes []DocumentRecord `json:"successes"`
}

func NewResultBundle(req CrawlRequest, runStart time.Time) *ResultBundle {
	return &ResultBundle{
		Metadata: Metadata{
			QueryStartDate:   req.StartDate().Format(DateLayout),
			QueryEndDate:     req.EndDate().Format(DateLayout),
			RunStartDateTime: runStart.UTC().Format(TimestampLayout),
		},
		Errors:    []string{},
		Successes: []DocumentRecord{},
	}
}

func (b *ResultBundle) AddSuccess(rec DocumentRecord) { b.Successes = append(b.Successes, rec) }
func (b *ResultBundle) AddError(url string)           { b.Errors = append(b.Errors, url) }

// Naming carries the three dates a sink derives its target name from.
type Naming struct {
	StartDate time.Time
	EndDate   time.Time
	RunDate   time.Time
}

func NewNaming(req CrawlRequest, runDate time.Time) Naming {
	return Naming{StartDate: req.StartDate(), EndDate: req.EndDate(), RunDate: runDate}
}

// FileName is "{start}_{end}_{run}.json" with ISO dates.
func (n Naming) FileName() string {
	return fmt.Sprintf("%s_%s_%s.json",
		n.StartDate.Format(DateLayout), n.EndDate.Format(DateLayout), n.RunDate.Format(DateLayout))
}
