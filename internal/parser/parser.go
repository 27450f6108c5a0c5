package parser

import (
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/language"

	"bbk-press-crawler/internal/classifier"
	"bbk-press-crawler/internal/models"
)

// Parser turns one document page into a DocumentRecord. It holds no per-document state.
type Parser struct {
	now func() time.Time
	cl  *classifier.Classifier
}

type Option func(*Parser)

// WithClock overrides the access timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

func New(opts ...Option) *Parser {
	p := &Parser{now: time.Now, cl: classifier.New()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Decode converts a response body to a UTF-8 string using the declared or sniffed charset.
func Decode(data []byte, contentType string) string {
	enc, _, _ := charset.DetermineEncoding(data, contentType)
	utf8data, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		// fallback: if already utf-8, continue
		if utf8.Valid(data) {
			return string(data)
		}
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(utf8data)
}

// Extract never fails: regions that are missing come back as empty strings.
func (p *Parser) Extract(html, sourceURL string) models.DocumentRecord {
	rec := models.DocumentRecord{
		AccessedAt: p.now().UTC().Format(models.TimestampLayout),
		HTML:       html,
		URL:        sourceURL,
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return rec
	}

	main := doc.Find("div#main-content main.main").First()
	if main.Length() > 0 {
		body := main.Find(".main").First().Clone()
		body.Find("script,noscript,style").Remove()
		rec.Text = text(body)
		rec.Title = text(main.Find(".main__headline").First())
		rec.Author = text(main.Find(".metadata__authors").First())
	}

	pageLang := primaryLanguage(doc.Find("html").AttrOr("lang", ""))
	rec.HTMLSourceLanguage = pageLang
	rec.TextSourceLanguage = p.guess(rec.Text, pageLang)
	rec.TitleSourceLanguage = p.guess(rec.Title, pageLang)
	return rec
}

func (p *Parser) guess(s, fallback string) string {
	if s == "" {
		return ""
	}
	if lang := p.cl.Language(s); lang != "" {
		return lang
	}
	return fallback
}

func text(s *goquery.Selection) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s.Text(), " "))
}

func primaryLanguage(attr string) string {
	attr = strings.TrimSpace(attr)
	if attr == "" {
		return ""
	}
	tag, err := language.Parse(attr)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

// ListingLinks returns the document links of a search results page, resolved against
// base, in page order. Every anchor with an href yields exactly one link so the caller's
// page-size count matches the page: an empty href resolves to base, and an href that
// does not parse as a URL is appended to base verbatim. found is false when the page has
// no result list at all.
func ListingLinks(html string, base *url.URL) (links []string, found bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false
	}
	list := doc.Find("ul.resultlist")
	if list.Length() == 0 {
		return nil, false
	}
	links = []string{}
	list.Find("a.teasable__link[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		ref, err := url.Parse(href)
		if err != nil {
			links = append(links, strings.TrimSuffix(base.String(), "/")+href)
			return
		}
		links = append(links, base.ResolveReference(ref).String())
	})
	return links, true
}
