// Package report renders a human readable Markdown summary of a crawl run.
package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"bbk-press-crawler/internal/classifier"
	"bbk-press-crawler/internal/crawler"
	"bbk-press-crawler/internal/models"
)

// topTermCount is how many frequent terms the summary lists.
const topTermCount = 15

// Summary is everything the report needs about one run.
type Summary struct {
	Bundle *models.ResultBundle
	Stats  crawler.TallySnapshot
	// Location is where the JSON bundle was written, if anywhere.
	Location string
}

// WriteMarkdown renders s to w.
func WriteMarkdown(w io.Writer, s Summary) error {
	md := markdown.NewMarkdown(w)
	b := s.Bundle

	md.H1("Bundesbank crawl summary")
	md.PlainText("")
	rows := [][]string{
		{"Query start", b.Metadata.QueryStartDate},
		{"Query end", b.Metadata.QueryEndDate},
		{"Run started", b.Metadata.RunStartDateTime},
		{"Documents retrieved", strconv.Itoa(len(b.Successes))},
		{"Documents failed", strconv.Itoa(len(b.Errors))},
	}
	if s.Location != "" {
		rows = append(rows, []string{"Report", "`" + s.Location + "`"})
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")

	writeOutcomes(md, b)
	writeListings(md, s.Stats)
	writeFetches(md, s.Stats)
	writeTerms(md, b)
	writeErrors(md, b)

	return md.Build()
}

func writeOutcomes(md *markdown.Markdown, b *models.ResultBundle) {
	total := len(b.Successes) + len(b.Errors)
	switch {
	case total == 0:
		md.Note("No documents were found for the requested range.")
		md.PlainText("")
		return
	case len(b.Errors) == 0:
		md.Tip("Every discovered document was retrieved.")
	default:
		md.Warningf("%d of %d documents could not be retrieved.", len(b.Errors), total)
	}
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Document outcomes"),
		piechart.WithShowData(true),
	)
	if n := len(b.Successes); n > 0 {
		chart.LabelAndIntValue("Retrieved", uint64(n))
	}
	if n := len(b.Errors); n > 0 {
		chart.LabelAndIntValue("Failed", uint64(n))
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func writeListings(md *markdown.Markdown, st crawler.TallySnapshot) {
	if len(st.Keys) == 0 {
		return
	}
	md.H2("Listings")
	md.PlainText("")
	rows := make([][]string, 0, len(st.Keys))
	for _, k := range st.Keys {
		status := "complete"
		if k.Truncated {
			status = "truncated"
		}
		rows = append(rows, []string{
			k.Key.Language.String(), k.Key.ContentType.String(),
			strconv.Itoa(k.Pages), strconv.Itoa(k.URLs), status,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Language", "Content type", "Pages", "URLs", "Pagination"},
		Rows:   rows,
	})
	md.PlainText("")

	if truncated := st.TruncatedKeys(); len(truncated) > 0 {
		names := make([]string, len(truncated))
		for i, k := range truncated {
			names[i] = k.String()
		}
		md.Cautionf("Pagination stopped on a failed listing page for: %s. Results for these keys may be incomplete.",
			strings.Join(names, ", "))
		md.PlainText("")
	}
}

func writeFetches(md *markdown.Markdown, st crawler.TallySnapshot) {
	if st.Fetches == 0 {
		return
	}
	md.H2("Requests")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Success", strconv.Itoa(st.Success)},
			{"Terminal error", strconv.Itoa(st.Terminal)},
			{"Backoff exhausted", strconv.Itoa(st.Exhausted)},
			{"Retries", strconv.Itoa(st.Retries())},
		},
	})
	md.PlainText("")
}

func writeTerms(md *markdown.Markdown, b *models.ResultBundle) {
	if len(b.Successes) == 0 {
		return
	}
	var sb strings.Builder
	for _, d := range b.Successes {
		sb.WriteString(d.Title)
		sb.WriteByte(' ')
		sb.WriteString(d.Text)
		sb.WriteByte(' ')
	}
	terms := classifier.New().TopTopics(sb.String(), topTermCount)
	if len(terms) == 0 {
		return
	}
	md.H2("Frequent terms")
	md.PlainText("")
	md.PlainText(strings.Join(terms, ", "))
	md.PlainText("")
}

func writeErrors(md *markdown.Markdown, b *models.ResultBundle) {
	if len(b.Errors) == 0 {
		return
	}
	md.H2("Failed URLs")
	md.PlainText("")
	md.BulletList(b.Errors...)
	md.PlainText("")
}
