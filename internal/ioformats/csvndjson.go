package ioformats

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ErrEmptyInput  = errors.New("no urls found")
	ErrNoURLColumn = errors.New("csv has no url or document_url column")
)

// urlColumns are the accepted header names, in order of preference.
var urlColumns = []string{"url", "document_url"}

// ReadURLs reads document URLs from a CSV file with a url column, an NDJSON file, or a
// previous result bundle (its errors). Unknown extensions are tried as CSV, then NDJSON.
func ReadURLs(path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".ndjson", ".jsonl":
		return readNDJSON(path)
	case ".json":
		return readBundleErrors(path)
	}
	if urls, err := readCSV(path); err == nil {
		return urls, nil
	}
	return readNDJSON(path)
}

func readCSV(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // user supplied path
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s is empty", ErrEmptyInput, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := urlColumn(header)
	if col < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoURLColumn, path)
	}

	var urls []string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if col >= len(rec) {
			continue
		}
		if u := strings.TrimSpace(rec[col]); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrEmptyInput, path)
	}
	return urls, nil
}

func urlColumn(header []string) int {
	for _, name := range urlColumns {
		if i := slices.IndexFunc(header, func(h string) bool {
			return strings.EqualFold(strings.TrimSpace(h), name)
		}); i >= 0 {
			return i
		}
	}
	return -1
}

// urlLine is one NDJSON entry: either a bare URL or an object naming it. Document
// records written by WriteNDJSON carry document_url.
type urlLine struct {
	URL         string `json:"url"`
	DocumentURL string `json:"document_url"`
}

func readNDJSON(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // user supplied path
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	// exported documents carry their full HTML on one line
	sc.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "{") {
			var l urlLine
			if err := json.Unmarshal([]byte(line), &l); err == nil {
				if u := firstNonEmpty(l.URL, l.DocumentURL); u != "" {
					urls = append(urls, u)
				}
				continue
			}
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ndjson: %w", err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrEmptyInput, path)
	}
	return urls, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func readBundleErrors(path string) ([]string, error) {
	b, err := ReadBundle(path)
	if err != nil {
		return nil, err
	}
	if len(b.Errors) == 0 {
		return nil, fmt.Errorf("%w: %s has no failed urls", ErrEmptyInput, path)
	}
	return b.Errors, nil
}

// WriteNDJSON writes one JSON document per line.
func WriteNDJSON[T any](w io.Writer, items []T) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return err
		}
	}
	return bw.Flush()
}
