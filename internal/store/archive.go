// Package store keeps a SQLite history of crawl runs next to the JSON reports.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"bbk-press-crawler/internal/models"
)

// FileName is the database file created inside the archive directory.
const FileName = "runs.db"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id               TEXT PRIMARY KEY,
    query_start_date TEXT NOT NULL,
    query_end_date   TEXT NOT NULL,
    run_started_at   TEXT NOT NULL,
    run_date         TEXT NOT NULL,
    successes        INTEGER NOT NULL,
    errors           INTEGER NOT NULL,
    created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL REFERENCES runs(id),
    position    INTEGER NOT NULL,
    url         TEXT NOT NULL,
    title       TEXT,
    author      TEXT,
    body_text   TEXT,
    language    TEXT,
    accessed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_documents_run ON documents(run_id);
CREATE INDEX IF NOT EXISTS idx_documents_url ON documents(url);

CREATE TABLE IF NOT EXISTS failures (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id   TEXT NOT NULL REFERENCES runs(id),
    position INTEGER NOT NULL,
    url      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id);
`

// Archive stores finished bundles. It implements the crawler Sink contract.
type Archive struct {
	db *sql.DB
}

// Open creates dir if needed and opens (or creates) the database inside it.
func Open(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, FileName)+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// SQLite only supports one writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Persist records the bundle in one transaction and returns the new run ID.
func (a *Archive) Persist(ctx context.Context, bundle *models.ResultBundle, naming models.Naming) (string, error) {
	id := uuid.NewString()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, query_start_date, query_end_date, run_started_at, run_date, successes, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, bundle.Metadata.QueryStartDate, bundle.Metadata.QueryEndDate, bundle.Metadata.RunStartDateTime,
		naming.RunDate.Format(models.DateLayout), len(bundle.Successes), len(bundle.Errors),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, doc := range bundle.Successes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (run_id, position, url, title, author, body_text, language, accessed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, doc.URL, doc.Title, doc.Author, doc.Text, doc.TextSourceLanguage, doc.AccessedAt,
		); err != nil {
			return "", fmt.Errorf("insert document: %w", err)
		}
	}
	for i, u := range bundle.Errors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO failures (run_id, position, url) VALUES (?, ?, ?)`, id, i, u,
		); err != nil {
			return "", fmt.Errorf("insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Run is one archived crawl.
type Run struct {
	ID             string `json:"id"`
	QueryStartDate string `json:"query_start_date"`
	QueryEndDate   string `json:"query_end_date"`
	RunStartedAt   string `json:"run_start_datetime"`
	Successes      int    `json:"successes"`
	Errors         int    `json:"errors"`
}

// ListRuns returns the most recent runs first.
func (a *Archive) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, query_start_date, query_end_date, run_started_at, successes, errors
		 FROM runs ORDER BY run_started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.QueryStartDate, &r.QueryEndDate, &r.RunStartedAt,
			&r.Successes, &r.Errors); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ErrRunNotFound is returned by GetRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

func (a *Archive) GetRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := a.db.QueryRowContext(ctx,
		`SELECT id, query_start_date, query_end_date, run_started_at, successes, errors
		 FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.QueryStartDate, &r.QueryEndDate, &r.RunStartedAt, &r.Successes, &r.Errors)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// FailedURLs returns the error list of one run in its original order.
func (a *Archive) FailedURLs(ctx context.Context, runID string) ([]string, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT url FROM failures WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}
