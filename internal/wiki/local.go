package wiki

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/confluence-mcp/internal/apierr"
	"github.com/HendryAvila/confluence-mcp/internal/markup"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// DefaultLocalBaseURL is used for page links when no site URL is configured.
const DefaultLocalBaseURL = "http://localhost:8090"

// LocalConfig configures a LocalStore.
type LocalConfig struct {
	// DataDir holds pages.db. Empty keeps the database in memory.
	DataDir string
	// BaseURL prefixes page links.
	BaseURL string
}

// LocalStore is a page store on SQLite with an FTS5 index over titles and
// page text. It stands in for Confluence when no credentials are set.
type LocalStore struct {
	db   *sql.DB
	base string
}

// OpenLocal opens or creates the store and applies the schema.
func OpenLocal(cfg LocalConfig) (*LocalStore, error) {
	dsn := ":memory:"
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("wiki: create data dir: %w", err)
		}
		dsn = filepath.Join(cfg.DataDir, "pages.db")
	}

	db, err := openDB("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("wiki: open database: %w", err)
	}
	if cfg.DataDir == "" {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("wiki: pragma %q: %w", p, err)
		}
	}

	base := cfg.BaseURL
	if base == "" {
		base = DefaultLocalBaseURL
	}
	s := &LocalStore{db: db, base: strings.TrimRight(base, "/")}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("wiki: migration: %w", err)
	}
	return s, nil
}

// Close releases the database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

func (s *LocalStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS pages (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			space      TEXT NOT NULL,
			body       TEXT NOT NULL,
			text       TEXT NOT NULL,
			webui      TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_pages_space ON pages(space);

		CREATE VIRTUAL TABLE IF NOT EXISTS pages_fts USING fts5(
			title,
			text,
			content='pages',
			content_rowid='rowid'
		);

		CREATE TRIGGER IF NOT EXISTS pages_fts_insert AFTER INSERT ON pages BEGIN
			INSERT INTO pages_fts(rowid, title, text) VALUES (new.rowid, new.title, new.text);
		END;

		CREATE TRIGGER IF NOT EXISTS pages_fts_delete AFTER DELETE ON pages BEGIN
			INSERT INTO pages_fts(pages_fts, rowid, title, text) VALUES ('delete', old.rowid, old.title, old.text);
		END;

		CREATE TRIGGER IF NOT EXISTS pages_fts_update AFTER UPDATE ON pages BEGIN
			INSERT INTO pages_fts(pages_fts, rowid, title, text) VALUES ('delete', old.rowid, old.title, old.text);
			INSERT INTO pages_fts(rowid, title, text) VALUES (new.rowid, new.title, new.text);
		END;
	`)
	return err
}

// AddPage inserts or replaces a page. An empty webui path defaults to
// /display/<space>/<title>.
func (s *LocalStore) AddPage(ctx context.Context, p Page, webui string) error {
	if p.ID == "" || p.Title == "" {
		return errors.New("wiki: page id and title are required")
	}
	if webui == "" {
		webui = "/display/" + p.Space + "/" + strings.ReplaceAll(p.Title, " ", "+")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (id, title, space, body, text, webui)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			space      = excluded.space,
			body       = excluded.body,
			text       = excluded.text,
			webui      = excluded.webui,
			updated_at = datetime('now')`,
		p.ID, p.Title, p.Space, p.Body, markup.Normalize(p.Body), webui)
	if err != nil {
		return fmt.Errorf("wiki: add page %s: %w", p.ID, err)
	}
	return nil
}

type seedPage struct {
	page  Page
	webui string
}

var demoPages = []seedPage{
	{Page{ID: "101", Title: "Onboarding Guide", Space: "ENG",
		Body: "<p>Welcome to the team! This guide will help you get started.</p>"}, "/display/ENG/Onboarding"},
	{Page{ID: "102", Title: "API Documentation", Space: "DEV",
		Body: "<p>Our API provides endpoints for managing confluence pages.</p>"}, "/display/DEV/API+Documentation"},
	{Page{ID: "103", Title: "Release Notes v1.0", Space: "ENG",
		Body: "<p>Version 1.0 includes initial release of the MCP server.</p>"}, ""},
}

// Seed loads the demo pages. It is safe to call more than once.
func (s *LocalStore) Seed(ctx context.Context) error {
	for _, d := range demoPages {
		if err := s.AddPage(ctx, d.page, d.webui); err != nil {
			return err
		}
	}
	return nil
}

// Search matches every word of query against titles and page text, best
// match first.
func (s *LocalStore) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	match := sanitizeFTS(query)
	if match == "" {
		return []Result{}, nil
	}
	return s.results(ctx, `
		SELECT p.id, p.title, p.webui
		FROM pages_fts f
		JOIN pages p ON p.rowid = f.rowid
		WHERE pages_fts MATCH ?
		ORDER BY f.rank, p.rowid
		LIMIT ?`, match, limit)
}

// ListBySpace returns the pages of a space in insertion order.
func (s *LocalStore) ListBySpace(ctx context.Context, space string, limit int) ([]Result, error) {
	return s.results(ctx, `
		SELECT id, title, webui FROM pages
		WHERE space = ?
		ORDER BY rowid
		LIMIT ?`, space, limit)
}

func (s *LocalStore) results(ctx context.Context, query string, args ...any) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("wiki: query pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []Result{}
	for rows.Next() {
		var r Result
		var webui string
		if err := rows.Scan(&r.ID, &r.Title, &webui); err != nil {
			return nil, err
		}
		r.Link = pageLink(s.base, webui)
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetPage returns a stored page or a not-found error.
func (s *LocalStore) GetPage(ctx context.Context, id string) (*Page, error) {
	var p Page
	var webui string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, space, body, webui FROM pages WHERE id = ?`, id,
	).Scan(&p.ID, &p.Title, &p.Space, &p.Body, &webui)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.NotFound("Page", id)
	}
	if err != nil {
		return nil, fmt.Errorf("wiki: get page %s: %w", id, err)
	}
	p.Link = pageLink(s.base, webui)
	return &p, nil
}

// Ping checks that the database answers.
func (s *LocalStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BaseURL returns the prefix used for page links.
func (s *LocalStore) BaseURL() string { return s.base }

// sanitizeFTS quotes every word so user input is matched literally rather
// than parsed as FTS5 syntax.
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	quoted := words[:0]
	for _, w := range words {
		w = strings.Trim(w, `"`)
		if w == "" {
			continue
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(w, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}
