// Package inventory persists crawl results in an embedded SQLite
// database so successive crawls can be compared and exported without
// re-walking the site.
package inventory

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/spdoc/spdoc/internal/crawl"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNoRuns is returned by LatestRun when the store is empty.
var ErrNoRuns = errors.New("inventory: no crawl runs recorded")

// Run is one recorded crawl pass.
type Run struct {
	ID        int64
	SiteURL   string
	CrawledAt time.Time
	Stats     crawl.Stats
}

// Store is a single-writer SQLite store for crawl inventories.
// Use ":memory:" as the path in tests.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the inventory database at dbPath and
// applies any pending schema migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("opening inventory database", slog.String("path", dbPath))

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("inventory: creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("inventory: opening database: %w", err)
	}

	// Single writer: the crawler is sequential and SQLite prefers one
	// connection for write workloads.
	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("inventory: setting pragmas: %w", err)
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// runMigrations applies pending schema migrations using the goose v3
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("inventory: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("inventory: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("inventory: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// SaveRun records one crawl pass and all its documents in a single
// transaction, returning the new run's ID.
func (s *Store) SaveRun(ctx context.Context, siteURL string, docs []crawl.Document, stats crawl.Stats) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("inventory: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO crawl_runs
			(site_url, crawled_at, libraries_found, folders_traversed,
			 files_found, files_skipped, errors, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		siteURL, time.Now().UTC().Format(time.RFC3339),
		stats.LibrariesFound, stats.FoldersTraversed,
		stats.FilesFound, stats.FilesSkipped, stats.Errors,
		stats.Elapsed.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("inventory: inserting run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("inventory: reading run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents
			(run_id, file_name, extension, size_bytes, mime_type,
			 library_name, folder_path, full_path, depth,
			 created_at, modified_at, created_by, modified_by,
			 web_url, item_id, parent_path)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("inventory: preparing document insert: %w", err)
	}
	defer stmt.Close()

	for i := range docs {
		d := &docs[i]

		if _, err := stmt.ExecContext(ctx,
			runID, d.FileName, d.Extension, d.SizeBytes, d.MimeType,
			d.LibraryName, d.FolderPath, d.FullPath, d.Depth,
			d.CreatedAt.UTC().Format(time.RFC3339), d.ModifiedAt.UTC().Format(time.RFC3339),
			d.CreatedBy, d.ModifiedBy, d.WebURL, d.ItemID, d.ParentPath,
		); err != nil {
			return 0, fmt.Errorf("inventory: inserting document %q: %w", d.FileName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("inventory: committing run: %w", err)
	}

	s.logger.Info("saved crawl run",
		slog.Int64("run_id", runID),
		slog.Int("documents", len(docs)),
	)

	return runID, nil
}

// Documents returns all documents recorded for a run, in insertion order.
func (s *Store) Documents(ctx context.Context, runID int64) ([]crawl.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_name, extension, size_bytes, mime_type,
			library_name, folder_path, full_path, depth,
			created_at, modified_at, created_by, modified_by,
			web_url, item_id, parent_path
			FROM documents WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("inventory: querying documents: %w", err)
	}
	defer rows.Close()

	var docs []crawl.Document

	for rows.Next() {
		var (
			d                     crawl.Document
			createdAt, modifiedAt string
		)

		if err := rows.Scan(
			&d.FileName, &d.Extension, &d.SizeBytes, &d.MimeType,
			&d.LibraryName, &d.FolderPath, &d.FullPath, &d.Depth,
			&createdAt, &modifiedAt, &d.CreatedBy, &d.ModifiedBy,
			&d.WebURL, &d.ItemID, &d.ParentPath,
		); err != nil {
			return nil, fmt.Errorf("inventory: scanning document: %w", err)
		}

		d.CreatedAt = parseStoredTime(createdAt)
		d.ModifiedAt = parseStoredTime(modifiedAt)
		d.SizeDisplay = crawl.FormatSize(d.SizeBytes)

		docs = append(docs, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inventory: iterating documents: %w", err)
	}

	return docs, nil
}

// Runs returns all recorded crawl runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, site_url, crawled_at, libraries_found, folders_traversed,
			files_found, files_skipped, errors, elapsed_ms
			FROM crawl_runs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("inventory: querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run

	for rows.Next() {
		var (
			r         Run
			crawledAt string
			elapsedMS int64
		)

		if err := rows.Scan(
			&r.ID, &r.SiteURL, &crawledAt,
			&r.Stats.LibrariesFound, &r.Stats.FoldersTraversed,
			&r.Stats.FilesFound, &r.Stats.FilesSkipped, &r.Stats.Errors,
			&elapsedMS,
		); err != nil {
			return nil, fmt.Errorf("inventory: scanning run: %w", err)
		}

		r.CrawledAt = parseStoredTime(crawledAt)
		r.Stats.Elapsed = time.Duration(elapsedMS) * time.Millisecond

		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inventory: iterating runs: %w", err)
	}

	return runs, nil
}

// LatestRun returns the most recent crawl run.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := s.Runs(ctx)
	if err != nil {
		return nil, err
	}

	if len(runs) == 0 {
		return nil, ErrNoRuns
	}

	return &runs[0], nil
}

// parseStoredTime parses an RFC3339 value written by this store.
// A zero time is returned for unparseable values rather than failing the
// whole read.
func parseStoredTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return t
}
