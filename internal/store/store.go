// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists papers, categories, job history, and digest
// reports in SQLite. The unique identifier column on papers is the
// deduplication guard: Save inserts each new record in its own
// transaction and treats an existing identifier as a skip.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-search/internal/apperr"
	"github.com/pdiddy/paper-search/pkg/types"
)

const defaultDBPath = "data/papers.db"

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// nowFunc is the store clock. Tests replace it.
var nowFunc = time.Now

// Store manages the paper database.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens or creates the SQLite database at cfg.Path and creates the
// schema if it does not exist.
func Open(cfg types.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = defaultDBPath
	}
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperr.New(apperr.Fatal, "store.open", fmt.Errorf("creating database directory: %w", err))
		}
	}

	// Transactions begin IMMEDIATE so a writer waits on busy_timeout for
	// the lock instead of failing when a read upgrades to a write.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, apperr.New(apperr.Fatal, "store.open", fmt.Errorf("opening database: %w", err))
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, apperr.New(apperr.Fatal, "store.open", fmt.Errorf("creating schema: %w", err))
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			identifier TEXT NOT NULL UNIQUE,
			source TEXT NOT NULL,
			title TEXT NOT NULL,
			authors TEXT NOT NULL DEFAULT '',
			abstract TEXT NOT NULL DEFAULT '',
			summary TEXT,
			summary_source TEXT,
			status TEXT NOT NULL DEFAULT 'unprocessed',
			published TEXT,
			pdf_url TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_status ON papers(status)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_created_at ON papers(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_published ON papers(published)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS paper_categories (
			paper_id INTEGER NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
			category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
			PRIMARY KEY (paper_id, category_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_paper_categories_category ON paper_categories(category_id)`,
		`CREATE TABLE IF NOT EXISTS job_history (
			id TEXT PRIMARY KEY,
			job_type TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			completed_at TEXT,
			status TEXT NOT NULL,
			result TEXT,
			error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_job_history_started ON job_history(started_at)`,
		`CREATE TABLE IF NOT EXISTS reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			report_type TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save persists records that are not already stored and returns how many
// were inserted. A record whose identifier exists is skipped without
// updating the stored row. Each insert commits on its own, so an error
// part-way through leaves earlier inserts in place.
func (s *Store) Save(ctx context.Context, records []types.Record) (int, error) {
	saved := 0
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		if strings.TrimSpace(r.ID) == "" {
			s.logger.Warn("skipping record without identifier", "source", r.Source, "title", r.Title)
			continue
		}

		inserted, err := s.insertIfAbsent(ctx, r)
		switch {
		case apperr.Is(err, apperr.Duplicate):
			s.logger.Debug("identifier inserted concurrently, skipping", "identifier", r.ID)
		case err != nil:
			return saved, err
		case inserted:
			saved++
		}
	}
	return saved, nil
}

func (s *Store) insertIfAbsent(ctx context.Context, r types.Record) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, apperr.New(apperr.Fatal, "store.save", fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM papers WHERE identifier = ?`, r.ID).Scan(&exists)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, apperr.New(apperr.Fatal, "store.save", fmt.Errorf("checking %s: %w", r.ID, err))
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO papers (identifier, source, title, authors, abstract, status, published, pdf_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Source), r.Title, r.Authors, r.Abstract, string(types.StateUnprocessed),
		formatTime(r.Published), r.PDFURL, formatTime(nowFunc()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, apperr.New(apperr.Duplicate, "store.save", err)
		}
		return false, apperr.New(apperr.Fatal, "store.save", fmt.Errorf("inserting %s: %w", r.ID, err))
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return false, apperr.New(apperr.Duplicate, "store.save", err)
		}
		return false, apperr.New(apperr.Fatal, "store.save", fmt.Errorf("committing %s: %w", r.ID, err))
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseTime(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timeLayout, ns.String); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, ns.String); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
