package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/morfo/internal/app"
	"github.com/hylla/morfo/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository stores submission history in sqlite.
type Repository struct {
	db *sql.DB
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens in memory.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Each pooled connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			word_count INTEGER NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL,
			status_code INTEGER NOT NULL DEFAULT 0,
			output TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_created_at ON submissions(created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// RecordSubmission inserts one history entry.
func (r *Repository) RecordSubmission(ctx context.Context, entry domain.HistoryEntry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return errors.New("history entry id is required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO submissions(id, mode, summary, word_count, outcome, status_code, output, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		string(entry.Mode),
		entry.Summary,
		entry.WordCount,
		string(entry.Kind),
		entry.StatusCode,
		entry.Output,
		ts(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// ListHistory returns up to limit entries, newest first.
func (r *Repository) ListHistory(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, mode, summary, word_count, outcome, status_code, output, created_at
		FROM submissions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

// GetHistoryEntry returns one entry by id.
func (r *Repository) GetHistoryEntry(ctx context.Context, id string) (domain.HistoryEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, mode, summary, word_count, outcome, status_code, output, created_at
		FROM submissions
		WHERE id = ?
	`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.HistoryEntry{}, app.ErrNotFound
	}
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	return entry, nil
}

// ClearHistory deletes every entry and returns the removed row count.
func (r *Repository) ClearHistory(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM submissions`)
	if err != nil {
		return 0, fmt.Errorf("clear submissions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count cleared submissions: %w", err)
	}
	return n, nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntry decodes one submissions row.
func scanEntry(s scanner) (domain.HistoryEntry, error) {
	var (
		entry     domain.HistoryEntry
		mode      string
		kind      string
		createdAt string
	)
	if err := s.Scan(&entry.ID, &mode, &entry.Summary, &entry.WordCount, &kind, &entry.StatusCode, &entry.Output, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.HistoryEntry{}, err
		}
		return domain.HistoryEntry{}, fmt.Errorf("scan submission: %w", err)
	}
	entry.Mode = domain.Mode(mode)
	entry.Kind = domain.OutcomeKind(kind)
	entry.CreatedAt = parseTS(createdAt)
	return entry, nil
}

// tsLayout keeps a fixed-width fraction so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ts formats timestamps for storage.
func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// parseTS parses stored timestamps, returning the zero time for malformed values.
func parseTS(v string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}
