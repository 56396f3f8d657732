package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps results in a SQLite database: one row per expression in
// queries and one row per article id in articles.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and its schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS queries (
			expression TEXT PRIMARY KEY,
			count INTEGER NOT NULL,
			complete INTEGER NOT NULL DEFAULT 0,
			fetched_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			expression TEXT NOT NULL REFERENCES queries(expression) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			article_id TEXT NOT NULL,
			PRIMARY KEY (expression, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_article_id ON articles(article_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Lookup(ctx context.Context, expr string) (Result, bool, error) {
	var r Result
	err := s.db.QueryRowContext(ctx,
		`SELECT count, complete FROM queries WHERE expression = ?`, expr,
	).Scan(&r.Count, &r.Complete)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("looking up query: %w", err)
	}
	if !r.Complete {
		return r, true, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT article_id FROM articles WHERE expression = ? ORDER BY position`, expr)
	if err != nil {
		return Result{}, false, fmt.Errorf("loading articles: %w", err)
	}
	defer rows.Close()

	r.IDs = make([]string, 0, r.Count)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return Result{}, false, fmt.Errorf("scanning article: %w", err)
		}
		r.IDs = append(r.IDs, id)
	}
	if err := rows.Err(); err != nil {
		return Result{}, false, fmt.Errorf("loading articles: %w", err)
	}
	return r, true, nil
}

func (s *SQLiteStore) Store(ctx context.Context, expr string, r Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE expression = ?`, expr); err != nil {
		return fmt.Errorf("clearing articles: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO queries (expression, count, complete, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(expression) DO UPDATE SET count = excluded.count,
		 complete = excluded.complete, fetched_at = excluded.fetched_at`,
		expr, r.Count, r.Complete, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("storing query: %w", err)
	}

	if r.Complete && len(r.IDs) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO articles (expression, position, article_id) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing article insert: %w", err)
		}
		defer stmt.Close()
		for i, id := range r.IDs {
			if _, err := stmt.ExecContext(ctx, expr, i, id); err != nil {
				return fmt.Errorf("storing article %s: %w", id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	for _, stmt := range []string{`DELETE FROM articles`, `DELETE FROM queries`} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
	}
	return nil
}
