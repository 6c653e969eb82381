// Package store persists ingested articles and their review status in an
// embedded SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"newsreel/internal/types"
)

// ErrNotFound is returned when an article ID does not exist.
var ErrNotFound = errors.New("store: article not found")

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	body         TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	source_url   TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'pending',
	published_at TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status);
`

type Store struct {
	db *sql.DB
}

// Open opens (creating if missing) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveArticle inserts an article, assigning an ID and pending status when
// absent. Re-ingesting the same URL is a no-op so sources can be polled;
// the returned bool reports whether a new row was inserted.
func (s *Store) SaveArticle(ctx context.Context, a *types.Article) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = types.StatusPending
	}
	if a.CreatedAt == "" {
		a.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	if a.SourceURL != "" {
		var existing string
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM articles WHERE source_url = ?`, a.SourceURL).Scan(&existing)
		if err == nil {
			a.ID = existing
			return false, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return false, err
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO articles (id, title, body, source, source_url, status, published_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Body, a.Source, a.SourceURL, a.Status, a.PublishedAt, a.CreatedAt)
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetArticle fetches one article by ID.
func (s *Store) GetArticle(ctx context.Context, id string) (*types.Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, body, source, source_url, status, published_at, created_at
		 FROM articles WHERE id = ?`, id)

	var a types.Article
	err := row.Scan(&a.ID, &a.Title, &a.Body, &a.Source, &a.SourceURL,
		&a.Status, &a.PublishedAt, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListArticles returns articles, optionally filtered by status, newest
// first.
func (s *Store) ListArticles(ctx context.Context, status string) ([]types.Article, error) {
	query := `SELECT id, title, body, source, source_url, status, published_at, created_at
	          FROM articles`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []types.Article
	for rows.Next() {
		var a types.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.Source, &a.SourceURL,
			&a.Status, &a.PublishedAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// SetStatus updates one article's review status.
func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
