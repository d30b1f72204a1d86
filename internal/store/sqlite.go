// ABOUTME: SQLite implementation of the CookieStore interface using modernc.org/sqlite
// ABOUTME: Persists the session cookie jar with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements CookieStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// The jar holds a bearer credential
	if err := os.Chmod(path, 0600); err != nil {
		logger.Warn("restricting cookie jar permissions", "path", path, "error", err)
	}

	logger.Debug("SQLite cookie jar initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS cookies (
			name       TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			expires_at TEXT,
			updated_at TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetCookie retrieves a cookie by name. Expiry is left to the caller.
func (s *SQLiteStore) GetCookie(ctx context.Context, name string) (*Cookie, error) {
	var (
		c         Cookie
		expiresAt sql.NullString
		updatedAt string
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT name, value, expires_at, updated_at FROM cookies WHERE name = ?`, name,
	).Scan(&c.Name, &c.Value, &expiresAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying cookie: %w", err)
	}

	if expiresAt.Valid && expiresAt.String != "" {
		c.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing expires_at: %w", err)
		}
	}
	c.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &c, nil
}

// SetCookie inserts or replaces a cookie.
func (s *SQLiteStore) SetCookie(ctx context.Context, cookie *Cookie) error {
	var expiresAt sql.NullString
	if !cookie.ExpiresAt.IsZero() {
		expiresAt = sql.NullString{String: cookie.ExpiresAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	updatedAt := cookie.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cookies (name, value, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, cookie.Name, cookie.Value, expiresAt, updatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storing cookie: %w", err)
	}
	return nil
}

// DeleteCookie removes a cookie by name.
func (s *SQLiteStore) DeleteCookie(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cookies WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting cookie: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
