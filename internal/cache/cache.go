// Package cache persists fetched video payloads in SQLite so repeated
// summarize and QA requests for the same video skip yt-dlp.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Cache is a keyed payload store backed by SQLite. All public methods are
// safe for concurrent use (SQLite serializes writes).
type Cache struct {
	db    *sql.DB
	owned bool
	now   func() time.Time
}

// Open creates or opens a cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	c, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// New wraps an existing database handle, creating the schema if needed.
// The caller keeps ownership of db.
func New(db *sql.DB) (*Cache, error) {
	c := &Cache{db: db, now: time.Now}
	if err := c.migrate(); err != nil {
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return c, nil
}

// Close closes the database if the cache opened it.
func (c *Cache) Close() error {
	if !c.owned {
		return nil
	}
	return c.db.Close()
}

func (c *Cache) migrate() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS videos (
			id         TEXT PRIMARY KEY,
			payload    TEXT NOT NULL,
			fetched_at INTEGER NOT NULL
		)
	`)
	return err
}

// Get returns the payload stored under key when it is younger than
// maxAge. A maxAge of zero accepts any age. The bool is false on a miss.
func (c *Cache) Get(ctx context.Context, key string, maxAge time.Duration) ([]byte, bool, error) {
	var payload string
	var fetched int64
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM videos WHERE id = ?`, key,
	).Scan(&payload, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}

	if maxAge > 0 && c.now().Sub(time.Unix(fetched, 0)) > maxAge {
		return nil, false, nil
	}
	return []byte(payload), true, nil
}

// Put upserts the payload for key and stamps it with the current time.
func (c *Cache) Put(ctx context.Context, key string, payload []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO videos (id, payload, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE
		 SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		key, string(payload), c.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Missing keys are a no-op.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Prune deletes entries fetched more than olderThan ago and reports how
// many were removed.
func (c *Cache) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := c.now().Add(-olderThan).Unix()
	res, err := c.db.ExecContext(ctx, `DELETE FROM videos WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return res.RowsAffected()
}
