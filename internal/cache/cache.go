// Package cache is a local SQLite cache for seed-query vectors, so repeated
// recommendation queries do not re-embed the same text.
package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // driver registration only

	"mspro-labs/book-buddy/internal/ai"
)

type Cache struct {
	db *sql.DB
}

// Open connects to the cache database and ensures the schema exists. WAL
// mode and a busy timeout prevent "database locked" errors when commands
// overlap.
func Open(path string) (*Cache, error) {
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS seed_vectors (
	  query_text TEXT NOT NULL,
	  model TEXT NOT NULL,
	  embedding BLOB NOT NULL,
	  created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	  PRIMARY KEY (query_text, model)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached vector for a query under the given model, or
// (nil, nil) on a miss.
func (c *Cache) Get(queryText, model string) ([]float32, error) {
	var blob []byte
	err := c.db.QueryRow(
		`SELECT embedding FROM seed_vectors WHERE query_text = ? AND model = ?`,
		queryText, model,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}
	return ai.BytesToFloats(blob)
}

// Put stores a query vector. Re-inserting the same key is a no-op.
func (c *Cache) Put(queryText, model string, vector []float32) error {
	blob, err := ai.FloatsToBytes(vector)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(
		`INSERT OR IGNORE INTO seed_vectors (query_text, model, embedding) VALUES (?, ?, ?)`,
		queryText, model, blob,
	)
	return err
}

// Entry is one cached query, for the history listing.
type Entry struct {
	QueryText string
	Model     string
	CreatedAt time.Time
}

// List returns all cached queries, newest first.
func (c *Cache) List() ([]Entry, error) {
	rows, err := c.db.Query(`SELECT query_text, model, created_at FROM seed_vectors ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.QueryText, &e.Model, &e.CreatedAt); err == nil {
			entries = append(entries, e)
		}
	}
	return entries, rows.Err()
}

// Clear removes one cached query (all models). Returns entries removed.
func (c *Cache) Clear(queryText string) (int64, error) {
	res, err := c.db.Exec(`DELETE FROM seed_vectors WHERE query_text = ?`, queryText)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearAll wipes the entire cache. Returns entries removed.
func (c *Cache) ClearAll() (int64, error) {
	res, err := c.db.Exec(`DELETE FROM seed_vectors`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
