// Package cache stores provider search results in a local SQLite file
// so repeated runs on the same keyword skip the network. It is a pure
// cache: entries expire and the file can be deleted at any time.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/paperfetch/paperfetch/internal/paper"
)

// DefaultTTL is how long a cached search result stays valid. Citation
// counts drift, so entries go stale on purpose.
const DefaultTTL = 24 * time.Hour

const cacheFile = "searches.db"

// Store is a TTL cache keyed by (provider, query, limit).
type Store struct {
	db  *sql.DB
	ttl time.Duration

	// now is swappable for expiry tests.
	now func() time.Time
}

// Open creates or opens the cache database under dir.
func Open(dir string, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, cacheFile))
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &Store{db: db, ttl: ttl, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS searches (
			provider TEXT NOT NULL,
			query TEXT NOT NULL,
			result_limit INTEGER NOT NULL,
			results_json TEXT NOT NULL,
			cached_at INTEGER NOT NULL,
			PRIMARY KEY (provider, query, result_limit)
		);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the cached result set, or ok=false when the entry is
// missing or expired. Expired rows are removed on read.
func (s *Store) Get(provider, query string, limit int) ([]paper.Paper, bool, error) {
	var payload string
	var cachedAt int64
	err := s.db.QueryRow(
		`SELECT results_json, cached_at FROM searches
		 WHERE provider = ? AND query = ? AND result_limit = ?`,
		provider, query, limit,
	).Scan(&payload, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache: %w", err)
	}

	if s.now().Sub(time.Unix(cachedAt, 0)) > s.ttl {
		_, _ = s.db.Exec(
			`DELETE FROM searches WHERE provider = ? AND query = ? AND result_limit = ?`,
			provider, query, limit,
		)
		return nil, false, nil
	}

	var papers []paper.Paper
	if err := json.Unmarshal([]byte(payload), &papers); err != nil {
		return nil, false, fmt.Errorf("decoding cached results: %w", err)
	}
	return papers, true, nil
}

// Put stores a result set, replacing any previous entry for the key.
// Empty result sets are cached too: a provider that found nothing will
// find nothing again within the TTL.
func (s *Store) Put(provider, query string, limit int, papers []paper.Paper) error {
	payload, err := json.Marshal(papers)
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO searches (provider, query, result_limit, results_json, cached_at)
		 VALUES (?, ?, ?, ?, ?)`,
		provider, query, limit, string(payload), s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}
