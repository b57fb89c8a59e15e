// Package cache stores compiled programs in a SQLite database keyed by the
// content hash of their optimized run stream.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/bfqbe/compiler/hash"
)

// ErrMiss indicates the requested artifact is not cached.
var ErrMiss = errors.New("cache miss")

var log = commonlog.GetLogger("bfqbe.cache")

// Cache is a content-addressed artifact store.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS artifacts (
		hash    TEXT PRIMARY KEY,
		data    BLOB NOT NULL,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened cache %s", path)
	return &Cache{db: db, path: path}, nil
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.path
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get retrieves the artifact for h, or ErrMiss.
func (c *Cache) Get(h [32]byte) (*Artifact, error) {
	var data []byte
	err := c.db.QueryRow("SELECT data FROM artifacts WHERE hash = ?", hash.Hex(h)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("querying artifact: %w", err)
	}

	a, err := UnmarshalArtifact(data)
	if err != nil {
		return nil, err
	}
	if a.Hash != h {
		return nil, fmt.Errorf("cache: artifact %s stored under wrong key", hash.Hex(h))
	}
	return a, nil
}

// Put stores an artifact, replacing any previous entry for its hash.
func (c *Cache) Put(a *Artifact) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a.Created == 0 {
		a.Created = time.Now().Unix()
	}
	data, err := MarshalArtifact(a)
	if err != nil {
		return fmt.Errorf("encoding artifact: %w", err)
	}

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO artifacts (hash, data, created) VALUES (?, ?, ?)",
		hash.Hex(a.Hash), data, a.Created,
	)
	if err != nil {
		return fmt.Errorf("saving artifact: %w", err)
	}
	return nil
}

// Len returns the number of cached artifacts.
func (c *Cache) Len() (int, error) {
	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM artifacts").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting artifacts: %w", err)
	}
	return n, nil
}

// Prune deletes artifacts created before cutoff and returns how many were
// removed.
func (c *Cache) Prune(cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.Exec("DELETE FROM artifacts WHERE created < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning artifacts: %w", err)
	}
	return res.RowsAffected()
}
