// Package cache stores extracted snapshot streams in a local SQLite
// database. Extraction is the slow step of a run; keying its output by the
// commit being extracted lets repeated runs on the same revision skip the
// extraction tool entirely.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"affected/internal/errors"
	"affected/internal/logging"
)

// Cache is an open handle on the extraction cache database.
type Cache struct {
	conn   *sql.DB
	logger *logging.Logger
	dbPath string
}

const schema = `
CREATE TABLE IF NOT EXISTS extractions (
	key        TEXT PRIMARY KEY,
	digest     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	data       BLOB NOT NULL
);
`

// Open opens or creates the cache database at the given path, creating
// parent directories as needed.
func Open(dbPath string, logger *logging.Logger) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(errors.CacheError, err, "creating cache directory")
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(errors.CacheError, err, "opening cache database")
	}

	// Set pragmas for performance and reliability
	pragmas := []string{
		"PRAGMA journal_mode=WAL",   // Write-Ahead Logging for better concurrency
		"PRAGMA synchronous=NORMAL", // Balance between safety and performance
		"PRAGMA busy_timeout=5000",  // Wait up to 5 seconds on lock
		"PRAGMA temp_store=MEMORY",  // Use memory for temp tables
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, errors.Wrap(errors.CacheError, err, "setting pragma")
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(errors.CacheError, err, "initializing cache schema")
	}

	return &Cache{conn: conn, logger: logger, dbPath: dbPath}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Get returns the cached snapshot stream for the key, or ok=false on a
// miss. A stored blob whose digest no longer matches is treated as a miss
// and evicted.
func (c *Cache) Get(key string) ([]byte, bool, error) {
	var digest string
	var blob []byte
	err := c.conn.QueryRow("SELECT digest, data FROM extractions WHERE key = ?", key).Scan(&digest, &blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.CacheError, err, "reading cache entry %s", key)
	}

	data, err := decompress(blob)
	if err != nil || Digest(data) != digest {
		c.logger.Warn("evicting corrupt cache entry", map[string]interface{}{
			"key": key,
		})
		_, _ = c.conn.Exec("DELETE FROM extractions WHERE key = ?", key)
		return nil, false, nil
	}
	return data, true, nil
}

// Put stores a snapshot stream under the key, replacing any previous entry.
func (c *Cache) Put(key string, data []byte) error {
	blob, err := compress(data)
	if err != nil {
		return errors.Wrap(errors.CacheError, err, "compressing cache entry %s", key)
	}
	_, err = c.conn.Exec(
		"INSERT OR REPLACE INTO extractions (key, digest, created_at, data) VALUES (?, ?, ?, ?)",
		key, Digest(data), time.Now().Unix(), blob,
	)
	if err != nil {
		return errors.Wrap(errors.CacheError, err, "writing cache entry %s", key)
	}
	return nil
}

// GC deletes entries older than maxAge and returns how many were removed.
func (c *Cache) GC(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := c.conn.Exec("DELETE FROM extractions WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, errors.Wrap(errors.CacheError, err, "pruning cache")
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		c.logger.Info("pruned extraction cache", map[string]interface{}{
			"removed": n,
			"path":    c.dbPath,
		})
	}
	return n, nil
}

// Len returns the number of cached extractions.
func (c *Cache) Len() (int, error) {
	var n int
	if err := c.conn.QueryRow("SELECT COUNT(*) FROM extractions").Scan(&n); err != nil {
		return 0, errors.Wrap(errors.CacheError, err, "counting cache entries")
	}
	return n, nil
}

// Digest returns the content digest used to detect corrupt entries.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(data, nil), nil
}

func decompress(blob []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(blob, nil)
}
