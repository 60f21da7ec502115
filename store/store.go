// Package store keeps code by content. Trees are stored in their canonical
// encoding under their content hash, so alpha-equivalent trees share one
// entry.
package store

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/sable/ast"
	"github.com/chazu/sable/ast/hash"
)

var log = commonlog.GetLogger("sable.store")

// ErrNotFound indicates no tree is stored under the requested hash.
var ErrNotFound = errors.New("code not found")

// Store is a SQLite-backed code store.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the store at path. ":memory:" gives a private
// in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS code (
		hash TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	log.Debugf("opened %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key returns the key n is stored under.
func Key(n ast.Node) (string, error) {
	sum, err := hash.Sum(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum[:]), nil
}

// Put stores n and returns its key. Storing an equivalent tree again keeps
// the first entry.
func (s *Store) Put(n ast.Node) (string, error) {
	key, err := Key(n)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", n.Kind(), err)
	}
	data, err := ast.Canonical(n)
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", n.Kind(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		"INSERT OR IGNORE INTO code (hash, kind, data) VALUES (?, ?, ?)",
		key, n.Kind().String(), data,
	)
	if err != nil {
		return "", fmt.Errorf("saving %s: %w", key, err)
	}
	return key, nil
}

// Get loads the tree stored under key.
func (s *Store) Get(key string) (ast.Node, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM code WHERE hash = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("querying %s: %w", key, err)
	}
	return ast.Unmarshal(data)
}

// Has reports whether key is stored.
func (s *Store) Has(key string) (bool, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM code WHERE hash = ?", key).Scan(&n); err != nil {
		return false, fmt.Errorf("querying %s: %w", key, err)
	}
	return n > 0, nil
}

// Keys lists the stored keys of the given kind, or of every kind when kind
// is empty, in key order.
func (s *Store) Keys(kind string) ([]string, error) {
	q, args := "SELECT hash FROM code ORDER BY hash", []any{}
	if kind != "" {
		q, args = "SELECT hash FROM code WHERE kind = ? ORDER BY hash", []any{kind}
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("listing keys: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
