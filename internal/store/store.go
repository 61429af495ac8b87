// Package store owns the normalized relational schema: the
// transactional merge writer and the query engine on top of it.
//
// A Store holds one persistent connection guarded by one exclusive
// lock. Every operation, read or write, acquires the lock for its full
// duration. All parsing happens before the lock is taken, so disk-bound
// work never holds it.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mediastash/mediastash/internal/db"
)

// ErrMediaNotFound is returned by Context for an unknown media id.
var ErrMediaNotFound = errors.New("media not found")

// Store is the single-writer owned resource wrapping the database.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	log  zerolog.Logger
}

// Open opens the store at path, creating the schema if needed.
func Open(log zerolog.Logger, path string) (*Store, error) {
	d, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: d, path: path, log: log}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// StorageInfo reports the on-disk size of the database file.
type StorageInfo struct {
	DBSizeBytes int64 `json:"db_size_bytes"`
}

// Storage returns storage usage for the database file.
func (s *Store) Storage() (StorageInfo, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return StorageInfo{}, nil
		}
		return StorageInfo{}, fmt.Errorf("failed to stat database: %w", err)
	}
	return StorageInfo{DBSizeBytes: info.Size()}, nil
}
