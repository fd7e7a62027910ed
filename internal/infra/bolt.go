package infra

import (
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

// NewBoltDB opens (or creates) the BoltDB file at path. Opening fails after a
// second if another process holds the file lock.
func NewBoltDB(path string) (*bolt.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt path is required")
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	return db, nil
}
