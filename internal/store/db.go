package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
	bolterrors "go.etcd.io/bbolt/errors"
)

// Bucket names
var (
	bucketSuggestions = []byte("suggestions")
	bucketSessions    = []byte("sessions")
	bucketJobs        = []byte("jobs")
)

var allBuckets = [][]byte{bucketSuggestions, bucketSessions, bucketJobs}

// DB is the durable tier shared by the suggestion cache, session credentials
// and the job ledger. A DB opened without a directory keeps nothing on disk.
type DB struct {
	db *bolt.DB
}

// Open opens (creating if needed) the cache database for a server under baseCacheDir.
// An empty baseCacheDir yields a memory-only DB.
func Open(baseCacheDir, serverURL string) (*DB, error) {
	if baseCacheDir == "" {
		return &DB{}, nil
	}

	dir := baseCacheDir
	if serverURL != "" {
		dir = filepath.Join(baseCacheDir, hashServerURL(serverURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return OpenFile(filepath.Join(dir, "kinotv.db"))
}

// OpenFile opens the database at an explicit path.
func OpenFile(path string) (*DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

func hashServerURL(serverURL string) string {
	normalized := strings.TrimRight(strings.ToLower(serverURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

// Persistent reports whether writes reach disk.
func (d *DB) Persistent() bool {
	return d != nil && d.db != nil
}

func (d *DB) Close() error {
	if d.Persistent() {
		return d.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (d *DB) get(bucket []byte, key string) ([]byte, error) {
	if !d.Persistent() {
		return nil, nil
	}

	var data []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	return data, err
}

// putAll writes every entry in a single transaction.
func (d *DB) putAll(bucket []byte, entries map[string][]byte) error {
	if !d.Persistent() || len(entries) == 0 {
		return nil
	}

	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		for k, v := range entries {
			if err := b.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) delete(bucket []byte, key string) error {
	if !d.Persistent() {
		return nil
	}

	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

func (d *DB) clear(bucket []byte) error {
	if !d.Persistent() {
		return nil
	}

	// Recreate rather than delete under a cursor, which skips keys.
	return d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucket); err != nil && !errors.Is(err, bolterrors.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(bucket)
		return err
	})
}

func (d *DB) isEmpty(bucket []byte) bool {
	if !d.Persistent() {
		return true
	}

	empty := true
	d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		k, _ := b.Cursor().First()
		empty = k == nil
		return nil
	})
	return empty
}
