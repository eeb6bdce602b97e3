// Package cache persists remote web-service responses keyed by deterministic
// cache keys, one bbolt bucket per site. Gateways read through it with a
// ReadMode policy and invalidate by key prefix after writes.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

// DefaultTTL is how long a snapshot is considered fresh unless the read
// overrides it.
const DefaultTTL = 3 * time.Hour

// ErrNotCached indicates that no snapshot exists for the requested key.
var ErrNotCached = errors.New("no cached response for key")

// Snapshot is one stored response payload with its fetch time.
type Snapshot struct {
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Expired reports whether the snapshot is older than ttl.
func (s *Snapshot) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.FetchedAt) > ttl
}

// Store is the bbolt-backed snapshot store.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open creates or opens the snapshot store at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot cache: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Key builds a deterministic cache key from semantic parameters. Identical
// queries must produce identical keys regardless of call site.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

func siteBucket(siteID string) []byte {
	return []byte("site:" + siteID)
}

// Put stores payload under (siteID, key), stamped with the current time.
func (s *Store) Put(siteID, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %q: %w", key, err)
	}

	snap := Snapshot{Payload: raw, FetchedAt: s.now()}
	data, err := json.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for %q: %w", key, err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(siteBucket(siteID))
		if err != nil {
			return fmt.Errorf("failed to create site bucket: %w", err)
		}
		if err := bucket.Put([]byte(key), data); err != nil {
			return fmt.Errorf("failed to store snapshot: %w", err)
		}
		return nil
	})
}

// Get retrieves the snapshot stored under (siteID, key).
// Returns ErrNotCached if nothing is stored; expiry is the caller's decision.
func (s *Store) Get(siteID, key string) (*Snapshot, error) {
	var snap *Snapshot

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(siteBucket(siteID))
		if bucket == nil {
			return ErrNotCached
		}
		data := bucket.Get([]byte(key))
		if data == nil {
			return ErrNotCached
		}
		snap = &Snapshot{}
		if err := json.Unmarshal(data, snap); err != nil {
			return fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// Invalidate removes the snapshot under (siteID, key). Removing a missing
// key is not an error.
func (s *Store) Invalidate(siteID, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(siteBucket(siteID))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
}

// InvalidatePrefix removes every snapshot for the site whose key starts with
// prefix. Writes use this to drop all list views their change could affect.
func (s *Store) InvalidatePrefix(siteID, prefix string) error {
	p := []byte(prefix)
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(siteBucket(siteID))
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()
		var stale [][]byte
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			key := make([]byte, len(k))
			copy(key, k)
			stale = append(stale, key)
		}

		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("failed to invalidate %q: %w", k, err)
			}
		}
		return nil
	})
}

// PurgeSite drops every snapshot belonging to one site.
func (s *Store) PurgeSite(siteID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(siteBucket(siteID)) == nil {
			return nil
		}
		return tx.DeleteBucket(siteBucket(siteID))
	})
}
