// Package sites manages the registered course sites: their credentials,
// kept sealed at rest, and the per-site service handles everything else
// hangs off. All cross-site isolation starts here; a handle built for one
// site can never observe another site's cache, queue or token.
package sites

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/edupath/coursesync/internal/crypto"
)

// Site is one registered course site and the account used on it.
type Site struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ServerURL string `json:"server_url"`
	Token     string `json:"token"`
	UserID    int64  `json:"user_id"`
}

// ErrSiteNotFound is returned when a site id is not registered.
var ErrSiteNotFound = errors.New("site not found")

var (
	bucketSites = []byte("sites")
	bucketMeta  = []byte("meta")
	keySalt     = []byte("salt")
)

// Store persists registered sites in bbolt. Tokens are sealed with
// AES-256-GCM under a key derived from the user's passphrase; the rest of
// the record is plain JSON.
type Store struct {
	db  *bbolt.DB
	key []byte
}

// Open opens (or creates) the site store and derives the sealing key from
// the passphrase. The salt is generated on first open and kept alongside
// the sites.
func Open(path, passphrase string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open site store: %w", err)
	}

	var salt []byte
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSites); err != nil {
			return fmt.Errorf("failed to create sites bucket: %w", err)
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return fmt.Errorf("failed to create meta bucket: %w", err)
		}
		if existing := meta.Get(keySalt); existing != nil {
			salt = append([]byte(nil), existing...)
			return nil
		}
		salt, err = crypto.GenerateSalt()
		if err != nil {
			return err
		}
		return meta.Put(keySalt, salt)
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	key, err := crypto.DeriveKey(passphrase, salt)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, key: key}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add registers a site and returns it with a fresh id assigned.
func (s *Store) Add(name, serverURL, token string, userID int64) (*Site, error) {
	if serverURL == "" || token == "" {
		return nil, fmt.Errorf("server URL and token are required")
	}
	site := &Site{
		ID:        uuid.NewString(),
		Name:      name,
		ServerURL: strings.TrimRight(serverURL, "/"),
		Token:     token,
		UserID:    userID,
	}
	if err := s.put(site); err != nil {
		return nil, err
	}
	return site, nil
}

// Save updates an existing site record.
func (s *Store) Save(site *Site) error {
	if _, err := s.Get(site.ID); err != nil {
		return err
	}
	return s.put(site)
}

func (s *Store) put(site *Site) error {
	sealed, err := crypto.Seal([]byte(site.Token), s.key)
	if err != nil {
		return fmt.Errorf("failed to seal token: %w", err)
	}

	record := *site
	record.Token = ""
	data, err := json.Marshal(struct {
		Site
		SealedToken []byte `json:"sealed_token"`
	}{Site: record, SealedToken: sealed})
	if err != nil {
		return fmt.Errorf("failed to marshal site: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSites).Put([]byte(site.ID), data)
	})
}

// Get returns one site with its token unsealed.
func (s *Store) Get(id string) (*Site, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketSites).Get([]byte(id)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrSiteNotFound
	}
	return s.decode(data)
}

// List returns every registered site, tokens unsealed.
func (s *Store) List() ([]*Site, error) {
	var records [][]byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSites).ForEach(func(_, v []byte) error {
			records = append(records, append([]byte(nil), v...))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sites := make([]*Site, 0, len(records))
	for _, data := range records {
		site, err := s.decode(data)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, nil
}

// Delete removes a site. Idempotent.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSites).Delete([]byte(id))
	})
}

func (s *Store) decode(data []byte) (*Site, error) {
	var record struct {
		Site
		SealedToken []byte `json:"sealed_token"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal site: %w", err)
	}

	token, err := crypto.Open(record.SealedToken, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal token: %w", err)
	}
	site := record.Site
	site.Token = string(token)
	return &site, nil
}
