package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edupath/coursesync/internal/wsclient"
)

// ReadMode selects how a gateway read interacts with the snapshot cache.
type ReadMode int

const (
	// PreferCache returns a fresh snapshot when one exists, otherwise
	// round-trips and refreshes the cache. When the round-trip fails with a
	// network error an expired snapshot, if present, is returned instead.
	PreferCache ReadMode = iota

	// ForceNetwork always round-trips and refreshes the cache on success.
	// Conflict detection during sync reads with this mode.
	ForceNetwork

	// OnlyCache never round-trips; a miss fails with ErrNotCached. Expiry
	// is ignored: stale content beats no content when offline.
	OnlyCache
)

// ReadOptions is the configuration bag every gateway read accepts.
type ReadOptions struct {
	Mode ReadMode
	TTL  time.Duration
}

func (o ReadOptions) ttl() time.Duration {
	if o.TTL > 0 {
		return o.TTL
	}
	return DefaultTTL
}

// Fetch resolves one cached read of type T under the given mode. fetch
// performs the network round-trip; its successful result is stored under
// (siteID, key) before being returned.
func Fetch[T any](ctx context.Context, store *Store, siteID, key string, opts ReadOptions, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if opts.Mode == OnlyCache {
		snap, err := store.Get(siteID, key)
		if err != nil {
			return zero, err
		}
		return decode[T](snap, key)
	}

	if opts.Mode == PreferCache {
		snap, err := store.Get(siteID, key)
		if err == nil && !snap.Expired(opts.ttl(), time.Now()) {
			return decode[T](snap, key)
		}
	}

	result, err := fetch(ctx)
	if err != nil {
		// Offline fallback: an expired snapshot is still better than
		// failing a read the user already saw once.
		if opts.Mode == PreferCache && wsclient.IsNetworkError(err) {
			if snap, cacheErr := store.Get(siteID, key); cacheErr == nil {
				return decode[T](snap, key)
			}
		}
		return zero, err
	}

	if putErr := store.Put(siteID, key, result); putErr != nil {
		return zero, fmt.Errorf("failed to refresh cache for %q: %w", key, putErr)
	}

	return result, nil
}

func decode[T any](snap *Snapshot, key string) (T, error) {
	var value T
	if err := json.Unmarshal(snap.Payload, &value); err != nil {
		return value, fmt.Errorf("failed to decode snapshot for %q: %w", key, err)
	}
	return value, nil
}
