package store

import (
	"context"
	"time"
)

// Key layout in the backing store.
const (
	PriorityQueue = "queue:priority"
	RegularQueue  = "queue:regular"
	GeoIndex      = "geo:index"

	presencePrefix = "presence:"
	tokenPrefix    = "token:"
)

// PresenceKey returns the hash key holding a user's identity and
// listening state.
func PresenceKey(username string) string {
	return presencePrefix + username
}

// TokenKey returns the key holding a user's outstanding location token.
func TokenKey(username string) string {
	return tokenPrefix + username
}

// GeoEntry is one member of the geospatial index with its coordinates.
type GeoEntry struct {
	Username  string
	Longitude float64
	Latitude  float64
}

// Store is the capability the schedulers and services are written
// against. The backing store's own atomic primitives (blocking pop,
// counted delete, idempotent list removal) are the only synchronization
// the system uses; implementations must preserve those semantics.
type Store interface {
	// BlockingPop pops the oldest entry from queue, blocking with no
	// timeout until one is available or ctx is cancelled.
	BlockingPop(ctx context.Context, queue string) (string, error)

	// Append pushes username onto the tail of queue.
	Append(ctx context.Context, queue, username string) error

	// Remove deletes every occurrence of username from queue. Removing
	// a username that is not present is a no-op, not an error.
	Remove(ctx context.Context, queue, username string) error

	// HashSet writes the given fields into the hash at key, leaving
	// fields not named in the map untouched.
	HashSet(ctx context.Context, key string, fields map[string]any) error

	// HashGetAll returns every field of the hash at key. A missing key
	// yields an empty map and no error.
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	// SetWithTTL writes value at key with the given expiry, replacing
	// any existing value and its remaining TTL.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value at key, or "" with no error if the key is
	// absent or expired.
	Get(ctx context.Context, key string) (string, error)

	// ConditionalDelete removes key and reports whether this call was
	// the one that deleted it. False means the key was already gone.
	ConditionalDelete(ctx context.Context, key string) (bool, error)

	// GeoAdd writes the member's position into the geospatial index at
	// key, replacing any previous position.
	GeoAdd(ctx context.Context, key, member string, longitude, latitude float64) error

	// GeoRadius returns every member within radiusKm kilometers of the
	// given center, with coordinates.
	GeoRadius(ctx context.Context, key string, longitude, latitude, radiusKm float64) ([]GeoEntry, error)
}
