// Package credstore persists the handful of string entries that must survive
// an app restart: the bearer token, the serialized user profile, and the
// timestamp of the last profile sync.
//
// Drivers report honest errors, including ErrNotFound for absent keys. The
// session manager is the only writer and treats every storage failure as
// soft (logged, value absent), so a broken store can never take the session
// down with it. There are no ordering guarantees between keys; callers group
// related writes themselves and tolerate partial failure.
package credstore

import (
	"context"
	"errors"
)

// Keys for the persisted session entries. The names match what the backend's
// mobile clients have always used, so a store can be shared with them.
const (
	KeyToken       = "authToken"
	KeyUser        = "authUser"
	KeyLastRefresh = "lastRefreshTime"
)

// ErrNotFound reports an absent key.
var ErrNotFound = errors.New("credstore: not found")

// Store is durable string key-value storage.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes the value for key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases any underlying resources.
	Close() error
}
