// Package store provides the opaque key→string persistence used by the
// vault core. The core never interprets values; it reads and writes three
// independent records (config, vault, lockout) and tolerates partial
// failure across them.
package store

import "context"

// Store is an asynchronous key-value collaborator. No transactional
// guarantee is assumed across keys.
type Store interface {
	// Get returns the stored value for key. A missing key reports
	// ok=false with a nil error; err is reserved for I/O failures.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
