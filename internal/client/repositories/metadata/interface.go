// Package metadata is a small key/value table in the client's state
// database. Keys are namespaced by a prefix such as "cookies:<host>".
package metadata

import (
	"context"
	"time"
)

// Entry is one stored value with the time it was last written.
type Entry struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

type Repository interface {
	// Get returns (nil, nil) for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Entry, error)
}
