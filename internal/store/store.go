package store

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("store closed")

// Store is a key-value record store. Every collection of the application is one
// serialized value under a namespaced key.
type Store interface {
	// Get returns the value under key, or nil with no error when the key is absent
	Get(ctx context.Context, key string) ([]byte, error)
	// Put writes value under key, replacing any previous value
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every key starting with prefix
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Health check
	Ping(ctx context.Context) error
	Close() error
}
