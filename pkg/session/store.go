// Package session provides durable persistence for conversation memory.
// A Backend stores opaque blobs by key; Store layers a codec on top of a
// Backend and exposes the load/save/clear port consumed by the agents.
package session

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	// ErrNotFound is returned by a Backend when no blob exists for a key.
	ErrNotFound = errors.New("blob not found")
	// ErrStorageClosed is returned when operating on a closed storage backend.
	ErrStorageClosed = errors.New("storage backend is closed")
)

// Backend abstracts durable blob storage.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the blob stored under key.
	// Returns ErrNotFound if nothing is stored.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put creates or replaces the blob stored under key.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes the blob stored under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// Port is the persistence contract used by the agents: load the current
// value (empty default when absent or corrupt), save it, or forget it.
type Port[T any] interface {
	Load(ctx context.Context) (T, error)
	Save(ctx context.Context, v T) error
	Clear(ctx context.Context) error
}
