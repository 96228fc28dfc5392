package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aixgo-dev/chatcore/pkg/memory"
)

// Default blob keys, one per memory shape.
const (
	DefaultStateKey    = "agent_memory_state"
	DefaultSnapshotKey = "chat_memory_snapshot"
)

// Store persists a single value of type T under one key of a Backend.
// Store is safe for concurrent use when its Backend is.
type Store[T any] struct {
	backend Backend
	key     string
	codec   Codec
	logger  *slog.Logger
}

// StateStore persists the strategy-driven memory state.
type StateStore = Store[memory.State]

// SnapshotStore persists the summarization snapshot.
type SnapshotStore = Store[memory.Snapshot]

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	codec  Codec
	logger *slog.Logger
}

// WithCodec sets the blob codec (default: uncompressed JSON).
func WithCodec(c Codec) StoreOption {
	return func(o *storeOptions) {
		o.codec = c
	}
}

// WithLogger sets the logger used to report recovered corruption.
func WithLogger(l *slog.Logger) StoreOption {
	return func(o *storeOptions) {
		o.logger = l
	}
}

// NewStore creates a store for values of type T under key.
func NewStore[T any](backend Backend, key string, opts ...StoreOption) *Store[T] {
	o := storeOptions{codec: Codec{Format: FormatJSON}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Store[T]{
		backend: backend,
		key:     key,
		codec:   o.codec,
		logger:  o.logger,
	}
}

// NewStateStore creates a StateStore under DefaultStateKey when key is empty.
func NewStateStore(backend Backend, key string, opts ...StoreOption) *StateStore {
	if key == "" {
		key = DefaultStateKey
	}
	return NewStore[memory.State](backend, key, opts...)
}

// NewSnapshotStore creates a SnapshotStore under DefaultSnapshotKey when key is empty.
func NewSnapshotStore(backend Backend, key string, opts ...StoreOption) *SnapshotStore {
	if key == "" {
		key = DefaultSnapshotKey
	}
	return NewStore[memory.Snapshot](backend, key, opts...)
}

// Key returns the blob key this store writes to.
func (s *Store[T]) Key() string {
	return s.key
}

// Load returns the stored value. A missing or undecodable blob yields the
// zero value without error; only backend failures are returned.
func (s *Store[T]) Load(ctx context.Context) (T, error) {
	var zero T

	data, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return zero, nil
		}
		return zero, fmt.Errorf("load %s: %w", s.key, err)
	}
	if len(data) == 0 {
		return zero, nil
	}

	var v T
	if err := s.codec.Unmarshal(data, &v); err != nil {
		s.logger.Warn("discarding corrupt stored memory", "key", s.key, "error", err)
		return zero, nil
	}
	return v, nil
}

// Save replaces the stored value.
func (s *Store[T]) Save(ctx context.Context, v T) error {
	data, err := s.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	if err := s.backend.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}

// Clear forgets the stored value.
func (s *Store[T]) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear %s: %w", s.key, err)
	}
	return nil
}

var (
	_ Port[memory.State]    = (*StateStore)(nil)
	_ Port[memory.Snapshot] = (*SnapshotStore)(nil)
)
