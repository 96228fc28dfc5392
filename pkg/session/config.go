package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds persistence configuration from YAML.
type Config struct {
	// Store specifies the storage backend type.
	// Options: "memory", "file", "redis", "sqlite", "firestore"
	// Default: "file"
	Store string `yaml:"store"`

	// Key overrides the blob key for the memory state.
	// Default: "agent_memory_state" (strategy mode) or
	// "chat_memory_snapshot" (summary mode).
	Key string `yaml:"key"`

	// Format is the blob serialization: "json" or "cbor". Default: "json".
	Format Format `yaml:"format"`

	// Compress enables zstd compression of stored blobs.
	Compress bool `yaml:"compress"`

	// BaseDir is the base directory for file-based storage.
	// Default: ~/.chatcore/memory
	BaseDir string `yaml:"base_dir"`

	// SQLitePath is the database file for the sqlite store.
	// Default: ~/.chatcore/memory.db
	SQLitePath string `yaml:"sqlite_path"`

	// Redis contains Redis connection settings.
	Redis RedisConfig `yaml:"redis,omitempty"`

	// Firestore contains Firestore connection settings.
	Firestore FirestoreConfig `yaml:"firestore,omitempty"`
}

// DefaultConfig returns the default persistence configuration.
func DefaultConfig() Config {
	return Config{
		Store:  "file",
		Format: FormatJSON,
	}
}

// Codec returns the blob codec selected by the configuration.
func (c Config) Codec() Codec {
	return Codec{Format: c.Format, Compress: c.Compress}
}

// Validate checks the store and format names.
func (c Config) Validate() error {
	switch c.Store {
	case "", "memory", "file", "redis", "sqlite", "firestore":
	default:
		return fmt.Errorf("unknown store: %s", c.Store)
	}
	switch c.Format {
	case "", FormatJSON, FormatCBOR:
	default:
		return fmt.Errorf("unknown format: %s", c.Format)
	}
	return nil
}

// OpenBackend creates the backend selected by cfg.Store.
func OpenBackend(ctx context.Context, cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Store {
	case "memory":
		return NewMemoryBackend(), nil
	case "redis":
		return NewRedisBackend(cfg.Redis)
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("get home directory: %w", err)
			}
			path = filepath.Join(home, ".chatcore", "memory.db")
		}
		return NewSQLiteBackend(path)
	case "firestore":
		return NewFirestoreBackend(ctx, cfg.Firestore)
	default:
		return NewFileBackend(cfg.BaseDir)
	}
}
