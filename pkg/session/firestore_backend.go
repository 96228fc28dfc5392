package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig holds Firestore connection configuration.
type FirestoreConfig struct {
	// ProjectID is the GCP project ID (required).
	ProjectID string `yaml:"project_id"`
	// CredentialsFile is an optional service account key file.
	// Application Default Credentials are used when empty.
	CredentialsFile string `yaml:"credentials_file"`
	// Collection holds one document per blob key (default: "chatcore_memory").
	Collection string `yaml:"collection"`
}

const defaultFirestoreCollection = "chatcore_memory"

// firestoreBlob is the document shape stored per key.
type firestoreBlob struct {
	Data      []byte    `firestore:"data"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// FirestoreBackend implements Backend with one Firestore document per key.
type FirestoreBackend struct {
	client     *firestore.Client
	collection string
	mu         sync.RWMutex
	closed     bool
}

// NewFirestoreBackend connects to Firestore.
func NewFirestoreBackend(ctx context.Context, cfg FirestoreConfig) (*FirestoreBackend, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firestore project ID is required")
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = defaultFirestoreCollection
	}

	return &FirestoreBackend{
		client:     client,
		collection: collection,
	}, nil
}

func (b *FirestoreBackend) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}
	return nil
}

// Get retrieves the blob for key.
func (b *FirestoreBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	snap, err := b.client.Collection(b.collection).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	var doc firestoreBlob
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc.Data, nil
}

// Put writes the blob for key.
func (b *FirestoreBackend) Put(ctx context.Context, key string, data []byte) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	_, err := b.client.Collection(b.collection).Doc(key).Set(ctx, firestoreBlob{
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

// Delete removes the blob for key.
func (b *FirestoreBackend) Delete(ctx context.Context, key string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	if _, err := b.client.Collection(b.collection).Doc(key).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Close releases the Firestore client.
func (b *FirestoreBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.client.Close()
}
