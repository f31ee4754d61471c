// Package storage persists small client-side documents such as the auth
// session and ingestion checkpoints.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no document exists at a key
var ErrNotFound = errors.New("not found")

// Storage defines the interface for document storage operations
// Implementations can be local filesystem, Redis, etc.
type Storage interface {
	// Put stores content at the given key, replacing any previous content
	Put(ctx context.Context, key string, content []byte) error

	// Get retrieves content from the given key
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists checks if a document exists at the given key
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the document at the given key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// List returns all keys matching the given prefix
	List(ctx context.Context, prefix string) ([]string, error)
}

// StorageType represents the type of storage backend
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
)

// SessionKey is where the CLI keeps the authenticated session
const SessionKey = "session.json"

// CheckpointKey builds the key of a dataset's ingestion checkpoint
func CheckpointKey(datasetID string) string {
	return fmt.Sprintf("checkpoints/%s.json", datasetID)
}
