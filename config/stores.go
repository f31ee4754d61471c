package config

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	apphttp "github.com/kosarica/analytics-service/internal/http"
	"github.com/kosarica/analytics-service/internal/ingestion"
	"github.com/kosarica/analytics-service/internal/storage"
)

// Checkpoints is an opened checkpoint store and its connection, if any
type Checkpoints struct {
	Store ingestion.CheckpointStore
	redis *redis.Client
}

// Ping checks the connection behind the store. It is nil for stores
// without one.
func (c Checkpoints) Ping() func(context.Context) error {
	if c.redis == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return c.redis.Ping(ctx).Err()
	}
}

// Close releases the connection
func (c Checkpoints) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

// OpenStorage opens the local file storage
func (c *Config) OpenStorage() (storage.Storage, error) {
	if c.Storage.Type != "" && c.Storage.Type != string(storage.StorageTypeLocal) {
		return nil, fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}
	return storage.NewLocalStorage(c.Storage.BasePath)
}

// OpenCheckpoints opens the configured checkpoint store
func (c *Config) OpenCheckpoints() (Checkpoints, error) {
	switch c.Ingestion.CheckpointStore {
	case CheckpointMemory:
		return Checkpoints{Store: ingestion.NewMemoryCheckpointStore()}, nil
	case CheckpointRedis:
		opts, err := redis.ParseURL(c.Redis.URL)
		if err != nil {
			return Checkpoints{}, fmt.Errorf("invalid redis.url: %w", err)
		}
		client := redis.NewClient(opts)
		return Checkpoints{
			Store: ingestion.NewRedisCheckpointStore(client, c.Ingestion.CheckpointTTL),
			redis: client,
		}, nil
	default:
		store, err := c.OpenStorage()
		if err != nil {
			return Checkpoints{}, err
		}
		return Checkpoints{Store: ingestion.NewStorageCheckpointStore(store)}, nil
	}
}

// HTTPClient builds the retrying client used for backend calls
func (c *Config) HTTPClient() *apphttp.Client {
	return apphttp.NewClient(c.RateLimit, c.Backend.Timeout)
}
