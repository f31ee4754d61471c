package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kosarica/analytics-service/internal/storage"
	"github.com/kosarica/analytics-service/internal/types"
)

// ErrNoCheckpoint is returned when a dataset has no saved checkpoint
var ErrNoCheckpoint = errors.New("no checkpoint")

// Checkpoint records the last step that succeeded for a dataset so a retry
// can skip it. FileChecksums holds the SHA-256 of each uploaded file.
type Checkpoint struct {
	DatasetID         string                        `json:"datasetId"`
	LastCompletedStep Step                          `json:"lastCompletedStep"`
	FileChecksums     map[types.FileCategory]string `json:"fileChecksums,omitempty"`
	UpdatedAt         time.Time                     `json:"updatedAt"`
}

// NextStep returns the first step that has not completed
func (c Checkpoint) NextStep() Step {
	if c.LastCompletedStep == "" {
		return Steps[0]
	}
	i := c.LastCompletedStep.index()
	if i < 0 || i+1 >= len(Steps) {
		return StepCompleted
	}
	return Steps[i+1]
}

// CheckpointStore persists checkpoints between runs
type CheckpointStore interface {
	Load(ctx context.Context, datasetID string) (Checkpoint, error)
	Save(ctx context.Context, cp Checkpoint) error
	Delete(ctx context.Context, datasetID string) error
}

// --- MemoryCheckpointStore ---

// MemoryCheckpointStore keeps checkpoints in process memory
type MemoryCheckpointStore struct {
	mu      sync.RWMutex
	entries map[string]Checkpoint
}

// NewMemoryCheckpointStore creates an empty in-memory store
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{entries: make(map[string]Checkpoint)}
}

// Load implements CheckpointStore
func (s *MemoryCheckpointStore) Load(_ context.Context, datasetID string) (Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.entries[datasetID]
	if !ok {
		return Checkpoint{}, ErrNoCheckpoint
	}
	return cloneCheckpoint(cp), nil
}

// Save implements CheckpointStore
func (s *MemoryCheckpointStore) Save(_ context.Context, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[cp.DatasetID] = cloneCheckpoint(cp)
	return nil
}

// Delete implements CheckpointStore
func (s *MemoryCheckpointStore) Delete(_ context.Context, datasetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, datasetID)
	return nil
}

func cloneCheckpoint(cp Checkpoint) Checkpoint {
	sums := make(map[types.FileCategory]string, len(cp.FileChecksums))
	for k, v := range cp.FileChecksums {
		sums[k] = v
	}
	cp.FileChecksums = sums
	return cp
}

// --- StorageCheckpointStore ---

// StorageCheckpointStore keeps checkpoints as JSON documents in a Storage
type StorageCheckpointStore struct {
	store storage.Storage
}

// NewStorageCheckpointStore creates a store backed by store
func NewStorageCheckpointStore(store storage.Storage) *StorageCheckpointStore {
	return &StorageCheckpointStore{store: store}
}

// Load implements CheckpointStore
func (s *StorageCheckpointStore) Load(ctx context.Context, datasetID string) (Checkpoint, error) {
	data, err := s.store.Get(ctx, storage.CheckpointKey(datasetID))
	if errors.Is(err, storage.ErrNotFound) {
		return Checkpoint{}, ErrNoCheckpoint
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("load checkpoint %q: %w", datasetID, err)
	}
	return decodeCheckpoint(datasetID, data)
}

// Save implements CheckpointStore
func (s *StorageCheckpointStore) Save(ctx context.Context, cp Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := s.store.Put(ctx, storage.CheckpointKey(cp.DatasetID), data); err != nil {
		return fmt.Errorf("save checkpoint %q: %w", cp.DatasetID, err)
	}
	return nil
}

// Delete implements CheckpointStore
func (s *StorageCheckpointStore) Delete(ctx context.Context, datasetID string) error {
	return s.store.Delete(ctx, storage.CheckpointKey(datasetID))
}

// --- RedisCheckpointStore ---

// RedisCheckpointStore keeps checkpoints in Redis with a TTL so abandoned
// imports do not accumulate
type RedisCheckpointStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCheckpointStore creates a Redis-backed store. A zero ttl keeps
// checkpoints forever.
func NewRedisCheckpointStore(client redis.Cmdable, ttl time.Duration) *RedisCheckpointStore {
	return &RedisCheckpointStore{client: client, ttl: ttl}
}

// FormatCheckpointKey builds the Redis key of a dataset's checkpoint
func FormatCheckpointKey(datasetID string) string {
	return fmt.Sprintf("ingest:checkpoint:%s", datasetID)
}

// Load implements CheckpointStore
func (s *RedisCheckpointStore) Load(ctx context.Context, datasetID string) (Checkpoint, error) {
	key := FormatCheckpointKey(datasetID)
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Checkpoint{}, ErrNoCheckpoint
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("redis get %q: %w", key, err)
	}
	return decodeCheckpoint(datasetID, raw)
}

// Save implements CheckpointStore
func (s *RedisCheckpointStore) Save(ctx context.Context, cp Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	key := FormatCheckpointKey(cp.DatasetID)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Delete implements CheckpointStore
func (s *RedisCheckpointStore) Delete(ctx context.Context, datasetID string) error {
	key := FormatCheckpointKey(datasetID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

func decodeCheckpoint(datasetID string, data []byte) (Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("unmarshal checkpoint %q: %w", datasetID, err)
	}
	return cp, nil
}
