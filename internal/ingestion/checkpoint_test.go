package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/analytics-service/internal/storage"
	"github.com/kosarica/analytics-service/internal/store"
	"github.com/kosarica/analytics-service/internal/types"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCheckpointStores(t *testing.T) {
	_, rdb := newTestRedis(t)
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	stores := map[string]CheckpointStore{
		"memory":  NewMemoryCheckpointStore(),
		"storage": NewStorageCheckpointStore(local),
		"redis":   NewRedisCheckpointStore(rdb, time.Hour),
	}

	for name, cs := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := cs.Load(ctx, "42")
			require.ErrorIs(t, err, ErrNoCheckpoint)

			cp := Checkpoint{
				DatasetID:         "42",
				LastCompletedStep: StepUploadingTransaction,
				FileChecksums:     map[types.FileCategory]string{types.CategoryTransaction: "abc"},
				UpdatedAt:         time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			}
			require.NoError(t, cs.Save(ctx, cp))

			got, err := cs.Load(ctx, "42")
			require.NoError(t, err)
			assert.Equal(t, StepUploadingTransaction, got.LastCompletedStep)
			assert.Equal(t, "abc", got.FileChecksums[types.CategoryTransaction])
			assert.True(t, cp.UpdatedAt.Equal(got.UpdatedAt))
			assert.Equal(t, StepUploadingProductLookup, got.NextStep())

			require.NoError(t, cs.Delete(ctx, "42"))
			_, err = cs.Load(ctx, "42")
			assert.ErrorIs(t, err, ErrNoCheckpoint)
		})
	}
}

func TestMemoryCheckpointStoreCopies(t *testing.T) {
	cs := NewMemoryCheckpointStore()
	sums := map[types.FileCategory]string{types.CategoryTransaction: "abc"}
	require.NoError(t, cs.Save(context.Background(), Checkpoint{DatasetID: "1", FileChecksums: sums}))

	sums[types.CategoryTransaction] = "changed"

	got, err := cs.Load(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.FileChecksums[types.CategoryTransaction])
}

func TestRedisCheckpointStoreTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cs := NewRedisCheckpointStore(rdb, time.Minute)

	require.NoError(t, cs.Save(context.Background(), Checkpoint{DatasetID: "7", LastCompletedStep: StepCreatingMaster}))
	assert.Equal(t, time.Minute, mr.TTL(FormatCheckpointKey("7")))

	mr.FastForward(2 * time.Minute)
	_, err := cs.Load(context.Background(), "7")
	assert.ErrorIs(t, err, ErrNoCheckpoint)
}

func TestRedisCheckpointStoreCorruptValue(t *testing.T) {
	mr, rdb := newTestRedis(t)
	require.NoError(t, mr.Set(FormatCheckpointKey("3"), "{not json"))

	_, err := NewRedisCheckpointStore(rdb, 0).Load(context.Background(), "3")
	assert.ErrorContains(t, err, "unmarshal checkpoint")
}

func TestCheckpointNextStep(t *testing.T) {
	assert.Equal(t, StepCreatingMaster, Checkpoint{}.NextStep())
	assert.Equal(t, StepUploadingTransaction, Checkpoint{LastCompletedStep: StepCreatingMaster}.NextStep())
	assert.Equal(t, StepCompleted, Checkpoint{LastCompletedStep: StepUploadingCausalLookup}.NextStep())
}

func TestResumeWithRedisCheckpoints(t *testing.T) {
	_, rdb := newTestRedis(t)
	api := newFakeBackend()
	f := &fixture{api: api}
	f.api.fail["product_lookup"] = assert.AnError
	f.datasets = store.NewDatasetStore(api)
	f.orch = NewOrchestrator(api, f.datasets, NewRedisCheckpointStore(rdb, time.Hour))
	require.False(t, f.create(t).Result().Success)
	delete(api.fail, "product_lookup")

	// a fresh orchestrator with an empty cache, as after a restart
	orch := NewOrchestrator(api, store.NewDatasetStore(api), NewRedisCheckpointStore(rdb, time.Hour))
	run, err := orch.Resume(context.Background(), "1", testFiles())
	require.NoError(t, err)

	assert.True(t, run.Result().Success)
	assert.Equal(t, []string{"product_lookup", "causal_lookup"}, api.Calls()[3:])
}
