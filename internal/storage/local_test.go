package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	key := CheckpointKey("ds-1")
	require.NoError(t, s.Put(ctx, key, []byte(`{"step":1}`)))

	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"step":1}`, string(got))

	require.NoError(t, s.Put(ctx, key, []byte(`{"step":2}`)))
	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"step":2}`, string(got))

	info, err := os.Stat(filepath.Join(s.GetBasePath(), "checkpoints", "ds-1.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorageList(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, k := range []string{CheckpointKey("b"), CheckpointKey("a"), SessionKey} {
		require.NoError(t, s.Put(ctx, k, []byte("x")))
	}

	keys, err := s.List(ctx, "checkpoints/")
	require.NoError(t, err)
	assert.Equal(t, []string{"checkpoints/a.json", "checkpoints/b.json"}, keys)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLocalStorageKeysStayInsideBase(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewLocalStorage(filepath.Join(base, "store"))
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "../../escape.json", []byte("x")))

	_, err = os.Stat(filepath.Join(base, "escape.json"))
	assert.True(t, os.IsNotExist(err))
	exists, err := s.Exists(ctx, "escape.json")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Error(t, s.Put(ctx, "", []byte("x")))
}
