package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000/api/", cfg.Backend.URL)
	assert.Equal(t, 3, cfg.RateLimit.MaxRetries)
	assert.True(t, cfg.Parser.HasHeader)
	assert.Equal(t, CheckpointLocal, cfg.Ingestion.CheckpointStore)
	assert.Equal(t, 30*time.Second, cfg.Cache.LoadTimeout)
	assert.Equal(t, 100, cfg.Bundle.MaxFiles)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
backend:
  url: https://analytics.example.com/api/
parser:
  max_rows: 5000
  delimiter: ";"
ingestion:
  checkpoint_store: redis
  checkpoint_ttl: 1h
`)
	t.Setenv("REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("ANALYTICS_RATE_LIMIT_MAX_RETRIES", "7")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "https://analytics.example.com/api/", cfg.Backend.URL)
	assert.Equal(t, 5000, cfg.Parser.MaxRows)
	assert.Equal(t, ";", string(cfg.Parser.Delimiter))
	assert.Equal(t, CheckpointRedis, cfg.Ingestion.CheckpointStore)
	assert.Equal(t, time.Hour, cfg.Ingestion.CheckpointTTL)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Redis.URL)
	assert.Equal(t, 7, cfg.RateLimit.MaxRetries)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad backend", "backend:\n  url: ftp://x\n", "backend.url"},
		{"redis without url", "ingestion:\n  checkpoint_store: redis\n", "redis.url is required"},
		{"unknown store", "ingestion:\n  checkpoint_store: s3\n", "unknown ingestion.checkpoint_store"},
		{"negative rows", "parser:\n  max_rows: -1\n", "parser.max_rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("# comment\nBACKEND_URL=\"https://from-dotenv.example.com/\"\nexport STORAGE_PATH=/tmp/x\n"), 0o600))
	t.Setenv("STORAGE_PATH", "/from/env")
	t.Setenv("BACKEND_URL", "")
	os.Unsetenv("BACKEND_URL")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "https://from-dotenv.example.com/", cfg.Backend.URL)
	assert.Equal(t, "/from/env", cfg.Storage.BasePath)
}

func TestOpenCheckpoints(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name     string
		cfg      Config
		wantPing bool
	}{
		{name: "memory", cfg: Config{Ingestion: IngestionConfig{CheckpointStore: CheckpointMemory}}},
		{name: "local", cfg: Config{
			Ingestion: IngestionConfig{CheckpointStore: CheckpointLocal},
			Storage:   StorageConfig{Type: "local", BasePath: t.TempDir()},
		}},
		{name: "redis", cfg: Config{
			Ingestion: IngestionConfig{CheckpointStore: CheckpointRedis},
			Redis:     RedisConfig{URL: "redis://" + mr.Addr()},
		}, wantPing: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp, err := tt.cfg.OpenCheckpoints()
			require.NoError(t, err)
			defer cp.Close()
			require.NotNil(t, cp.Store)

			ping := cp.Ping()
			if !tt.wantPing {
				assert.Nil(t, ping)
				return
			}
			require.NotNil(t, ping)
			assert.NoError(t, ping(context.Background()))
		})
	}
}
