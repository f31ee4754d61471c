package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateGroupSchema(t *testing.T) {
	for _, group := range groups {
		t.Run(group.Name, func(t *testing.T) {
			schema := generateGroupSchema(group)
			defs, ok := schema["$defs"].(map[string]any)
			require.True(t, ok)
			assert.GreaterOrEqual(t, len(defs), len(group.Types))
		})
	}

	defs := generateGroupSchema(groups[1])["$defs"].(map[string]any)
	assert.Contains(t, defs, "Dataset")
	assert.Contains(t, defs, "Progress")
}

func TestWriteSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "files.json")

	require.NoError(t, writeSchema(generateGroupSchema(groups[0]), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "Files API Types", parsed["title"])
}
