package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkID_Deterministic(t *testing.T) {
	assert.Equal(t, ChunkID("doc-1", 0), ChunkID("doc-1", 0))
	assert.NotEqual(t, ChunkID("doc-1", 0), ChunkID("doc-1", 1))
	assert.NotEqual(t, ChunkID("doc-1", 0), ChunkID("doc-2", 0))

	id, err := uuid.Parse(ChunkID("doc-1", 3))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), id.Version())
}

func TestNewID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		id := NewID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
