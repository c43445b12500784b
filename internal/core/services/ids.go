package services

import (
	"strconv"

	"github.com/google/uuid"
)

// chunkNamespace scopes name-based chunk UUIDs.
var chunkNamespace = uuid.MustParse("6f1c2b8e-8a4d-5c3e-9d4f-2a7b1e0c5d91")

// ChunkID returns the deterministic ID of a document's chunk at index.
// The same document and index always map to the same ID, so rewriting a
// chunk overwrites the previous entry instead of duplicating it.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(documentID+"-chunk-"+strconv.Itoa(index))).String()
}

// NewID returns a random identifier for queries and responses.
func NewID() string {
	return uuid.New().String()
}
