package qdrant

import (
	"fmt"
	"hash/fnv"
)

// PointID derives a stable numeric point ID from a logical string ID using
// FNV-1a. Qdrant point IDs must be unsigned integers or UUIDs; hashing keeps
// re-ingestion idempotent because the same logical ID always lands on the
// same point.
func PointID(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// chunkLogicalID is the string form stored in the payload's id field.
func chunkLogicalID(sessionID string, idx int) string {
	return fmt.Sprintf("%s_%d", sessionID, idx)
}

// ChunkPointID is the point ID for chunk index idx of a session.
func ChunkPointID(sessionID string, idx int) uint64 {
	return PointID(chunkLogicalID(sessionID, idx))
}
