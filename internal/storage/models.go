package storage

import (
	"github.com/google/uuid"
)

// ChunkMetadata travels with every stored chunk and is returned with each
// search result.
type ChunkMetadata struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Keywords string `json:"keywords"`
	DocID    string `json:"doc_id"`
	ChunkID  string `json:"chunk_id"`
}

// Entry is one chunk ready to be written to the vector index.
type Entry struct {
	Text     string
	Vector   []float32
	Metadata ChunkMetadata
}

// SearchResult is a ranked chunk. Score is a similarity in [0,1], higher
// is more relevant.
type SearchResult struct {
	Content  string        `json:"content"`
	Score    float64       `json:"score"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Payload keys stored on each Qdrant point.
const (
	payloadContent  = "content"
	payloadTitle    = "title"
	payloadCategory = "category"
	payloadKeywords = "keywords"
	payloadDocID    = "doc_id"
	payloadChunkID  = "chunk_id"
)

// PointID derives the Qdrant point UUID for a chunk. The same chunk id in
// the same collection always maps to the same point.
func PointID(collection, chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(collection+"/"+chunkID)).String()
}

// clampScore maps a cosine similarity into [0,1].
func clampScore(score float32) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return float64(score)
}
