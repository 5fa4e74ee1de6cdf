package model

// Metadata carries provenance information attached to a chunk, such as
// "source" (the original filename), "type" (the format tag), "chunk_id"
// and "chunk_count".
type Metadata map[string]any

// Clone returns a shallow copy so callers can merge keys without
// mutating the original map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Source returns the "source" metadata value if present and non-empty.
func (m Metadata) Source() (string, bool) {
	v, ok := m["source"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Chunk is a bounded text segment with attached provenance metadata,
// the unit of indexing and retrieval. Chunks are immutable once created.
type Chunk struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// ScoredChunk is a read-only projection of an indexed chunk returned by
// search. Score is the raw cosine similarity, higher is more relevant.
type ScoredChunk struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float32  `json:"score"`
}
