package chunker

import (
	"strings"

	"go.uber.org/zap"

	"pandaqa/internal/model"
)

// boundaryScan is how far the window end backs up looking for a
// sentence terminator before giving up and cutting mid-sentence.
const boundaryScan = 50

// Splitter cuts raw text into overlapping fixed-size segments, preferring
// to break right after a sentence terminator.
type Splitter struct {
	chunkSize int
	overlap   int
	log       *zap.Logger
}

// NewSplitter creates a splitter. An overlap that is not smaller than the
// chunk size would stall the sliding window, so it is clamped to half the
// chunk size with a warning rather than rejected.
func NewSplitter(chunkSize, overlap int, log *zap.Logger) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		clamped := chunkSize / 2
		log.Warn("chunk overlap not smaller than chunk size, clamping",
			zap.Int("chunk_size", chunkSize),
			zap.Int("overlap", overlap),
			zap.Int("clamped_overlap", clamped))
		overlap = clamped
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap, log: log}
}

// Split walks the text in a sliding window of chunkSize runes. When the
// tentative window end falls before the end of the text, it scans backward
// up to boundaryScan runes for one of `. ! ? \n` and shrinks the window to
// end right after it. Consecutive chunks overlap by the configured number
// of runes; the final chunk is never re-extended.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) <= s.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if end < len(runes) {
			limit := boundaryScan
			if limit > end-start {
				limit = end - start
			}
			for i := 0; i < limit; i++ {
				if isSentenceEnd(runes[end-i-1]) {
					end -= i
					break
				}
			}
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		next := end - s.overlap
		if next <= start {
			// boundary shrink left a chunk shorter than the overlap;
			// skip the overlap for this step so the window advances
			next = end
		}
		start = next
	}
	return chunks
}

// Process splits text and wraps each segment in a Chunk carrying the
// caller's metadata plus "chunk_id" and "chunk_count". The computed fields
// overwrite caller-supplied keys of the same name; an overwrite is logged
// since it usually indicates a caller bug.
//
// Empty or whitespace-only text yields no chunks. That is "nothing to
// index", not an error.
func (s *Splitter) Process(text string, meta model.Metadata) []model.Chunk {
	if strings.TrimSpace(text) == "" {
		s.log.Warn("received empty text for processing")
		return nil
	}
	if meta == nil {
		meta = model.Metadata{}
	}

	segments := s.Split(text)
	chunks := make([]model.Chunk, len(segments))
	for i, seg := range segments {
		m := meta.Clone()
		for _, key := range []string{"chunk_id", "chunk_count"} {
			if _, exists := m[key]; exists {
				s.log.Warn("caller metadata key overwritten by chunker", zap.String("key", key))
			}
		}
		m["chunk_id"] = i
		m["chunk_count"] = len(segments)
		chunks[i] = model.Chunk{Text: seg, Metadata: m}
	}
	s.log.Info("text split into chunks",
		zap.Int("text_len", len(text)),
		zap.Int("chunks", len(chunks)))
	return chunks
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}
