// Package index implements the in-process vector index: chunk storage,
// brute-force cosine similarity search, and directory persistence.
package index

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"pandaqa/internal/ai"
	"pandaqa/internal/metrics"
	"pandaqa/internal/model"
)

var (
	// ErrEmptyIndex is returned by Save when nothing has been indexed.
	ErrEmptyIndex = errors.New("vector index is empty")
	// ErrNotFound is returned by Load when the directory does not hold a
	// persisted knowledge base.
	ErrNotFound = errors.New("knowledge base not found")
)

const (
	dbFileName    = "index.db"
	formatVersion = uint64(1)
)

var (
	bucketEntries = []byte("entries")
	bucketMeta    = []byte("meta")

	metaKeyVersion = []byte("version")
	metaKeyNextID  = []byte("next_id")
)

type entry struct {
	id     uint64
	chunk  model.Chunk
	vector []float32
}

// storedEntry is the on-disk record for one index entry.
type storedEntry struct {
	Text      string         `json:"text"`
	Metadata  model.Metadata `json:"metadata"`
	Embedding []float32      `json:"embedding"`
}

// Index owns all chunk/embedding pairs of the current knowledge base.
// Mutations are serialized behind a write lock; searches and counts run
// concurrently under a read lock. Embedding calls never happen while a
// lock is held.
type Index struct {
	embedder ai.Embedder
	log      *zap.Logger

	mu      sync.RWMutex
	entries []entry
	nextID  uint64
}

func New(embedder ai.Embedder, log *zap.Logger) *Index {
	return &Index{embedder: embedder, log: log}
}

// Add embeds every chunk and appends the resulting entries, returning the
// assigned ids in insertion order. Ids come from a monotonic counter and
// are never reused, not even after Clear.
//
// Embedding is all-or-nothing: if any chunk fails to embed, no entry is
// recorded and the error is returned. An empty input returns an empty id
// list without error.
func (x *Index) Add(ctx context.Context, chunks []model.Chunk) ([]uint64, error) {
	if len(chunks) == 0 {
		x.log.Warn("empty chunk list provided to index")
		return nil, nil
	}

	// repair nil metadata on local copies; caller chunks stay untouched
	prepared := make([]model.Chunk, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		if c.Metadata == nil {
			// a nil metadata map usually means the caller skipped the chunker
			x.log.Warn("chunk without metadata, substituting empty map", zap.Int("position", i))
			c.Metadata = model.Metadata{}
		}
		prepared[i] = c
		texts[i] = c.Text
	}

	vectors, err := x.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks failed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	ids := make([]uint64, len(prepared))
	for i, c := range prepared {
		id := x.nextID
		x.nextID++
		x.entries = append(x.entries, entry{id: id, chunk: c, vector: vectors[i]})
		ids[i] = id
	}
	metrics.IndexedChunks.Set(float64(len(x.entries)))
	x.log.Info("chunks added to vector index",
		zap.Int("added", len(chunks)),
		zap.Int("total", len(x.entries)))
	return ids, nil
}

// Search embeds the query with the same provider used for indexing and
// returns up to k chunks ranked by descending cosine similarity. Ties
// keep insertion order. An empty index yields an empty result without
// calling the embedder.
func (x *Index) Search(ctx context.Context, query string, k int) ([]model.ScoredChunk, error) {
	if x.Count() == 0 {
		x.log.Warn("search on empty vector index")
		return nil, nil
	}

	queryVec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	scored := make([]model.ScoredChunk, len(x.entries))
	for i, e := range x.entries {
		// cloned so results never alias the stored maps
		scored[i] = model.ScoredChunk{
			Text:     e.chunk.Text,
			Metadata: e.chunk.Metadata.Clone(),
			Score:    cosineSimilarity(queryVec, e.vector),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k <= 0 || k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Clear discards all entries. The id counter is kept so ids are not
// reused within the lifetime of this index instance. Idempotent.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = nil
	metrics.IndexedChunks.Set(0)
	x.log.Info("vector index cleared")
}

// Count reports the number of stored entries. It is always consistent
// with the latest completed Add/Clear/Load.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Save serializes all entries into <dir>/index.db, creating the directory
// if absent. Saving an empty index returns ErrEmptyIndex.
func (x *Index) Save(dir string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.entries) == 0 {
		x.log.Warn("no entries to save", zap.String("dir", dir))
		return ErrEmptyIndex
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create knowledge base directory failed: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, dbFileName), 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("open knowledge base file failed: %w", err)
	}
	defer db.Close()

	err = db.Update(func(tx *bbolt.Tx) error {
		// overwrite any previous snapshot wholesale
		for _, name := range [][]byte{bucketEntries, bucketMeta} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
		}
		eb, err := tx.CreateBucket(bucketEntries)
		if err != nil {
			return err
		}
		mb, err := tx.CreateBucket(bucketMeta)
		if err != nil {
			return err
		}
		if err := mb.Put(metaKeyVersion, u64be(formatVersion)); err != nil {
			return err
		}
		if err := mb.Put(metaKeyNextID, u64be(x.nextID)); err != nil {
			return err
		}
		for _, e := range x.entries {
			raw, err := json.Marshal(storedEntry{
				Text:      e.chunk.Text,
				Metadata:  e.chunk.Metadata,
				Embedding: e.vector,
			})
			if err != nil {
				return err
			}
			if err := eb.Put(u64be(e.id), raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write knowledge base failed: %w", err)
	}

	x.log.Info("vector index saved",
		zap.String("dir", dir),
		zap.Int("entries", len(x.entries)))
	return nil
}

// Load replaces the in-memory state with the snapshot persisted under
// dir. A missing directory or index file returns ErrNotFound; any failure
// leaves the current state untouched.
func (x *Index) Load(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, dir)
	}
	path := filepath.Join(dir, dbFileName)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: no %s under %s", ErrNotFound, dbFileName, dir)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{ReadOnly: true, Timeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("open knowledge base file failed: %w", err)
	}
	defer db.Close()

	var (
		loaded      []entry
		nextID      uint64
		maxLoadedID uint64
	)
	err = db.View(func(tx *bbolt.Tx) error {
		mb := tx.Bucket(bucketMeta)
		eb := tx.Bucket(bucketEntries)
		if mb == nil || eb == nil {
			return errors.New("missing index buckets")
		}
		version := be64(mb.Get(metaKeyVersion))
		if version != formatVersion {
			return fmt.Errorf("unsupported knowledge base format version %d", version)
		}
		nextID = be64(mb.Get(metaKeyNextID))

		// big-endian keys iterate in insertion order
		return eb.ForEach(func(k, v []byte) error {
			var rec storedEntry
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode entry failed: %w", err)
			}
			if rec.Metadata == nil {
				rec.Metadata = model.Metadata{}
			}
			id := be64(k)
			if id > maxLoadedID {
				maxLoadedID = id
			}
			loaded = append(loaded, entry{
				id:     id,
				chunk:  model.Chunk{Text: rec.Text, Metadata: rec.Metadata},
				vector: rec.Embedding,
			})
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("read knowledge base failed: %w", err)
	}
	if nextID <= maxLoadedID {
		nextID = maxLoadedID + 1
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = loaded
	if nextID > x.nextID {
		x.nextID = nextID
	}
	metrics.IndexedChunks.Set(float64(len(x.entries)))
	x.log.Info("vector index loaded",
		zap.String("dir", dir),
		zap.Int("entries", len(x.entries)))
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func u64be(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func be64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
