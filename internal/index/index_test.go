package index

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"pandaqa/internal/model"
)

// stubEmbedder returns canned vectors by text, so rankings in tests are
// fully deterministic and no network is involved.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := s.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{1, 0, 0}
		}
	}
	return out, nil
}

func chunk(text, source string) model.Chunk {
	return model.Chunk{Text: text, Metadata: model.Metadata{"source": source}}
}

func TestAdd_AssignsSequentialIDs(t *testing.T) {
	idx := New(&stubEmbedder{}, zap.NewNop())

	ids, err := idx.Add(context.Background(), []model.Chunk{
		chunk("one", "a.txt"), chunk("two", "a.txt"), chunk("three", "a.txt"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, id := range ids {
		if id != uint64(i) {
			t.Errorf("expected id %d at position %d, got %d", i, i, id)
		}
	}
	if idx.Count() != 3 {
		t.Errorf("expected count 3, got %d", idx.Count())
	}
}

func TestAdd_EmptyInput(t *testing.T) {
	emb := &stubEmbedder{}
	idx := New(emb, zap.NewNop())

	ids, err := idx.Add(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no ids, got %v", ids)
	}
	if emb.calls != 0 {
		t.Errorf("embedder should not be called for empty input, got %d calls", emb.calls)
	}
}

func TestAdd_EmbeddingFailureIsNoOp(t *testing.T) {
	idx := New(&stubEmbedder{err: errors.New("provider down")}, zap.NewNop())

	_, err := idx.Add(context.Background(), []model.Chunk{chunk("one", "a.txt")})
	if err == nil {
		t.Fatal("expected error when embedding fails")
	}
	if idx.Count() != 0 {
		t.Errorf("expected no entries after failed add, got %d", idx.Count())
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	emb := &stubEmbedder{}
	idx := New(emb, zap.NewNop())

	for _, k := range []int{0, 1, 100} {
		results, err := idx.Search(context.Background(), "anything", k)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results for k=%d, got %d", k, len(results))
		}
	}
	if emb.calls != 0 {
		t.Errorf("embedder should not be called on an empty index, got %d calls", emb.calls)
	}
}

func TestSearch_RanksByCosineSimilarity(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"exact":    {1, 0, 0},
		"close":    {0.9, 0.435890, 0}, // unit length
		"far":      {0, 1, 0},
		"my query": {1, 0, 0},
	}}
	idx := New(emb, zap.NewNop())

	_, err := idx.Add(context.Background(), []model.Chunk{
		chunk("far", "a.txt"), chunk("exact", "a.txt"), chunk("close", "a.txt"),
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	results, err := idx.Search(context.Background(), "my query", 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Text != "exact" || results[1].Text != "close" {
		t.Errorf("unexpected ranking: %q then %q", results[0].Text, results[1].Text)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("scores not descending: %f then %f", results[0].Score, results[1].Score)
	}
	if results[0].Score < 0.999 {
		t.Errorf("expected raw cosine near 1 for exact match, got %f", results[0].Score)
	}
}

func TestSearch_ClampsKToEntryCount(t *testing.T) {
	idx := New(&stubEmbedder{}, zap.NewNop())
	if _, err := idx.Add(context.Background(), []model.Chunk{chunk("only", "a.txt")}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	results, err := idx.Search(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result with k=3 and one entry, got %d", len(results))
	}
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	idx := New(&stubEmbedder{}, zap.NewNop())
	// all texts fall back to the same stub vector, so every score ties
	if _, err := idx.Add(context.Background(), []model.Chunk{
		chunk("first", "a.txt"), chunk("second", "a.txt"), chunk("third", "a.txt"),
	}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	results, err := idx.Search(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if results[i].Text != w {
			t.Errorf("position %d: expected %q, got %q", i, w, results[i].Text)
		}
	}
}

func TestSearch_ResultsDoNotAliasStoredMetadata(t *testing.T) {
	idx := New(&stubEmbedder{}, zap.NewNop())
	if _, err := idx.Add(context.Background(), []model.Chunk{chunk("one", "a.txt")}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	results, err := idx.Search(context.Background(), "query", 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	results[0].Metadata["source"] = "tampered"

	again, err := idx.Search(context.Background(), "query", 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if again[0].Metadata["source"] != "a.txt" {
		t.Errorf("stored metadata was mutated through a search result: %v", again[0].Metadata)
	}
}

func TestAdd_DoesNotMutateCallerChunks(t *testing.T) {
	idx := New(&stubEmbedder{}, zap.NewNop())
	chunks := []model.Chunk{{Text: "bare"}}

	if _, err := idx.Add(context.Background(), chunks); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if chunks[0].Metadata != nil {
		t.Errorf("caller chunk metadata was written: %v", chunks[0].Metadata)
	}

	results, err := idx.Search(context.Background(), "bare", 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if results[0].Metadata == nil {
		t.Error("stored chunk should carry a metadata map")
	}
}

func TestClear_IDsNotReused(t *testing.T) {
	idx := New(&stubEmbedder{}, zap.NewNop())
	if _, err := idx.Add(context.Background(), []model.Chunk{chunk("one", "a.txt"), chunk("two", "a.txt")}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	idx.Clear()
	idx.Clear() // idempotent
	if idx.Count() != 0 {
		t.Fatalf("expected empty index after clear, got %d", idx.Count())
	}

	ids, err := idx.Add(context.Background(), []model.Chunk{chunk("three", "a.txt")})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if ids[0] != 2 {
		t.Errorf("expected id 2 after clear, got %d", ids[0])
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {0.6, 0.8, 0},
		"gamma": {0, 0, 1},
		"query": {0.8, 0.6, 0},
	}}
	idx := New(emb, zap.NewNop())
	dir := filepath.Join(t.TempDir(), "kb")

	if _, err := idx.Add(context.Background(), []model.Chunk{
		chunk("alpha", "a.txt"), chunk("beta", "b.txt"), chunk("gamma", "c.txt"),
	}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	before, err := idx.Search(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	if err := idx.Save(dir); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	idx.Clear()
	if err := idx.Load(dir); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if idx.Count() != 3 {
		t.Fatalf("expected 3 entries after load, got %d", idx.Count())
	}

	after, err := idx.Search(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("expected %d results, got %d", len(before), len(after))
	}
	for i := range before {
		if after[i].Text != before[i].Text {
			t.Errorf("rank %d: expected %q, got %q", i, before[i].Text, after[i].Text)
		}
		if math.Abs(float64(after[i].Score-before[i].Score)) > 1e-6 {
			t.Errorf("rank %d: score drifted from %f to %f", i, before[i].Score, after[i].Score)
		}
		if after[i].Metadata["source"] != before[i].Metadata["source"] {
			t.Errorf("rank %d: metadata source lost", i)
		}
	}
}

func TestSave_EmptyIndex(t *testing.T) {
	idx := New(&stubEmbedder{}, zap.NewNop())

	if err := idx.Save(t.TempDir()); !errors.Is(err, ErrEmptyIndex) {
		t.Errorf("expected ErrEmptyIndex, got %v", err)
	}
}

func TestLoad_MissingDirectoryLeavesStateUntouched(t *testing.T) {
	idx := New(&stubEmbedder{}, zap.NewNop())
	if _, err := idx.Add(context.Background(), []model.Chunk{chunk("keep me", "a.txt")}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	err := idx.Load(filepath.Join(t.TempDir(), "does-not-exist"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if idx.Count() != 1 {
		t.Errorf("expected state untouched after failed load, got %d entries", idx.Count())
	}
}

func TestLoad_ContinuesIDSequence(t *testing.T) {
	emb := &stubEmbedder{}
	idx := New(emb, zap.NewNop())
	dir := filepath.Join(t.TempDir(), "kb")

	if _, err := idx.Add(context.Background(), []model.Chunk{chunk("one", "a.txt"), chunk("two", "a.txt")}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := idx.Save(dir); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	fresh := New(emb, zap.NewNop())
	if err := fresh.Load(dir); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	ids, err := fresh.Add(context.Background(), []model.Chunk{chunk("three", "a.txt")})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if ids[0] != 2 {
		t.Errorf("expected id sequence to continue at 2, got %d", ids[0])
	}
}
