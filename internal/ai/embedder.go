package ai

import (
	"context"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"pandaqa/internal/metrics"
)

// Embedding requests are split into groups to stay under provider batch
// limits.
const embeddingBatchSize = 10

// EmbedderConfig holds API settings for the embedding backend.
type EmbedderConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// OpenAIEmbedder produces embeddings via an OpenAI-compatible /embeddings
// endpoint. All returned vectors are normalized to unit length so that
// inner product equals cosine similarity.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	log    *zap.Logger
}

func NewOpenAIEmbedder(cfg EmbedderConfig, log *zap.Logger) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: newClient(cfg.BaseURL, cfg.APIKey),
		model:  openai.EmbeddingModel(cfg.Model),
		log:    log,
	}
}

// Embed returns the unit-normalized embedding vector for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one unit-normalized vector per input text, in input
// order. Any failure fails the whole batch.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedGroup(ctx, texts[start:end])
		if err != nil {
			metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
			e.log.Error("embedding request failed",
				zap.Int("batch_start", start),
				zap.Error(err))
			return nil, err
		}
		metrics.EmbeddingRequestsTotal.WithLabelValues("success").Inc()
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedGroup(ctx context.Context, texts []string) ([][]float32, error) {
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = strings.TrimSpace(t)
		if input[i] == "" {
			// the API rejects empty strings; a lone space keeps
			// positions aligned with the caller's texts
			input[i] = " "
		}
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          input,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", classifyTransportErr(err))
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("embedding count mismatch: asked %d, got %d", len(input), len(resp.Data))
	}

	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
		vecs[i] = normalize(d.Embedding)
	}
	return vecs, nil
}

// normalize scales the vector to unit length. A zero vector is returned
// unchanged.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
