// Package retriever orchestrates query answering: index search, context
// assembly and delegation to the answer generator.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pandaqa/internal/ai"
	"pandaqa/internal/index"
	"pandaqa/internal/metrics"
	"pandaqa/internal/model"
)

const noResultsAnswer = "No relevant information found."

// QueryResult is the answer payload for one query.
type QueryResult struct {
	Query   string              `json:"query"`
	Answer  string              `json:"answer"`
	Context []model.ScoredChunk `json:"context"`
}

// Retriever is a pure read path over the vector index. Its only side
// effect is the external generation call.
type Retriever struct {
	index       *index.Index
	generator   ai.Generator
	defaultTopK int
	log         *zap.Logger
}

func New(idx *index.Index, generator ai.Generator, defaultTopK int, log *zap.Logger) *Retriever {
	if defaultTopK <= 0 {
		defaultTopK = 3
	}
	return &Retriever{index: idx, generator: generator, defaultTopK: defaultTopK, log: log}
}

// AnswerQuery retrieves the topK most relevant chunks and asks the
// generator for an answer grounded in them.
//
// An empty knowledge base (or no matching chunks) short-circuits with a
// fixed answer and no generation call. Retrieval failures degrade to the
// same fixed answer with a logged cause, and a generator failure degrades
// to a human-readable "cannot generate" answer; neither fails the query.
func (r *Retriever) AnswerQuery(ctx context.Context, query string, topK int) (QueryResult, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	results, err := r.index.Search(ctx, query, topK)
	if err != nil {
		r.log.Error("search failed", zap.String("query", query), zap.Error(err))
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return QueryResult{Query: query, Answer: noResultsAnswer, Context: []model.ScoredChunk{}}, nil
	}
	if len(results) == 0 {
		r.log.Warn("no documents found related to the query", zap.String("query", query))
		metrics.QueriesTotal.WithLabelValues("empty").Inc()
		return QueryResult{Query: query, Answer: noResultsAnswer, Context: []model.ScoredChunk{}}, nil
	}

	answer, err := r.generator.Generate(ctx, query, BuildContext(results))
	if err != nil {
		// a degraded answer is preferable to a failed query endpoint
		r.log.Error("answer generation failed", zap.String("query", query), zap.Error(err))
		metrics.QueriesTotal.WithLabelValues("degraded").Inc()
		answer = fmt.Sprintf("Sorry, I cannot generate an answer: %v", err)
	} else {
		metrics.QueriesTotal.WithLabelValues("answered").Inc()
	}

	return QueryResult{Query: query, Answer: answer, Context: results}, nil
}

// BuildContext concatenates the retrieved chunks, in ranked order, into
// the context block handed to the generator. Each chunk is labeled with
// its source, falling back to "Document N" when the metadata has none.
func BuildContext(results []model.ScoredChunk) string {
	parts := make([]string, len(results))
	for i, res := range results {
		source, ok := res.Metadata.Source()
		if !ok {
			source = fmt.Sprintf("Document %d", i+1)
		}
		parts[i] = fmt.Sprintf("[%s]\n%s", source, res.Text)
	}
	return strings.Join(parts, "\n\n")
}
