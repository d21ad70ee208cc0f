// Package retrieval finds the document chunks most relevant to a question.
package retrieval

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/fasterchat/ragcore/embeddings"
	"github.com/fasterchat/ragcore/vectorstore"
)

const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.75
)

// Params tunes one retrieval call. The threshold trades recall for precision
// and gates the cost-saving fallback decision downstream, so it is always
// caller-supplied configuration, never a constant. A zero threshold disables
// filtering entirely; a negative one selects the default.
type Params struct {
	TopK                int
	SimilarityThreshold float64
}

// Engine embeds a question once, queries the vector index, and drops results
// below the similarity threshold.
type Engine struct {
	embedder  embeddings.Embedder
	index     vectorstore.Index
	namespace string
	logger    *log.Logger
}

func NewEngine(embedder embeddings.Embedder, index vectorstore.Index, namespace string, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		embedder:  embedder,
		index:     index,
		namespace: namespace,
		logger:    logger,
	}
}

// Retrieve returns matching chunks in descending score order. Errors from the
// embedder or index pass through typed (embeddings.ErrUnavailable,
// *vectorstore.IndexError) so callers can degrade instead of failing.
func (e *Engine) Retrieve(ctx context.Context, question string, params Params) ([]vectorstore.Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}
	if e.embedder == nil {
		return nil, fmt.Errorf("embedder is not configured")
	}
	if e.index == nil {
		return nil, fmt.Errorf("vector index is not configured")
	}

	topK := params.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	// Zero is a valid configuration meaning "retain every candidate"; only a
	// negative threshold counts as unset.
	threshold := params.SimilarityThreshold
	if threshold < 0 {
		threshold = DefaultSimilarityThreshold
	}

	vectors, err := e.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	candidates, err := e.index.Query(ctx, e.namespace, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	retained := make([]vectorstore.Result, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Score >= threshold {
			retained = append(retained, candidate)
		}
	}

	if len(retained) < len(candidates) {
		e.logger.Printf("retrieval dropped %d of %d chunks below threshold %.2f",
			len(candidates)-len(retained), len(candidates), threshold)
	}

	return retained, nil
}
