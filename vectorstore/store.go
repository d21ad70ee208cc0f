// Package vectorstore stores chunk embeddings and answers nearest-neighbor
// queries.
package vectorstore

import (
	"context"
	"fmt"
)

// Entry is one indexed chunk. ChunkID is the upsert key: writing the same
// ChunkID again overwrites, never duplicates.
type Entry struct {
	ChunkID    string
	DocumentID string
	Title      string
	Ordinal    int
	Text       string
	Vector     []float32
}

// Result is one query hit. Score is cosine similarity mapped to the 0-1
// scale used by the similarity threshold.
type Result struct {
	ChunkID    string
	DocumentID string
	Title      string
	Ordinal    int
	Text       string
	Score      float64
}

// IndexError reports a backend failure (unreachable store, write conflict).
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("vector index %s: %v", e.Op, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// Index is the namespace-scoped vector store. Query results come back in
// descending score order with ties broken by ascending chunk ordinal, and
// never cross namespaces. Delete succeeds even when the document has no
// indexed chunks.
type Index interface {
	Upsert(ctx context.Context, namespace string, entries []Entry) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Result, error)
	Delete(ctx context.Context, namespace, documentID string) error
}
