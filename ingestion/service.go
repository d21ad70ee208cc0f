// Package ingestion runs the per-document pipeline: extract, chunk, embed,
// index.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fasterchat/ragcore/chunk"
	"github.com/fasterchat/ragcore/embeddings"
	"github.com/fasterchat/ragcore/extract"
	"github.com/fasterchat/ragcore/vectorstore"
)

// Status is the document lifecycle state. A document never leaves a terminal
// state; re-uploading creates a new document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// DocumentStore is the surrounding application's document table. The pipeline
// only tracks rows and writes status transitions through it.
type DocumentStore interface {
	Track(ctx context.Context, documentID, title string, fileType extract.FileType) error
	SetStatus(ctx context.Context, documentID string, status Status) error
	SetFailed(ctx context.Context, documentID, reason string) error
}

// Upload is one document payload handed in by the shell.
type Upload struct {
	DocumentID string
	Title      string
	FileType   extract.FileType
	Data       []byte
}

type Service struct {
	docs           DocumentStore
	embedder       embeddings.Embedder
	index          vectorstore.Index
	splitter       *chunk.Splitter
	namespace      string
	maxUploadBytes int64
	logger         *log.Logger
}

func NewService(
	docs DocumentStore,
	embedder embeddings.Embedder,
	index vectorstore.Index,
	splitter *chunk.Splitter,
	namespace string,
	maxUploadBytes int64,
	logger *log.Logger,
) *Service {
	if splitter == nil {
		splitter = chunk.NewSplitter(chunk.DefaultMaxSize, chunk.DefaultOverlap)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		docs:           docs,
		embedder:       embedder,
		index:          index,
		splitter:       splitter,
		namespace:      namespace,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Ingest processes one document. Stages run strictly in order; the first
// failure marks the document failed, records the reason, and deletes any
// chunks already written so the index never holds a partial document.
func (s *Service) Ingest(ctx context.Context, upload Upload) error {
	if s.embedder == nil {
		return fmt.Errorf("embedder not configured")
	}
	if s.index == nil {
		return fmt.Errorf("vector index not configured")
	}
	if upload.DocumentID == "" {
		return fmt.Errorf("document id is required")
	}

	if err := s.docs.Track(ctx, upload.DocumentID, upload.Title, upload.FileType); err != nil {
		return fmt.Errorf("track document: %w", err)
	}

	if s.maxUploadBytes > 0 && int64(len(upload.Data)) > s.maxUploadBytes {
		reason := fmt.Sprintf("file exceeds the %d byte upload limit", s.maxUploadBytes)
		return s.fail(ctx, upload.DocumentID, reason, errors.New(reason))
	}

	if err := s.docs.SetStatus(ctx, upload.DocumentID, StatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	text, err := extract.Extract(ctx, upload.Data, upload.FileType)
	if err != nil {
		return s.fail(ctx, upload.DocumentID, failureReason(err), err)
	}

	chunks := s.splitter.Split(text)
	if len(chunks) == 0 {
		reason := "document contains no indexable text"
		return s.fail(ctx, upload.DocumentID, reason, errors.New(reason))
	}

	texts := make([]string, len(chunks))
	for i, piece := range chunks {
		texts[i] = piece.Text
	}

	// One batched call per document keeps external embedding requests bounded.
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return s.fail(ctx, upload.DocumentID, "embedding service is unavailable, try again later", err)
	}
	if len(vectors) != len(chunks) {
		err := fmt.Errorf("embedding count mismatch: have %d chunks, %d vectors", len(chunks), len(vectors))
		return s.fail(ctx, upload.DocumentID, "embedding service returned an inconsistent response", err)
	}

	// Drop stale chunks from a prior version of this document before writing,
	// so a shrunken re-upload cannot leave orphaned ordinals behind.
	if err := s.index.Delete(ctx, s.namespace, upload.DocumentID); err != nil {
		return s.fail(ctx, upload.DocumentID, "vector index is unavailable, try again later", err)
	}

	entries := make([]vectorstore.Entry, len(chunks))
	for i, piece := range chunks {
		entries[i] = vectorstore.Entry{
			ChunkID:    ChunkID(s.namespace, upload.DocumentID, piece.Ordinal),
			DocumentID: upload.DocumentID,
			Title:      upload.Title,
			Ordinal:    piece.Ordinal,
			Text:       piece.Text,
			Vector:     vectors[i],
		}
	}

	if err := s.index.Upsert(ctx, s.namespace, entries); err != nil {
		return s.fail(ctx, upload.DocumentID, "vector index write failed, try again later", err)
	}

	if err := s.docs.SetStatus(ctx, upload.DocumentID, StatusCompleted); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	s.logger.Printf("ingested document %s (%d chunks)", upload.DocumentID, len(chunks))
	return nil
}

// IngestAll processes uploads concurrently with bounded parallelism. One
// document's failure never aborts the rest; the returned error joins the
// individual failures.
func (s *Service) IngestAll(ctx context.Context, uploads []Upload, parallelism int) error {
	if parallelism <= 0 {
		parallelism = 4
	}

	var (
		group errgroup.Group
		mu    sync.Mutex
		errs  []error
	)
	group.SetLimit(parallelism)

	for _, upload := range uploads {
		group.Go(func() error {
			if err := s.Ingest(ctx, upload); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("document %s: %w", upload.DocumentID, err))
				mu.Unlock()
			}
			return nil
		})
	}

	_ = group.Wait()
	return errors.Join(errs...)
}

// Remove deletes a document's chunks from the index.
func (s *Service) Remove(ctx context.Context, documentID string) error {
	return s.index.Delete(ctx, s.namespace, documentID)
}

// ChunkID derives a stable chunk identity from namespace, document, and
// ordinal, so re-ingesting the same document upserts in place.
func ChunkID(namespace, documentID string, ordinal int) string {
	name := fmt.Sprintf("%s:%s:%d", namespace, documentID, ordinal)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// fail records the failure reason, cleans partial chunks out of the index,
// and returns the original error.
func (s *Service) fail(ctx context.Context, documentID, reason string, cause error) error {
	if err := s.index.Delete(ctx, s.namespace, documentID); err != nil {
		s.logger.Printf("cleanup after failed ingest of %s: %v", documentID, err)
	}
	if err := s.docs.SetFailed(ctx, documentID, reason); err != nil {
		s.logger.Printf("record failure for %s: %v", documentID, err)
	}
	s.logger.Printf("ingest failed for %s: %v", documentID, cause)
	return fmt.Errorf("ingest document %s: %w", documentID, cause)
}

// failureReason extracts a user-safe reason from extraction errors.
func failureReason(err error) string {
	var extractionErr *extract.Error
	if errors.As(err, &extractionErr) {
		return extractionErr.Reason
	}
	return "document could not be processed"
}
