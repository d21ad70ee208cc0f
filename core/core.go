// Package core is the narrow interface the surrounding application shell
// calls: Ingest, Ask, Remove.
package core

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/fasterchat/ragcore/answer"
	"github.com/fasterchat/ragcore/embeddings"
	"github.com/fasterchat/ragcore/extract"
	"github.com/fasterchat/ragcore/ingestion"
	"github.com/fasterchat/ragcore/llm"
	"github.com/fasterchat/ragcore/retrieval"
	"github.com/fasterchat/ragcore/vectorstore"
)

// DocumentDeleter removes the tracked document row once its chunks are gone.
// Optional; the shell may own document rows itself.
type DocumentDeleter interface {
	Delete(ctx context.Context, documentID string) error
}

type Service struct {
	ingest   *ingestion.Service
	engine   *retrieval.Engine
	composer *answer.Composer
	params   retrieval.Params
	docs     DocumentDeleter
	logger   *log.Logger
}

func New(
	ingest *ingestion.Service,
	engine *retrieval.Engine,
	composer *answer.Composer,
	params retrieval.Params,
	docs DocumentDeleter,
	logger *log.Logger,
) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		ingest:   ingest,
		engine:   engine,
		composer: composer,
		params:   params,
		docs:     docs,
		logger:   logger,
	}
}

// Ingest runs the full pipeline for one uploaded document.
func (s *Service) Ingest(ctx context.Context, documentID string, data []byte, fileType extract.FileType, title string) error {
	return s.ingest.Ingest(ctx, ingestion.Upload{
		DocumentID: documentID,
		Title:      title,
		FileType:   fileType,
		Data:       data,
	})
}

// IngestAll ingests a batch of documents with per-document failure isolation.
func (s *Service) IngestAll(ctx context.Context, uploads []ingestion.Upload, parallelism int) error {
	return s.ingest.IngestAll(ctx, uploads, parallelism)
}

// Ask answers a question. Retrieval failures degrade to the no-context
// generative path; only a failed generative call is user-visible.
func (s *Service) Ask(ctx context.Context, question string, history []llm.Message) (answer.Answer, error) {
	results, err := s.engine.Retrieve(ctx, question, s.params)
	if err != nil {
		if !retrievalDegradable(err) {
			return answer.Answer{}, err
		}
		s.logger.Printf("retrieval degraded, answering without context: %v", err)
		results = nil
	}

	return s.composer.Compose(ctx, question, results, history)
}

// Remove deletes all of a document's chunks from the index, then drops the
// tracked document row.
func (s *Service) Remove(ctx context.Context, documentID string) error {
	if err := s.ingest.Remove(ctx, documentID); err != nil {
		return fmt.Errorf("remove document %s: %w", documentID, err)
	}
	if s.docs != nil {
		if err := s.docs.Delete(ctx, documentID); err != nil {
			return fmt.Errorf("remove document %s: %w", documentID, err)
		}
	}
	return nil
}

// retrievalDegradable reports whether a retrieval error should fall back to
// the no-context path instead of failing the request. Context cancellation
// and malformed input propagate; backend unavailability degrades.
func retrievalDegradable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var indexErr *vectorstore.IndexError
	return errors.Is(err, embeddings.ErrUnavailable) || errors.As(err, &indexErr)
}
