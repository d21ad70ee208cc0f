package ingestion_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fasterchat/ragcore/chunk"
	"github.com/fasterchat/ragcore/embeddings"
	"github.com/fasterchat/ragcore/extract"
	"github.com/fasterchat/ragcore/ingestion"
	"github.com/fasterchat/ragcore/vectorstore"
)

type stubDocumentStore struct {
	mu       sync.Mutex
	statuses map[string][]ingestion.Status
	reasons  map[string]string
}

func newStubDocumentStore() *stubDocumentStore {
	return &stubDocumentStore{
		statuses: make(map[string][]ingestion.Status),
		reasons:  make(map[string]string),
	}
}

func (s *stubDocumentStore) Track(_ context.Context, documentID, _ string, _ extract.FileType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[documentID] = append(s.statuses[documentID], ingestion.StatusPending)
	return nil
}

func (s *stubDocumentStore) SetStatus(_ context.Context, documentID string, status ingestion.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[documentID] = append(s.statuses[documentID], status)
	return nil
}

func (s *stubDocumentStore) SetFailed(_ context.Context, documentID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[documentID] = append(s.statuses[documentID], ingestion.StatusFailed)
	s.reasons[documentID] = reason
	return nil
}

func (s *stubDocumentStore) last(documentID string) ingestion.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	transitions := s.statuses[documentID]
	if len(transitions) == 0 {
		return ""
	}
	return transitions[len(transitions)-1]
}

var _ ingestion.DocumentStore = (*stubDocumentStore)(nil)

type stubEmbedder struct {
	mu       sync.Mutex
	failures int
	calls    int
	err      error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("transient network error")
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

var _ embeddings.Embedder = (*stubEmbedder)(nil)

func discard() *log.Logger { return log.New(io.Discard, "", 0) }

func textUpload(id, text string) ingestion.Upload {
	return ingestion.Upload{
		DocumentID: id,
		Title:      "Doc " + id,
		FileType:   extract.FileTypeText,
		Data:       []byte(text),
	}
}

func longText(paragraphs int) string {
	var sb strings.Builder
	for i := 0; i < paragraphs; i++ {
		sb.WriteString(fmt.Sprintf("Paragraph %d talks about topic %d in enough words to matter. ", i, i))
		sb.WriteString("It keeps going with several more sentences of filler content. ")
		sb.WriteString("Each paragraph is separated so the splitter has boundaries.\n\n")
	}
	return sb.String()
}

func countChunks(t *testing.T, index vectorstore.Index, namespace, documentID string) int {
	t.Helper()
	results, err := index.Query(context.Background(), namespace, []float32{1, 0, 0}, 1000)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	count := 0
	for _, result := range results {
		if result.DocumentID == documentID {
			count++
		}
	}
	return count
}

func TestIngestIndexesOneEntryPerChunk(t *testing.T) {
	docs := newStubDocumentStore()
	index := vectorstore.NewMemory()
	splitter := chunk.NewSplitter(200, 40)
	svc := ingestion.NewService(docs, &stubEmbedder{}, index, splitter, "ns", 0, discard())

	text := longText(6)
	if err := svc.Ingest(context.Background(), textUpload("doc-1", text)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	wantChunks := len(splitter.Split(extract.Normalize(text)))
	if wantChunks < 2 {
		t.Fatalf("test text should produce multiple chunks, got %d", wantChunks)
	}
	if got := countChunks(t, index, "ns", "doc-1"); got != wantChunks {
		t.Fatalf("index holds %d chunks, want %d", got, wantChunks)
	}
	if docs.last("doc-1") != ingestion.StatusCompleted {
		t.Fatalf("expected completed status, got %q", docs.last("doc-1"))
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	docs := newStubDocumentStore()
	index := vectorstore.NewMemory()
	svc := ingestion.NewService(docs, &stubEmbedder{}, index, chunk.NewSplitter(200, 40), "ns", 0, discard())

	upload := textUpload("doc-1", longText(6))
	if err := svc.Ingest(context.Background(), upload); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	first := countChunks(t, index, "ns", "doc-1")

	if err := svc.Ingest(context.Background(), upload); err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if second := countChunks(t, index, "ns", "doc-1"); second != first {
		t.Fatalf("re-ingest changed chunk count: %d vs %d", second, first)
	}
}

func TestIngestEmptyDocumentFails(t *testing.T) {
	docs := newStubDocumentStore()
	index := vectorstore.NewMemory()
	svc := ingestion.NewService(docs, &stubEmbedder{}, index, nil, "ns", 0, discard())

	err := svc.Ingest(context.Background(), textUpload("doc-1", "   \n\n  "))
	if err == nil {
		t.Fatal("expected error for empty document")
	}
	if docs.last("doc-1") != ingestion.StatusFailed {
		t.Fatalf("expected failed status, got %q", docs.last("doc-1"))
	}
	if docs.reasons["doc-1"] == "" {
		t.Fatal("expected a recorded failure reason")
	}
}

func TestIngestOversizedUploadFails(t *testing.T) {
	docs := newStubDocumentStore()
	svc := ingestion.NewService(docs, &stubEmbedder{}, vectorstore.NewMemory(), nil, "ns", 16, discard())

	err := svc.Ingest(context.Background(), textUpload("doc-1", strings.Repeat("a", 64)))
	if err == nil {
		t.Fatal("expected error for oversized upload")
	}
	if docs.last("doc-1") != ingestion.StatusFailed {
		t.Fatalf("expected failed status, got %q", docs.last("doc-1"))
	}
}

func TestIngestEmbeddingFailureCleansIndex(t *testing.T) {
	docs := newStubDocumentStore()
	index := vectorstore.NewMemory()
	embedder := &stubEmbedder{err: embeddings.ErrUnavailable}
	svc := ingestion.NewService(docs, embedder, index, nil, "ns", 0, discard())

	err := svc.Ingest(context.Background(), textUpload("doc-1", longText(4)))
	if !errors.Is(err, embeddings.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if docs.last("doc-1") != ingestion.StatusFailed {
		t.Fatalf("expected failed status, got %q", docs.last("doc-1"))
	}
	if got := countChunks(t, index, "ns", "doc-1"); got != 0 {
		t.Fatalf("index holds %d chunks for a failed document, want 0", got)
	}
}

func TestIngestRecoversFromTransientEmbeddingFailures(t *testing.T) {
	docs := newStubDocumentStore()
	index := vectorstore.NewMemory()
	flaky := &stubEmbedder{failures: 2}
	retrying := embeddings.NewRetrying(flaky, 3, time.Millisecond)
	svc := ingestion.NewService(docs, retrying, index, nil, "ns", 0, discard())

	if err := svc.Ingest(context.Background(), textUpload("doc-1", longText(4))); err != nil {
		t.Fatalf("ingest should succeed on the third attempt: %v", err)
	}
	if flaky.calls != 3 {
		t.Fatalf("expected 3 embed attempts, got %d", flaky.calls)
	}
	if docs.last("doc-1") != ingestion.StatusCompleted {
		t.Fatalf("expected completed status, got %q", docs.last("doc-1"))
	}
}

func TestIngestAllIsolatesFailures(t *testing.T) {
	docs := newStubDocumentStore()
	index := vectorstore.NewMemory()
	svc := ingestion.NewService(docs, &stubEmbedder{}, index, nil, "ns", 0, discard())

	uploads := []ingestion.Upload{
		textUpload("good-1", longText(3)),
		textUpload("bad", ""),
		textUpload("good-2", longText(3)),
	}

	err := svc.IngestAll(context.Background(), uploads, 2)
	if err == nil {
		t.Fatal("expected joined error for the failing document")
	}
	if !strings.Contains(err.Error(), "bad") {
		t.Fatalf("error should identify the failed document: %v", err)
	}

	if docs.last("good-1") != ingestion.StatusCompleted || docs.last("good-2") != ingestion.StatusCompleted {
		t.Fatal("healthy documents should complete despite a sibling failure")
	}
	if docs.last("bad") != ingestion.StatusFailed {
		t.Fatalf("expected failed status for bad document, got %q", docs.last("bad"))
	}
}

func TestChunkIDIsDeterministic(t *testing.T) {
	a := ingestion.ChunkID("ns", "doc-1", 3)
	b := ingestion.ChunkID("ns", "doc-1", 3)
	if a != b {
		t.Fatalf("chunk id not deterministic: %q vs %q", a, b)
	}
	if a == ingestion.ChunkID("ns", "doc-1", 4) {
		t.Fatal("different ordinals must map to different chunk ids")
	}
	if a == ingestion.ChunkID("other", "doc-1", 3) {
		t.Fatal("different namespaces must map to different chunk ids")
	}
}
