package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fasterchat/ragcore/extract"
	"github.com/fasterchat/ragcore/ingestion"
)

// Document is one tracked upload.
type Document struct {
	ID           string
	Title        string
	FileType     extract.FileType
	Status       ingestion.Status
	ErrorMessage string
	UploadedAt   time.Time
	ProcessedAt  *time.Time
}

// PostgresDocumentStore implements ingestion.DocumentStore on the
// rag_documents table.
type PostgresDocumentStore struct {
	pool *pgxpool.Pool
}

func NewPostgresDocumentStore(pool *pgxpool.Pool) *PostgresDocumentStore {
	return &PostgresDocumentStore{pool: pool}
}

func (s *PostgresDocumentStore) Track(ctx context.Context, documentID, title string, fileType extract.FileType) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rag_documents (id, title, file_type, status, uploaded_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			file_type = EXCLUDED.file_type,
			status = EXCLUDED.status,
			error_message = NULL,
			processed_at = NULL
	`, documentID, title, string(fileType), string(ingestion.StatusPending))
	if err != nil {
		return fmt.Errorf("track document: %w", err)
	}
	return nil
}

func (s *PostgresDocumentStore) SetStatus(ctx context.Context, documentID string, status ingestion.Status) error {
	query := "UPDATE rag_documents SET status = $2 WHERE id = $1"
	if status == ingestion.StatusCompleted {
		query = "UPDATE rag_documents SET status = $2, processed_at = NOW() WHERE id = $1"
	}
	if _, err := s.pool.Exec(ctx, query, documentID, string(status)); err != nil {
		return fmt.Errorf("set document status: %w", err)
	}
	return nil
}

func (s *PostgresDocumentStore) SetFailed(ctx context.Context, documentID, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE rag_documents
		SET status = $2,
		    error_message = $3,
		    processed_at = NOW()
		WHERE id = $1
	`, documentID, string(ingestion.StatusFailed), reason)
	if err != nil {
		return fmt.Errorf("mark document failed: %w", err)
	}
	return nil
}

// Get returns one tracked document, or nil when it does not exist.
func (s *PostgresDocumentStore) Get(ctx context.Context, documentID string) (*Document, error) {
	var (
		doc      Document
		fileType string
		status   string
		title    *string
		errMsg   *string
	)

	err := s.pool.QueryRow(ctx, `
		SELECT id, title, file_type, status, error_message, uploaded_at, processed_at
		FROM rag_documents
		WHERE id = $1
	`, documentID).Scan(&doc.ID, &title, &fileType, &status, &errMsg, &doc.UploadedAt, &doc.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query document: %w", err)
	}

	if title != nil {
		doc.Title = *title
	}
	if errMsg != nil {
		doc.ErrorMessage = *errMsg
	}
	doc.FileType = extract.FileType(fileType)
	doc.Status = ingestion.Status(status)

	return &doc, nil
}

// Delete removes the document row after its chunks are gone from the index.
func (s *PostgresDocumentStore) Delete(ctx context.Context, documentID string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM rag_documents WHERE id = $1", documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

var _ ingestion.DocumentStore = (*PostgresDocumentStore)(nil)
