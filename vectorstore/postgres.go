package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Postgres backs the index with a pgvector table. Concurrency discipline is
// delegated to Postgres: each upsert is keyed by chunk id and independently
// atomic.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Upsert(ctx context.Context, namespace string, entries []Entry) error {
	if s.pool == nil {
		return &IndexError{Op: "upsert", Err: fmt.Errorf("postgres pool is nil")}
	}
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, entry := range entries {
		batch.Queue(`
			INSERT INTO rag_chunks (id, namespace, document_id, ordinal, title, content, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding,
				updated_at = NOW()
		`, entry.ChunkID, namespace, entry.DocumentID, entry.Ordinal, entry.Title, entry.Text, pgvector.NewVector(entry.Vector))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			return &IndexError{Op: "upsert", Err: err}
		}
	}

	return nil
}

func (s *Postgres) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Result, error) {
	if s.pool == nil {
		return nil, &IndexError{Op: "query", Err: fmt.Errorf("postgres pool is nil")}
	}
	if len(vector) == 0 {
		return nil, &IndexError{Op: "query", Err: fmt.Errorf("query vector is empty")}
	}
	if topK <= 0 {
		topK = 5
	}

	rows, err := s.pool.Query(ctx, `
		SELECT
			id,
			document_id,
			title,
			ordinal,
			content,
			1 - (embedding <=> $2::vector) AS score
		FROM rag_chunks
		WHERE namespace = $1
		ORDER BY embedding <=> $2::vector ASC, ordinal ASC
		LIMIT $3
	`, namespace, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, &IndexError{Op: "query", Err: err}
	}
	defer rows.Close()

	results := make([]Result, 0, topK)
	for rows.Next() {
		var item Result
		if scanErr := rows.Scan(&item.ChunkID, &item.DocumentID, &item.Title, &item.Ordinal, &item.Text, &item.Score); scanErr != nil {
			return nil, &IndexError{Op: "query", Err: scanErr}
		}
		results = append(results, item)
	}
	if rows.Err() != nil {
		return nil, &IndexError{Op: "query", Err: rows.Err()}
	}

	return results, nil
}

func (s *Postgres) Delete(ctx context.Context, namespace, documentID string) error {
	if s.pool == nil {
		return &IndexError{Op: "delete", Err: fmt.Errorf("postgres pool is nil")}
	}

	if _, err := s.pool.Exec(ctx,
		"DELETE FROM rag_chunks WHERE namespace = $1 AND document_id = $2",
		namespace, documentID,
	); err != nil {
		return &IndexError{Op: "delete", Err: err}
	}

	return nil
}

var _ Index = (*Postgres)(nil)
