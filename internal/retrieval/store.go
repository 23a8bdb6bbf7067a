package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// Passage is one indexed text chunk.
type Passage struct {
	ID        uuid.UUID
	Content   string
	Source    string
	CreatedAt time.Time
}

// PassageStore persists and searches passages in Postgres via pgvector.
type PassageStore struct {
	pool *pgxpool.Pool
}

func NewPassageStore(pool *pgxpool.Pool) *PassageStore {
	return &PassageStore{pool: pool}
}

// Insert stores one embedded passage.
func (s *PassageStore) Insert(ctx context.Context, content, source string, embedding []float32) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO passages (id, content, source, embedding)
		 VALUES ($1, $2, $3, $4)`,
		uuid.New(), content, source, pgvector.NewVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("inserting passage: %w", err)
	}
	return nil
}

// InsertBatch stores many embedded passages in one round trip.
func (s *PassageStore) InsertBatch(ctx context.Context, contents []string, source string, embeddings [][]float32) error {
	if len(contents) != len(embeddings) {
		return fmt.Errorf("got %d contents but %d embeddings", len(contents), len(embeddings))
	}

	batch := &pgx.Batch{}
	for i, content := range contents {
		batch.Queue(
			`INSERT INTO passages (id, content, source, embedding)
			 VALUES ($1, $2, $3, $4)`,
			uuid.New(), content, source, pgvector.NewVector(embeddings[i]),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range contents {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("inserting passage batch: %w", err)
		}
	}
	return nil
}

// SearchSimilar returns the limit passages nearest to the query embedding,
// ordered by cosine distance.
func (s *PassageStore) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]string, error) {
	vec := pgvector.NewVector(embedding)
	rows, err := s.pool.Query(ctx,
		`SELECT content
		 FROM passages
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		vec, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching passages: %w", err)
	}
	defer rows.Close()

	var passages []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scanning passage: %w", err)
		}
		passages = append(passages, content)
	}
	return passages, rows.Err()
}

// Count returns the number of indexed passages.
func (s *PassageStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM passages`).Scan(&count)
	return count, err
}
