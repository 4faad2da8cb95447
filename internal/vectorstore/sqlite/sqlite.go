package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"minddock/internal/database"
	"minddock/internal/domain"
	"minddock/internal/vectorstore"
)

const (
	queryUpsertEmbedding = `
		INSERT INTO memory_embeddings
			(memory_id, owner_id, embedding, embedding_dim, embedding_dtype, embedding_model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET
			embedding = excluded.embedding,
			embedding_dim = excluded.embedding_dim,
			embedding_dtype = excluded.embedding_dtype,
			embedding_model = excluded.embedding_model,
			updated_at = excluded.updated_at`
	querySelectEmbedding = `
		SELECT memory_id, owner_id, embedding, embedding_dim, embedding_dtype, embedding_model, created_at, updated_at
		FROM memory_embeddings`
)

// Storage persists embeddings in the memory_embeddings table.
type Storage struct {
	db  *sql.DB
	now func() time.Time
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{db: db, now: time.Now}
}

func (s *Storage) Upsert(ctx context.Context, in domain.EmbeddingInput) (*domain.EmbeddingRecord, error) {
	if err := vectorstore.Validate(in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, queryUpsertEmbedding,
		in.MemoryID.String(), in.OwnerID.String(), in.Vector, in.Dim, in.DType, in.Model, now, now)
	if err != nil {
		return nil, database.Wrap("upsert embedding", err)
	}
	rec, err := s.Get(ctx, in.MemoryID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, database.Wrap("upsert embedding", domain.ErrNotFound)
	}
	return rec, nil
}

func (s *Storage) Get(ctx context.Context, memoryID uuid.UUID) (*domain.EmbeddingRecord, error) {
	row := s.db.QueryRowContext(ctx, querySelectEmbedding+` WHERE memory_id = ?`, memoryID.String())
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Wrap("get embedding", err)
	}
	return rec, nil
}

func (s *Storage) Delete(ctx context.Context, memoryID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_embeddings WHERE memory_id = ?`, memoryID.String())
	return database.Wrap("delete embedding", err)
}

func (s *Storage) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.EmbeddingRecord, error) {
	rows, err := s.db.QueryContext(ctx, querySelectEmbedding+` WHERE owner_id = ? ORDER BY memory_id`, ownerID.String())
	if err != nil {
		return nil, database.Wrap("list embeddings", err)
	}
	defer rows.Close()

	var out []*domain.EmbeddingRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, database.Wrap("list embeddings", err)
		}
		out = append(out, rec)
	}
	return out, database.Wrap("list embeddings", rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*domain.EmbeddingRecord, error) {
	var (
		rec             domain.EmbeddingRecord
		memoryID, owner string
	)
	err := sc.Scan(&memoryID, &owner, &rec.Vector, &rec.Dim, &rec.DType, &rec.Model, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if rec.MemoryID, err = uuid.Parse(memoryID); err != nil {
		return nil, err
	}
	if rec.OwnerID, err = uuid.Parse(owner); err != nil {
		return nil, err
	}
	return &rec, nil
}
