package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"minddock/internal/database"
	"minddock/internal/domain"
)

const (
	queryInsertMemory = `
		INSERT INTO memories
			(id, owner_id, title, content, tags, context, captured_at, source_device, source_location, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	queryUpdateMemory = `
		UPDATE memories SET
			title = ?, content = ?, tags = ?, context = ?, captured_at = ?,
			source_device = ?, source_location = ?, updated_at = ?
		WHERE id = ?`
	querySelectMemory = `
		SELECT id, owner_id, title, content, tags, context, captured_at, source_device, source_location, created_at, updated_at
		FROM memories`
)

// Store persists memories in the memories table. Tags and context are JSON columns.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, m *domain.Memory) error {
	tags, memCtx, err := encodeJSON(m)
	if err != nil {
		return database.Wrap("create memory", err)
	}
	_, err = s.db.ExecContext(ctx, queryInsertMemory,
		m.ID.String(), m.OwnerID.String(), m.Title, m.Content, tags, memCtx,
		nullTime(m), m.SourceDevice, m.SourceLocation, m.CreatedAt.UTC(), m.UpdatedAt.UTC())
	return database.Wrap("create memory", err)
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.Memory, error) {
	row := s.db.QueryRowContext(ctx, querySelectMemory+` WHERE id = ?`, id.String())
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Wrap("get memory", err)
	}
	return m, nil
}

// ListByOwner returns the owner's memories, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Memory, error) {
	rows, err := s.db.QueryContext(ctx, querySelectMemory+` WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID.String())
	if err != nil {
		return nil, database.Wrap("list memories", err)
	}
	defer rows.Close()

	var out []*domain.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, database.Wrap("list memories", err)
		}
		out = append(out, m)
	}
	return out, database.Wrap("list memories", rows.Err())
}

func (s *Store) Update(ctx context.Context, m *domain.Memory) error {
	tags, memCtx, err := encodeJSON(m)
	if err != nil {
		return database.Wrap("update memory", err)
	}
	res, err := s.db.ExecContext(ctx, queryUpdateMemory,
		m.Title, m.Content, tags, memCtx, nullTime(m), m.SourceDevice, m.SourceLocation, m.UpdatedAt.UTC(), m.ID.String())
	if err != nil {
		return database.Wrap("update memory", err)
	}
	return affected("update memory", res)
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id.String())
	if err != nil {
		return database.Wrap("delete memory", err)
	}
	return affected("delete memory", res)
}

func affected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return database.Wrap(op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullTime(m *domain.Memory) sql.NullTime {
	if m.CapturedAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: m.CapturedAt.UTC(), Valid: true}
}

func encodeJSON(m *domain.Memory) (tags, memCtx sql.NullString, err error) {
	if len(m.Tags) > 0 {
		b, err := json.Marshal(m.Tags)
		if err != nil {
			return tags, memCtx, err
		}
		tags = sql.NullString{String: string(b), Valid: true}
	}
	if len(m.Context) > 0 {
		b, err := json.Marshal(m.Context)
		if err != nil {
			return tags, memCtx, err
		}
		memCtx = sql.NullString{String: string(b), Valid: true}
	}
	return tags, memCtx, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(sc scanner) (*domain.Memory, error) {
	var (
		m              domain.Memory
		id, owner      string
		tags, memCtx   sql.NullString
		captured       sql.NullTime
		device, source sql.NullString
	)
	err := sc.Scan(&id, &owner, &m.Title, &m.Content, &tags, &memCtx, &captured, &device, &source, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if m.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if m.OwnerID, err = uuid.Parse(owner); err != nil {
		return nil, err
	}
	if tags.Valid {
		if err := json.Unmarshal([]byte(tags.String), &m.Tags); err != nil {
			return nil, err
		}
	}
	if memCtx.Valid {
		if err := json.Unmarshal([]byte(memCtx.String), &m.Context); err != nil {
			return nil, err
		}
	}
	if captured.Valid {
		t := captured.Time
		m.CapturedAt = &t
	}
	m.SourceDevice = device.String
	m.SourceLocation = source.String
	return &m, nil
}
