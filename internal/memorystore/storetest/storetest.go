// Package storetest is a conformance suite run against every MemoryStore.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minddock/internal/domain"
)

func newMemory(owner uuid.UUID, title string, created time.Time) *domain.Memory {
	return &domain.Memory{
		ID:        uuid.New(),
		OwnerID:   owner,
		Title:     title,
		Content:   title + " content",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// Run exercises the MemoryStore contract against stores built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) domain.MemoryStore) {
	ctx := context.Background()
	owner := uuid.New()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("CreateThenGetRoundTripsAllFields", func(t *testing.T) {
		s := newStore(t)
		captured := base.Add(-time.Hour)
		m := newMemory(owner, "Groceries", base)
		m.Tags = []string{"shopping", "home"}
		m.Context = map[string]any{"mood": "ok", "place": "kitchen"}
		m.CapturedAt = &captured
		m.SourceDevice = "phone"
		m.SourceLocation = "home"
		require.NoError(t, s.Create(ctx, m))

		got, err := s.Get(ctx, m.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, m.Title, got.Title)
		assert.Equal(t, m.Content, got.Content)
		assert.Equal(t, m.Tags, got.Tags)
		assert.Equal(t, m.Context, got.Context)
		require.NotNil(t, got.CapturedAt)
		assert.True(t, captured.Equal(*got.CapturedAt))
		assert.Equal(t, "phone", got.SourceDevice)
		assert.Equal(t, "home", got.SourceLocation)
		assert.True(t, base.Equal(got.CreatedAt))
	})

	t.Run("GetMissingReturnsNil", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Get(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("UpdateReplacesContent", func(t *testing.T) {
		s := newStore(t)
		m := newMemory(owner, "Draft", base)
		require.NoError(t, s.Create(ctx, m))

		m.Content = "final"
		m.Tags = []string{"done"}
		m.UpdatedAt = base.Add(time.Minute)
		require.NoError(t, s.Update(ctx, m))

		got, err := s.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "final", got.Content)
		assert.Equal(t, []string{"done"}, got.Tags)
		assert.True(t, m.UpdatedAt.Equal(got.UpdatedAt))
	})

	t.Run("UpdateAndDeleteMissingReturnNotFound", func(t *testing.T) {
		s := newStore(t)
		m := newMemory(owner, "Ghost", base)
		assert.ErrorIs(t, s.Update(ctx, m), domain.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, m.ID), domain.ErrNotFound)
	})

	t.Run("DeleteRemoves", func(t *testing.T) {
		s := newStore(t)
		m := newMemory(owner, "Temp", base)
		require.NoError(t, s.Create(ctx, m))
		require.NoError(t, s.Delete(ctx, m.ID))

		got, err := s.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ListByOwnerIsScopedNewestFirst", func(t *testing.T) {
		s := newStore(t)
		oldest := newMemory(owner, "one", base)
		middle := newMemory(owner, "two", base.Add(time.Hour))
		newest := newMemory(owner, "three", base.Add(2*time.Hour))
		for _, m := range []*domain.Memory{middle, oldest, newest, newMemory(uuid.New(), "other", base)} {
			require.NoError(t, s.Create(ctx, m))
		}

		got, err := s.ListByOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"three", "two", "one"}, []string{got[0].Title, got[1].Title, got[2].Title})
	})

	t.Run("ReturnedValuesAreCopies", func(t *testing.T) {
		s := newStore(t)
		m := newMemory(owner, "Copy", base)
		m.Tags = []string{"a"}
		require.NoError(t, s.Create(ctx, m))

		m.Tags[0] = "mutated"
		got, err := s.Get(ctx, m.ID)
		require.NoError(t, err)
		got.Tags = append(got.Tags, "b")

		again, err := s.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, again.Tags)
	})
}
