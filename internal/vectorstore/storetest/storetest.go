// Package storetest is a conformance suite run against every EmbeddingStore.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minddock/internal/domain"
	"minddock/internal/vector"
)

func input(memoryID, ownerID uuid.UUID, v []float32, model string) domain.EmbeddingInput {
	return domain.EmbeddingInput{
		MemoryID: memoryID,
		OwnerID:  ownerID,
		Vector:   vector.Encode(v),
		Dim:      len(v),
		DType:    vector.Float32,
		Model:    model,
	}
}

// Run exercises the EmbeddingStore contract against stores built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) domain.EmbeddingStore) {
	ctx := context.Background()
	owner := uuid.New()

	t.Run("UpsertInsertsThenUpdatesInPlace", func(t *testing.T) {
		s := newStore(t)
		id := uuid.New()

		first, err := s.Upsert(ctx, input(id, owner, []float32{1, 0}, "local-hash-2"))
		require.NoError(t, err)
		assert.Equal(t, id, first.MemoryID)
		assert.Equal(t, 2, first.Dim)

		second, err := s.Upsert(ctx, input(id, owner, []float32{0, 1, 0}, "local-hash-3"))
		require.NoError(t, err)
		assert.Equal(t, 3, second.Dim)
		assert.Equal(t, "local-hash-3", second.Model)
		assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

		recs, err := s.ListByOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		got, err := vector.Decode(recs[0].Vector, recs[0].DType, recs[0].Dim)
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 1, 0}, got)
	})

	t.Run("GetMissingReturnsNil", func(t *testing.T) {
		s := newStore(t)
		rec, err := s.Get(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		id := uuid.New()
		_, err := s.Upsert(ctx, input(id, owner, []float32{1}, "m"))
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, id))
		require.NoError(t, s.Delete(ctx, id))

		rec, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("ListByOwnerIsScopedAndOrdered", func(t *testing.T) {
		s := newStore(t)
		other := uuid.New()
		ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
		for _, id := range ids {
			_, err := s.Upsert(ctx, input(id, owner, []float32{1, 1}, "m"))
			require.NoError(t, err)
		}
		_, err := s.Upsert(ctx, input(uuid.New(), other, []float32{1, 1}, "m"))
		require.NoError(t, err)

		recs, err := s.ListByOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, recs, 3)
		for i, rec := range recs {
			assert.Equal(t, owner, rec.OwnerID)
			if i > 0 {
				assert.Less(t, recs[i-1].MemoryID.String(), rec.MemoryID.String())
			}
		}
	})

	t.Run("UpsertRejectsInconsistentBlob", func(t *testing.T) {
		s := newStore(t)
		in := input(uuid.New(), owner, []float32{1, 2}, "m")
		in.Dim = 3
		_, err := s.Upsert(ctx, in)
		assert.ErrorIs(t, err, vector.ErrDimensionMismatch)

		in = input(uuid.New(), owner, []float32{1}, "m")
		in.DType = "int4"
		_, err = s.Upsert(ctx, in)
		assert.ErrorIs(t, err, vector.ErrUnsupportedDType)
	})
}
