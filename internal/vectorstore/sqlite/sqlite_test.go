package sqlite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"minddock/internal/database"
	"minddock/internal/domain"
	"minddock/internal/vectorstore/storetest"
)

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.EmbeddingStore {
		db, err := database.Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		return NewStorage(db)
	})
}
