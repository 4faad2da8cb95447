package sqlite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"minddock/internal/database"
	"minddock/internal/domain"
	"minddock/internal/memorystore/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.MemoryStore {
		db, err := database.Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		return NewStore(db)
	})
}
