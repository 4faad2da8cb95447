package memory

import (
	"testing"

	"minddock/internal/domain"
	"minddock/internal/vectorstore/storetest"
)

func TestStorage(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.EmbeddingStore { return NewStorage() })
}
