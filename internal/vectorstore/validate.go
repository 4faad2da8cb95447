// Package vectorstore holds what every EmbeddingStore implementation shares.
package vectorstore

import (
	"fmt"

	"github.com/google/uuid"

	"minddock/internal/domain"
	"minddock/internal/vector"
)

// Validate checks an upsert before it is persisted: ids are set, the dtype is
// known, and the blob length matches dim elements of that dtype.
func Validate(in domain.EmbeddingInput) error {
	if in.MemoryID == uuid.Nil || in.OwnerID == uuid.Nil {
		return fmt.Errorf("%w: memory and owner ids are required", vector.ErrInvalidVector)
	}
	if in.Model == "" {
		return fmt.Errorf("%w: model name is required", vector.ErrInvalidVector)
	}
	size, err := vector.ItemSize(in.DType)
	if err != nil {
		return err
	}
	if in.Dim <= 0 || len(in.Vector) != in.Dim*size {
		return fmt.Errorf("%w: %d bytes for dim %d of %s", vector.ErrDimensionMismatch, len(in.Vector), in.Dim, in.DType)
	}
	return nil
}
