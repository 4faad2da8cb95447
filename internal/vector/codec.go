// Package vector serialises embeddings to dtype-tagged byte blobs and
// provides the similarity math used for ranking.
package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Supported element types. Names match numpy dtype names so blobs written by
// other tools stay readable.
const (
	Float32 = "float32"
	Float64 = "float64"
)

var (
	ErrInvalidVector     = errors.New("invalid vector")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrUnsupportedDType  = errors.New("unsupported vector dtype")
)

// ItemSize returns the byte width of one element of dtype.
func ItemSize(dtype string) (int, error) {
	switch dtype {
	case Float32:
		return 4, nil
	case Float64:
		return 8, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDType, dtype)
	}
}

// Encode writes v as little-endian float32 without a length prefix.
func Encode(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// Decode reads a blob of the given dtype and checks it holds exactly dim elements.
func Decode(data []byte, dtype string, dim int) ([]float32, error) {
	size, err := ItemSize(dtype)
	if err != nil {
		return nil, err
	}
	if dim < 0 || len(data)%size != 0 {
		return nil, ErrInvalidVector
	}
	if n := len(data) / size; n != dim {
		return nil, fmt.Errorf("%w: declared %d, blob holds %d", ErrDimensionMismatch, dim, n)
	}
	out := make([]float32, dim)
	for i := range out {
		switch dtype {
		case Float32:
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
		case Float64:
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:])))
		}
	}
	for _, f := range out {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, ErrInvalidVector
		}
	}
	return out, nil
}
