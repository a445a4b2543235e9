// Package embedding holds helpers shared by the Embedder implementations in
// its subpackages.
package embedding

import (
	"fmt"

	"pdfrag/internal/domain"
)

// Unwrapper is implemented by decorators around another embedder.
type Unwrapper interface {
	Unwrap() domain.Embedder
}

// Base strips decorators and returns the innermost embedder.
func Base(e domain.Embedder) domain.Embedder {
	for {
		u, ok := e.(Unwrapper)
		if !ok {
			return e
		}
		e = u.Unwrap()
	}
}

// CheckVectors verifies that an embedder returned want vectors of length dim.
// A dim of zero accepts any length as long as all vectors agree.
func CheckVectors(vectors [][]float32, want, dim int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: expected %d vectors, got %d", domain.ErrEmbeddingService, want, len(vectors))
	}
	for i, v := range vectors {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d", domain.ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}

// Batches splits texts into consecutive groups of at most size items.
func Batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = len(texts)
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		out = append(out, texts[start:min(start+size, len(texts))])
	}
	return out
}
