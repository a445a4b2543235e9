// Package vectorstore holds the similarity metric shared by the Index
// implementations in its subpackages.
package vectorstore

import (
	"fmt"
	"math"
	"strings"

	"pdfrag/internal/domain"
)

// Metric is the similarity function an index scores with. It is fixed when the
// index is constructed and used for both inserts and queries.
type Metric string

const (
	Cosine       Metric = "cosine"
	InnerProduct Metric = "inner_product"
)

// ParseMetric accepts "cosine" (the default for an empty string) and
// "inner_product"/"dot".
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine":
		return Cosine, nil
	case "inner_product", "dot", "ip":
		return InnerProduct, nil
	default:
		return "", fmt.Errorf("%w: unknown similarity metric %q", domain.ErrInvalidConfiguration, s)
	}
}

// Dot returns the inner product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// Cosine similarity; zero vectors score 0 against everything.
func CosineSimilarity(a, b []float32) float32 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}
