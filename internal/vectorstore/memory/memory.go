// Package memory is an in-process flat index using brute-force similarity.
package memory

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"pdfrag/internal/domain"
	"pdfrag/internal/vectorstore"
)

// Index keeps entries in insertion order. Writes take the exclusive lock and
// queries share the read lock.
type Index struct {
	name   string
	metric vectorstore.Metric

	mu        sync.RWMutex
	dimension int
	entries   []domain.Entry
	norms     []float32
}

// NewIndex creates an empty index. A dimension of zero is adopted from the
// first insert.
func NewIndex(name string, dimension int, metric vectorstore.Metric) (*Index, error) {
	if dimension < 0 {
		return nil, fmt.Errorf("%w: negative dimension %d", domain.ErrInvalidConfiguration, dimension)
	}
	metric, err := vectorstore.ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = "local"
	}
	return &Index{name: name, metric: metric, dimension: dimension}, nil
}

func (s *Index) Name() string { return s.name }

func (s *Index) Metric() vectorstore.Metric { return s.metric }

func (s *Index) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *Index) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Insert appends entries. Vectors are copied so callers may reuse their
// slices. Inserting the same chunk twice stores two entries.
func (s *Index) Insert(ctx context.Context, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dim := s.dimension
	if dim == 0 {
		dim = len(entries[0].Vector)
	}
	if dim == 0 {
		return fmt.Errorf("%w: empty vector", domain.ErrDimensionMismatch)
	}
	for i, e := range entries {
		if len(e.Vector) != dim {
			return fmt.Errorf("%w: entry %d has %d dimensions, index has %d", domain.ErrDimensionMismatch, i, len(e.Vector), dim)
		}
	}
	s.dimension = dim
	for _, e := range entries {
		v := make([]float32, len(e.Vector))
		copy(v, e.Vector)
		e.Vector = v
		s.entries = append(s.entries, e)
		s.norms = append(s.norms, vectorstore.Norm(v))
	}
	return nil
}

// Query scores every entry and returns the best k, ties in insertion order.
// An empty index yields an empty result rather than an error.
func (s *Index) Query(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.entries) == 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	qnorm := vectorstore.Norm(vector)
	results := make([]domain.SearchResult, len(s.entries))
	for i, e := range s.entries {
		results[i] = domain.SearchResult{Entry: e, Score: s.score(vector, qnorm, i), Source: s.name}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (s *Index) score(q []float32, qnorm float32, i int) float32 {
	dot := vectorstore.Dot(s.entries[i].Vector, q)
	if s.metric == vectorstore.InnerProduct {
		return dot
	}
	if qnorm == 0 || s.norms[i] == 0 {
		return 0
	}
	return dot / (qnorm * s.norms[i])
}

// Chunks returns the chunks of all entries in insertion order.
func (s *Index) Chunks() []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Chunk, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Chunk
	}
	return out
}

// Reset drops all entries but keeps the dimension.
func (s *Index) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.norms = nil
}

func (s *Index) Close() error { return nil }

type snapshot struct {
	Metric    vectorstore.Metric
	Dimension int
	Entries   []domain.Entry
}

// Save writes a gob snapshot of the index.
func (s *Index) Save(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gob.NewEncoder(w).Encode(snapshot{Metric: s.metric, Dimension: s.dimension, Entries: s.entries})
}

// Load replaces the index contents with a snapshot written by Save. The
// snapshot's metric must match the index's.
func (s *Index) Load(r io.Reader) error {
	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decoding index snapshot: %w", err)
	}
	if snap.Metric != s.metric {
		return fmt.Errorf("%w: snapshot uses %s, index uses %s", domain.ErrInvalidConfiguration, snap.Metric, s.metric)
	}
	norms := make([]float32, len(snap.Entries))
	for i, e := range snap.Entries {
		if len(e.Vector) != snap.Dimension {
			return fmt.Errorf("%w: snapshot entry %d", domain.ErrDimensionMismatch, i)
		}
		norms[i] = vectorstore.Norm(e.Vector)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = snap.Dimension
	s.entries = snap.Entries
	s.norms = norms
	return nil
}

// SaveFile writes the snapshot atomically via a temp file in the same directory.
func (s *Index) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := s.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFile loads a snapshot from path. It reports false without error when the
// file does not exist.
func (s *Index) LoadFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	if err := s.Load(f); err != nil {
		return false, err
	}
	return true, nil
}

var _ domain.Index = (*Index)(nil)
