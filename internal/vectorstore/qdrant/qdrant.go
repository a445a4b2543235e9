// Package qdrant stores entries in a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	qc "github.com/qdrant/go-client/qdrant"

	"pdfrag/internal/domain"
	"pdfrag/internal/vectorstore"
)

const (
	payloadID       = "entry_id"
	payloadText     = "text"
	payloadSourceID = "source_id"
	payloadPath     = "path"
	payloadPage     = "page"
	payloadOffset   = "offset"
)

// client is the subset of *qc.Client the index uses.
type client interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qc.CreateCollection) error
	Upsert(ctx context.Context, request *qc.UpsertPoints) (*qc.UpdateResult, error)
	Query(ctx context.Context, request *qc.QueryPoints) ([]*qc.ScoredPoint, error)
	Close() error
}

type Config struct {
	Name       string
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Metric     vectorstore.Metric
	Dimension  int
	ReadOnly   bool
}

// Index is a remote index backed by one Qdrant collection.
type Index struct {
	name       string
	collection string
	metric     vectorstore.Metric
	readOnly   bool
	client     client
	logger     *slog.Logger

	// mu serializes inserts and guards dimension and ensured.
	mu        sync.RWMutex
	dimension int
	ensured   bool
}

// NewIndex connects to Qdrant. The collection is created lazily on the first
// insert unless the index is read-only.
func NewIndex(cfg Config, logger *slog.Logger) (*Index, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: qdrant collection is required", domain.ErrInvalidConfiguration)
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	c, err := qc.NewClient(&qc.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return newIndex(cfg, c, logger)
}

func newIndex(cfg Config, c client, logger *slog.Logger) (*Index, error) {
	metric, err := vectorstore.ParseMetric(string(cfg.Metric))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	name := cfg.Name
	if name == "" {
		name = "qdrant:" + cfg.Collection
	}
	return &Index{
		name:       name,
		collection: cfg.Collection,
		metric:     metric,
		dimension:  cfg.Dimension,
		readOnly:   cfg.ReadOnly,
		client:     c,
		logger:     logger,
	}, nil
}

func (s *Index) Name() string { return s.name }

// Dimension is zero until the first insert unless configured.
func (s *Index) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *Index) Insert(ctx context.Context, entries []domain.Entry) error {
	if s.readOnly {
		return fmt.Errorf("%w: %s", domain.ErrReadOnly, s.name)
	}
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dim := s.dimension
	if dim == 0 {
		dim = len(entries[0].Vector)
	}
	points := make([]*qc.PointStruct, len(entries))
	for i, e := range entries {
		if len(e.Vector) != dim {
			return fmt.Errorf("%w: entry %d has %d dimensions, index has %d", domain.ErrDimensionMismatch, i, len(e.Vector), dim)
		}
		points[i] = toPoint(e)
	}
	if err := s.ensureCollection(ctx, dim); err != nil {
		return err
	}
	wait := true
	if _, err := s.client.Upsert(ctx, &qc.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upserting %d points into %s: %w", len(points), s.collection, err)
	}
	s.dimension = dim
	return nil
}

// ensureCollection must be called with mu held.
func (s *Index) ensureCollection(ctx context.Context, dim int) error {
	if s.ensured {
		return nil
	}
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.collection, err)
	}
	if !exists {
		s.logger.Info("creating qdrant collection", "collection", s.collection, "dimension", dim, "metric", s.metric)
		if err := s.client.CreateCollection(ctx, &qc.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
				Size:     uint64(dim),
				Distance: distance(s.metric),
			}),
		}); err != nil {
			return fmt.Errorf("creating collection %s: %w", s.collection, err)
		}
	}
	s.ensured = true
	return nil
}

func (s *Index) Query(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if dim := s.Dimension(); dim != 0 && len(vector) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", domain.ErrDimensionMismatch, len(vector), dim)
	}
	points, err := s.client.Query(ctx, &qc.QueryPoints{
		CollectionName: s.collection,
		Query:          qc.NewQuery(vector...),
		Limit:          qc.PtrOf(uint64(k)),
		WithPayload:    qc.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.collection, err)
	}
	results := make([]domain.SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, domain.SearchResult{
			Entry:  fromPayload(p.GetPayload()),
			Score:  p.GetScore(),
			Source: s.name,
		})
	}
	return results, nil
}

func (s *Index) Close() error {
	return s.client.Close()
}

func distance(m vectorstore.Metric) qc.Distance {
	if m == vectorstore.InnerProduct {
		return qc.Distance_Dot
	}
	return qc.Distance_Cosine
}

// pointID maps an entry ID onto the UUID space Qdrant accepts. IDs that are
// already UUIDs are used as-is.
func pointID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id)).String()
}

func toPoint(e domain.Entry) *qc.PointStruct {
	return &qc.PointStruct{
		Id:      qc.NewID(pointID(e.ID)),
		Vectors: qc.NewVectors(e.Vector...),
		Payload: qc.NewValueMap(map[string]any{
			payloadID:       e.ID,
			payloadText:     e.Chunk.Text,
			payloadSourceID: e.Chunk.SourceID,
			payloadPath:     e.Chunk.Path,
			payloadPage:     int64(e.Chunk.Page),
			payloadOffset:   int64(e.Chunk.Offset),
		}),
	}
}

// fromPayload rebuilds an entry from a point payload. The vector is not
// requested back from Qdrant.
func fromPayload(payload map[string]*qc.Value) domain.Entry {
	return domain.Entry{
		ID: payload[payloadID].GetStringValue(),
		Chunk: domain.Chunk{
			Text:     payload[payloadText].GetStringValue(),
			SourceID: payload[payloadSourceID].GetStringValue(),
			Path:     payload[payloadPath].GetStringValue(),
			Page:     int(payload[payloadPage].GetIntegerValue()),
			Offset:   int(payload[payloadOffset].GetIntegerValue()),
		},
	}
}

var _ domain.Index = (*Index)(nil)
