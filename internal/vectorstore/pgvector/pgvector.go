// Package pgvector stores entries in a PostgreSQL table using the pgvector
// extension.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"pdfrag/internal/domain"
	"pdfrag/internal/vectorstore"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Config struct {
	Name      string
	DSN       string
	Table     string
	Metric    vectorstore.Metric
	Dimension int
	ReadOnly  bool
}

// Index is a remote index backed by one pgvector table.
type Index struct {
	name     string
	table    string
	metric   vectorstore.Metric
	readOnly bool
	conn     *sql.DB
	logger   *slog.Logger

	// mu serializes inserts and guards dimension and ensured.
	mu        sync.RWMutex
	dimension int
	ensured   bool
}

// NewIndex opens a connection pool for cfg.DSN and verifies it.
func NewIndex(ctx context.Context, cfg Config, logger *slog.Logger) (*Index, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: pgvector dsn is required", domain.ErrInvalidConfiguration)
	}
	idx, err := newIndex(cfg, logger)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	idx.conn = conn
	return idx, nil
}

func newIndex(cfg Config, logger *slog.Logger) (*Index, error) {
	if cfg.Table == "" {
		cfg.Table = "chunks"
	}
	if !tableName.MatchString(cfg.Table) {
		return nil, fmt.Errorf("%w: invalid table name %q", domain.ErrInvalidConfiguration, cfg.Table)
	}
	metric, err := vectorstore.ParseMetric(string(cfg.Metric))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	name := cfg.Name
	if name == "" {
		name = "pgvector:" + cfg.Table
	}
	return &Index{
		name:      name,
		table:     cfg.Table,
		metric:    metric,
		dimension: cfg.Dimension,
		readOnly:  cfg.ReadOnly,
		logger:    logger,
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
	for i, e := range entries {
		if len(e.Vector) != dim {
			return fmt.Errorf("%w: entry %d has %d dimensions, index has %d", domain.ErrDimensionMismatch, i, len(e.Vector), dim)
		}
	}
	if err := s.ensureTable(ctx, dim); err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.insertSQL())
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.ID,
			e.Chunk.SourceID,
			e.Chunk.Path,
			e.Chunk.Page,
			e.Chunk.Offset,
			e.Chunk.Text,
			pgvector.NewVector(e.Vector),
		); err != nil {
			return fmt.Errorf("inserting entry %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.dimension = dim
	return nil
}

// ensureTable must be called with mu held.
func (s *Index) ensureTable(ctx context.Context, dim int) error {
	if s.ensured {
		return nil
	}
	for _, q := range s.schemaSQL(dim) {
		if _, err := s.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("preparing table %s: %w", s.table, err)
		}
	}
	s.logger.Debug("pgvector table ready", "table", s.table, "dimension", dim)
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
	rows, err := s.conn.QueryContext(ctx, s.querySQL(), pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var (
			r   domain.SearchResult
			vec pgvector.Vector
		)
		if err := rows.Scan(
			&r.Entry.ID,
			&r.Entry.Chunk.SourceID,
			&r.Entry.Chunk.Path,
			&r.Entry.Chunk.Page,
			&r.Entry.Chunk.Offset,
			&r.Entry.Chunk.Text,
			&vec,
			&r.Score,
		); err != nil {
			return nil, err
		}
		r.Entry.Vector = vec.Slice()
		r.Source = s.name
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Index) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Index) schemaSQL(dim int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT NOT NULL,
			source_id TEXT NOT NULL,
			path TEXT NOT NULL,
			page INTEGER NOT NULL,
			chunk_offset INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table, dim),
	}
}

func (s *Index) insertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (id, source_id, path, page, chunk_offset, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, s.table)
}

// querySQL orders by the distance operator so the vector index can be used;
// the score column turns distance back into similarity.
func (s *Index) querySQL() string {
	op, score := "<=>", "1 - (embedding <=> $1)"
	if s.metric == vectorstore.InnerProduct {
		op, score = "<#>", "(embedding <#> $1) * -1"
	}
	return fmt.Sprintf(`
		SELECT id, source_id, path, page, chunk_offset, content, embedding, %s AS score
		FROM %s
		ORDER BY embedding %s $1
		LIMIT $2`, score, s.table, op)
}

var _ domain.Index = (*Index)(nil)
