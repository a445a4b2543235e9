package pgvector

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pdfrag/internal/domain"
	"pdfrag/internal/vectorstore"
)

var _ = Describe("Index", func() {
	It("requires a dsn", func() {
		_, err := NewIndex(context.Background(), Config{}, nil)
		Expect(err).To(MatchError(domain.ErrInvalidConfiguration))
	})

	It("rejects table names that are not identifiers", func() {
		_, err := newIndex(Config{Table: "chunks; DROP TABLE users"}, nil)
		Expect(err).To(MatchError(domain.ErrInvalidConfiguration))
	})

	It("names itself after the table by default", func() {
		idx, err := newIndex(Config{}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(idx.Name()).To(Equal("pgvector:chunks"))
	})

	It("orders by cosine distance and reports similarity", func() {
		idx, _ := newIndex(Config{Table: "kb"}, nil)
		q := idx.querySQL()
		Expect(q).To(ContainSubstring("1 - (embedding <=> $1) AS score"))
		Expect(q).To(ContainSubstring("FROM kb"))
		Expect(q).To(ContainSubstring("ORDER BY embedding <=> $1"))
	})

	It("negates the inner product distance", func() {
		idx, _ := newIndex(Config{Metric: vectorstore.InnerProduct}, nil)
		q := idx.querySQL()
		Expect(q).To(ContainSubstring("(embedding <#> $1) * -1 AS score"))
		Expect(q).To(ContainSubstring("ORDER BY embedding <#> $1"))
	})

	It("sizes the vector column from the first insert", func() {
		idx, _ := newIndex(Config{}, nil)
		Expect(idx.schemaSQL(768)[1]).To(ContainSubstring("embedding vector(768)"))
	})

	It("rejects inserts when read-only without a connection", func() {
		idx, _ := newIndex(Config{ReadOnly: true}, nil)
		err := idx.Insert(context.Background(), []domain.Entry{{ID: "a", Vector: []float32{1}}})
		Expect(err).To(MatchError(domain.ErrReadOnly))
	})

	It("returns nothing for non-positive k without a connection", func() {
		idx, _ := newIndex(Config{}, nil)
		res, err := idx.Query(context.Background(), []float32{1}, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(BeEmpty())
		Expect(idx.Close()).To(Succeed())
	})

	It("checks dimensions under the lock from concurrent callers", func() {
		idx, _ := newIndex(Config{Dimension: 3}, nil)
		ctx := context.Background()
		var wg sync.WaitGroup
		errs := make(chan error, 16)
		for range 8 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				errs <- idx.Insert(ctx, []domain.Entry{{ID: "a", Vector: []float32{1, 2}}})
			}()
			go func() {
				defer wg.Done()
				_, err := idx.Query(ctx, []float32{1, 2}, 1)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			Expect(err).To(MatchError(domain.ErrDimensionMismatch))
		}
		Expect(idx.Dimension()).To(Equal(3))
	})
})
