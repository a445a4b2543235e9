package memory_test

import (
	"bytes"
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pdfrag/internal/domain"
	"pdfrag/internal/vectorstore"
	"pdfrag/internal/vectorstore/memory"
)

func entry(text string, vec ...float32) domain.Entry {
	return domain.Entry{ID: text, Chunk: domain.Chunk{Text: text, SourceID: "doc"}, Vector: vec}
}

var _ = Describe("Index", func() {
	var (
		ctx   context.Context
		index *memory.Index
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		index, err = memory.NewIndex("local", 2, vectorstore.Cosine)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewIndex", func() {
		It("rejects unknown metrics", func() {
			_, err := memory.NewIndex("x", 2, vectorstore.Metric("l2"))
			Expect(err).To(MatchError(domain.ErrInvalidConfiguration))
		})

		It("adopts the first inserted dimension when none is given", func() {
			idx, err := memory.NewIndex("", 0, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(idx.Name()).To(Equal("local"))
			Expect(idx.Insert(ctx, []domain.Entry{entry("a", 1, 2, 3)})).To(Succeed())
			Expect(idx.Dimension()).To(Equal(3))
		})
	})

	Describe("Query", func() {
		It("returns an empty result for an empty index", func() {
			res, err := index.Query(ctx, []float32{1, 0}, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(BeEmpty())
		})

		It("returns at most the stored entries", func() {
			Expect(index.Insert(ctx, []domain.Entry{entry("a", 1, 0), entry("b", 0, 1)})).To(Succeed())
			res, err := index.Query(ctx, []float32{1, 1}, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(res)).To(BeNumerically("<=", 2))
		})

		It("returns at most k results in non-increasing score order", func() {
			Expect(index.Insert(ctx, []domain.Entry{
				entry("east", 1, 0),
				entry("north", 0, 1),
				entry("northeast", 1, 1),
				entry("west", -1, 0),
			})).To(Succeed())

			res, err := index.Query(ctx, []float32{1, 0.2}, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(HaveLen(3))
			Expect(res[0].Entry.Chunk.Text).To(Equal("east"))
			Expect(res[1].Entry.Chunk.Text).To(Equal("northeast"))
			for i := 1; i < len(res); i++ {
				Expect(res[i].Score).To(BeNumerically("<=", res[i-1].Score))
			}
			Expect(res[0].Source).To(Equal("local"))
		})

		It("scores duplicate insertions independently", func() {
			Expect(index.Insert(ctx, []domain.Entry{entry("a", 1, 0)})).To(Succeed())
			Expect(index.Insert(ctx, []domain.Entry{entry("a", 1, 0)})).To(Succeed())
			Expect(index.Len()).To(Equal(2))

			res, err := index.Query(ctx, []float32{1, 0}, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(HaveLen(2))
			Expect(res[0].Score).To(Equal(res[1].Score))
		})

		It("uses the raw inner product when configured", func() {
			ip, err := memory.NewIndex("ip", 2, vectorstore.InnerProduct)
			Expect(err).NotTo(HaveOccurred())
			Expect(ip.Insert(ctx, []domain.Entry{entry("short", 1, 0), entry("long", 3, 0)})).To(Succeed())

			res, err := ip.Query(ctx, []float32{2, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(res[0].Entry.Chunk.Text).To(Equal("long"))
			Expect(res[0].Score).To(BeNumerically("~", 6, 1e-6))
			Expect(res[1].Score).To(BeNumerically("~", 2, 1e-6))
		})

		It("rejects queries of the wrong dimension", func() {
			Expect(index.Insert(ctx, []domain.Entry{entry("a", 1, 0)})).To(Succeed())
			_, err := index.Query(ctx, []float32{1, 0, 0}, 1)
			Expect(err).To(MatchError(domain.ErrDimensionMismatch))
		})

		It("returns nothing for non-positive k", func() {
			Expect(index.Insert(ctx, []domain.Entry{entry("a", 1, 0)})).To(Succeed())
			res, err := index.Query(ctx, []float32{1, 0}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(BeEmpty())
		})
	})

	Describe("Insert", func() {
		It("rejects vectors of the wrong dimension without storing any", func() {
			err := index.Insert(ctx, []domain.Entry{entry("a", 1, 0), entry("b", 1)})
			Expect(err).To(MatchError(domain.ErrDimensionMismatch))
			Expect(index.Len()).To(Equal(0))
		})

		It("copies vectors so later caller mutation has no effect", func() {
			vec := []float32{1, 0}
			Expect(index.Insert(ctx, []domain.Entry{{ID: "a", Vector: vec}})).To(Succeed())
			vec[0], vec[1] = 0, 1

			res, err := index.Query(ctx, []float32{1, 0}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(res[0].Score).To(BeNumerically("~", 1, 1e-6))
		})
	})

	Describe("snapshots", func() {
		It("round-trips through Save and Load", func() {
			Expect(index.Insert(ctx, []domain.Entry{entry("a", 1, 0), entry("b", 0, 1)})).To(Succeed())
			var buf bytes.Buffer
			Expect(index.Save(&buf)).To(Succeed())

			restored, _ := memory.NewIndex("local", 0, vectorstore.Cosine)
			Expect(restored.Load(&buf)).To(Succeed())
			Expect(restored.Len()).To(Equal(2))
			Expect(restored.Dimension()).To(Equal(2))
			Expect(restored.Chunks()).To(Equal(index.Chunks()))
		})

		It("refuses a snapshot written with another metric", func() {
			var buf bytes.Buffer
			Expect(index.Save(&buf)).To(Succeed())
			ip, _ := memory.NewIndex("ip", 0, vectorstore.InnerProduct)
			Expect(ip.Load(&buf)).To(MatchError(domain.ErrInvalidConfiguration))
		})

		It("writes and reads files, reporting missing ones", func() {
			path := filepath.Join(GinkgoT().TempDir(), "kb", "index.gob")
			found, err := index.LoadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())

			Expect(index.Insert(ctx, []domain.Entry{entry("a", 1, 0)})).To(Succeed())
			Expect(index.SaveFile(path)).To(Succeed())

			restored, _ := memory.NewIndex("local", 0, vectorstore.Cosine)
			found, err = restored.LoadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(restored.Len()).To(Equal(1))
		})
	})

	It("resets entries but keeps the dimension", func() {
		Expect(index.Insert(ctx, []domain.Entry{entry("a", 1, 0)})).To(Succeed())
		index.Reset()
		Expect(index.Len()).To(Equal(0))
		Expect(index.Dimension()).To(Equal(2))
	})
})
