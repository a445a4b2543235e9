package retrieval_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pdfrag/internal/domain"
	"pdfrag/internal/retrieval"
)

func result(text, source string, score float32) domain.SearchResult {
	return domain.SearchResult{Entry: domain.Entry{ID: text, Chunk: domain.Chunk{Text: text}}, Score: score, Source: source}
}

func texts(rs []domain.SearchResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Entry.Chunk.Text
	}
	return out
}

var _ = Describe("Merge", func() {
	It("re-sorts the first list when the second is empty", func() {
		local := []domain.SearchResult{result("a", "local", 0.2), result("b", "local", 0.9), result("c", "local", 0.5)}
		merged := retrieval.Merge(local, nil)
		Expect(texts(merged)).To(Equal([]string{"b", "c", "a"}))
	})

	It("interleaves lists by score", func() {
		local := []domain.SearchResult{result("l1", "local", 0.9), result("l2", "local", 0.3)}
		remote := []domain.SearchResult{result("r1", "remote", 0.7)}
		Expect(texts(retrieval.Merge(local, remote))).To(Equal([]string{"l1", "r1", "l2"}))
	})

	It("breaks ties by list priority, then by position", func() {
		local := []domain.SearchResult{result("l1", "local", 0.5), result("l2", "local", 0.5)}
		remote := []domain.SearchResult{result("r1", "remote", 0.5)}
		Expect(texts(retrieval.Merge(remote, local))).To(Equal([]string{"r1", "l1", "l2"}))
		Expect(texts(retrieval.Merge(local, remote))).To(Equal([]string{"l1", "l2", "r1"}))
	})

	It("does not deduplicate", func() {
		a := []domain.SearchResult{result("x", "local", 0.5)}
		Expect(retrieval.Merge(a, a)).To(HaveLen(2))
	})

	It("handles no lists", func() {
		Expect(retrieval.Merge()).To(BeEmpty())
	})
})

var _ = Describe("MergeTop", func() {
	It("truncates to k", func() {
		local := []domain.SearchResult{result("a", "local", 0.1), result("b", "local", 0.9), result("c", "local", 0.5)}
		Expect(texts(retrieval.MergeTop(2, local))).To(Equal([]string{"b", "c"}))
	})

	It("keeps nothing for non-positive k", func() {
		Expect(retrieval.MergeTop(0, []domain.SearchResult{result("a", "local", 1)})).To(BeEmpty())
	})
})
