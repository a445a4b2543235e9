package chunker_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pdfrag/internal/chunker"
	"pdfrag/internal/domain"
)

func singlePage(id, text string) domain.Document {
	return domain.Document{ID: id, Pages: []domain.Page{{Number: 1, Text: text}}}
}

var _ = Describe("CharacterChunker", func() {
	Describe("NewCharacterChunker", func() {
		It("rejects overlap equal to size", func() {
			_, err := chunker.NewCharacterChunker(10, 10)
			Expect(err).To(MatchError(domain.ErrInvalidConfiguration))
		})

		It("rejects overlap larger than size", func() {
			_, err := chunker.NewCharacterChunker(10, 11)
			Expect(err).To(MatchError(domain.ErrInvalidConfiguration))
		})

		It("rejects negative overlap and non-positive size", func() {
			_, err := chunker.NewCharacterChunker(10, -1)
			Expect(err).To(MatchError(domain.ErrInvalidConfiguration))
			_, err = chunker.NewCharacterChunker(0, 0)
			Expect(err).To(MatchError(domain.ErrInvalidConfiguration))
		})
	})

	Describe("Chunk", func() {
		It("splits the fifteen letter example into two overlapping chunks", func() {
			c, err := chunker.NewCharacterChunker(10, 3)
			Expect(err).NotTo(HaveOccurred())

			chunks, err := c.Chunk(singlePage("doc", "ABCDEFGHIJKLMNO"))
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(2))
			Expect(chunks[0].Text).To(Equal("ABCDEFGHIJ"))
			Expect(chunks[0].Offset).To(Equal(0))
			Expect(chunks[1].Text).To(Equal("HIJKLMNO"))
			Expect(chunks[1].Offset).To(Equal(7))
			Expect(chunks[0].SourceID).To(Equal("doc"))
		})

		It("yields exactly one chunk for short documents", func() {
			c, _ := chunker.NewCharacterChunker(100, 20)
			chunks, err := c.Chunk(singlePage("doc", "short text"))
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(1))
			Expect(chunks[0].Text).To(Equal("short text"))
		})

		It("yields nothing for an empty document", func() {
			c, _ := chunker.NewCharacterChunker(10, 2)
			chunks, err := c.Chunk(singlePage("doc", ""))
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(BeEmpty())
		})

		It("reconstructs the text for a range of parameters", func() {
			text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 23) + "Ünïcödé tail ✓"
			for _, p := range [][2]int{{1, 0}, {7, 0}, {7, 6}, {10, 3}, {64, 16}, {1000, 200}} {
				c, err := chunker.NewCharacterChunker(p[0], p[1])
				Expect(err).NotTo(HaveOccurred())
				chunks, err := c.Chunk(singlePage("doc", text))
				Expect(err).NotTo(HaveOccurred())
				Expect(chunker.Reconstruct(chunks)).To(Equal(text), "size=%d overlap=%d", p[0], p[1])

				for i := 1; i < len(chunks); i++ {
					Expect(chunks[i].Offset).To(BeNumerically(">", chunks[i-1].Offset))
					Expect(chunks[i].End()).To(BeNumerically(">=", chunks[i-1].End()))
					Expect(chunks[i-1].End() - chunks[i].Offset).To(Equal(p[1]))
				}
				for _, ch := range chunks {
					Expect(ch.Len()).To(BeNumerically("<=", p[0]))
				}
			}
		})

		It("records the page each chunk starts on", func() {
			doc := domain.Document{ID: "doc", Pages: []domain.Page{
				{Number: 1, Text: "aaaaaaaaaa"},
				{Number: 2, Text: "bbbbbbbbbb"},
			}}
			c, _ := chunker.NewCharacterChunker(8, 0)
			chunks, err := c.Chunk(doc)
			Expect(err).NotTo(HaveOccurred())
			// text is 10 + 2 + 10 = 22 runes: offsets 0, 8, 16
			Expect(chunks).To(HaveLen(3))
			Expect(chunks[0].Page).To(Equal(1))
			Expect(chunks[1].Page).To(Equal(1))
			Expect(chunks[2].Page).To(Equal(2))
		})
	})
})
