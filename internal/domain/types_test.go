package domain_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pdfrag/internal/domain"
)

var _ = Describe("Document", func() {
	doc := domain.Document{ID: "d", Pages: []domain.Page{
		{Number: 1, Text: "héllo"},
		{Number: 2, Text: ""},
		{Number: 3, Text: "world"},
	}}

	It("joins pages with the separator", func() {
		Expect(doc.Text()).To(Equal("héllo\n\n\n\nworld"))
	})

	It("computes rune offsets of page starts", func() {
		Expect(doc.PageStarts()).To(Equal([]int{0, 7, 9}))
	})

	It("maps offsets to pages", func() {
		Expect(doc.PageAt(0)).To(Equal(1))
		Expect(doc.PageAt(4)).To(Equal(1))
		Expect(doc.PageAt(6)).To(Equal(1))
		Expect(doc.PageAt(7)).To(Equal(2))
		Expect(doc.PageAt(9)).To(Equal(3))
		Expect(doc.PageAt(100)).To(Equal(3))
	})

	It("returns zero for documents without pages", func() {
		Expect(domain.Document{}.PageAt(3)).To(Equal(0))
	})
})

var _ = Describe("Chunk", func() {
	It("measures length and end in runes", func() {
		c := domain.Chunk{Text: "añb", Offset: 4}
		Expect(c.Len()).To(Equal(3))
		Expect(c.End()).To(Equal(7))
	})
})

var _ = Describe("Role", func() {
	It("validates known roles", func() {
		Expect(domain.RoleUser.Valid()).To(BeTrue())
		Expect(domain.RoleAssistant.Valid()).To(BeTrue())
		Expect(domain.Role("system").Valid()).To(BeFalse())
	})
})
