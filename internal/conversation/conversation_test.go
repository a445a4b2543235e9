package conversation_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pdfrag/internal/conversation"
	"pdfrag/internal/conversation/inmemory"
	"pdfrag/internal/domain"
)

func fixedClock() func() time.Time {
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

var _ = Describe("Conversation", func() {
	It("generates an ID when none is given", func() {
		Expect(conversation.New("").ID()).NotTo(BeEmpty())
		Expect(conversation.New("chat-1").ID()).To(Equal("chat-1"))
	})

	It("appends turns in order with clock timestamps", func() {
		c := conversation.New("s", conversation.WithClock(fixedClock()))
		first := c.Append(domain.RoleUser, "hi")
		c.Append(domain.RoleAssistant, "hello")

		Expect(c.Len()).To(Equal(2))
		turns := c.Turns()
		Expect(turns[0]).To(Equal(first))
		Expect(turns[1].Role).To(Equal(domain.RoleAssistant))
		Expect(turns[1].Timestamp.After(turns[0].Timestamp)).To(BeTrue())
	})

	It("returns copies", func() {
		c := conversation.New("s")
		c.Append(domain.RoleUser, "hi")
		turns := c.Turns()
		turns[0].Content = "changed"
		Expect(c.Turns()[0].Content).To(Equal("hi"))
	})

	It("returns the most recent turns oldest first", func() {
		c := conversation.New("s")
		for _, msg := range []string{"a", "b", "c", "d"} {
			c.Append(domain.RoleUser, msg)
		}
		recent := c.Recent(2)
		Expect(recent).To(HaveLen(2))
		Expect(recent[0].Content).To(Equal("c"))
		Expect(recent[1].Content).To(Equal("d"))
		Expect(c.Recent(10)).To(HaveLen(4))
		Expect(c.Recent(0)).To(BeEmpty())
	})
})

var _ = Describe("Open and Save", func() {
	var (
		ctx   context.Context
		store *inmemory.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewStore()
	})

	It("opens an unknown session empty", func() {
		c, err := conversation.Open(ctx, store, "new")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Len()).To(Equal(0))
	})

	It("persists only turns added since the last save", func() {
		c, err := conversation.Open(ctx, store, "s")
		Expect(err).NotTo(HaveOccurred())
		c.Append(domain.RoleUser, "q1")
		c.Append(domain.RoleAssistant, "a1")
		Expect(conversation.Save(ctx, store, c)).To(Succeed())
		Expect(conversation.Save(ctx, store, c)).To(Succeed())

		reopened, err := conversation.Open(ctx, store, "s")
		Expect(err).NotTo(HaveOccurred())
		Expect(reopened.Len()).To(Equal(2))

		reopened.Append(domain.RoleUser, "q2")
		Expect(conversation.Save(ctx, store, reopened)).To(Succeed())

		turns, err := store.Load(ctx, "s")
		Expect(err).NotTo(HaveOccurred())
		Expect(turns).To(HaveLen(3))
		Expect(turns[2].Content).To(Equal("q2"))
	})

	It("rejects stored turns with unknown roles", func() {
		Expect(store.Append(ctx, "bad", domain.Turn{Role: "system", Content: "x"})).To(Succeed())
		_, err := conversation.Open(ctx, store, "bad")
		Expect(err).To(HaveOccurred())
	})
})
