package google_test

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pdfrag/internal/domain"
	"pdfrag/internal/responder/google"
)

var _ = Describe("Responder", func() {
	It("requires an API key", func() {
		_, err := google.NewResponder(context.Background(), google.Config{APIKeyEnv: "PDFRAG_TEST_UNSET_KEY"})
		Expect(err).To(MatchError(domain.ErrInvalidConfiguration))
	})
})

var _ = Describe("History", func() {
	It("maps assistant turns to the model role", func() {
		h := google.History([]domain.Turn{
			{Role: domain.RoleUser, Content: "q"},
			{Role: domain.RoleAssistant, Content: "a"},
		})
		Expect(h).To(HaveLen(2))
		Expect(h[0].Role).To(Equal("user"))
		Expect(h[1].Role).To(Equal("model"))
		Expect(h[1].Parts).To(Equal([]genai.Part{genai.Text("a")}))
	})
})

var _ = Describe("Text", func() {
	It("joins text parts of the first candidate", func() {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("Hel"), genai.Text("lo")}}},
		}}
		Expect(google.Text(resp)).To(Equal("Hello"))
	})

	It("tolerates empty responses", func() {
		Expect(google.Text(nil)).To(BeEmpty())
		Expect(google.Text(&genai.GenerateContentResponse{})).To(BeEmpty())
	})
})
