package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pdfrag/internal/conversation"
	"pdfrag/internal/domain"
	"pdfrag/internal/responder"
	"pdfrag/internal/service"
)

type fakePort struct {
	err       error
	questions []string
}

func (f *fakePort) Ask(_ context.Context, conv *conversation.Conversation, q string) (*service.Answer, error) {
	f.questions = append(f.questions, q)
	if f.err != nil {
		return nil, f.err
	}
	inner := responder.NewTextStream("Forty", "-two.")
	return &service.Answer{
		Sources: []domain.SearchResult{{
			Entry:  domain.Entry{Chunk: domain.Chunk{Text: "Intro. The answer is forty-two.", Path: "guide.pdf", Page: 3}},
			Score:  0.8,
			Source: "local",
		}},
		Stream: &recordingStream{Stream: inner, conv: conv, question: q},
	}, nil
}

// recordingStream mimics the service by recording turns at EOF.
type recordingStream struct {
	responder.Stream
	conv     *conversation.Conversation
	question string
	answer   string
}

func (r *recordingStream) Recv() (string, error) {
	frag, err := r.Stream.Recv()
	r.answer += frag
	if err != nil && r.question != "" {
		r.conv.Append(domain.RoleUser, r.question)
		r.conv.Append(domain.RoleAssistant, r.answer)
		r.question = ""
	}
	return frag, err
}

// drive runs cmd and feeds resulting messages back into the model until no
// command is left.
func drive(m Model, cmd tea.Cmd) Model {
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			return m
		}
		next, c := m.Update(msg)
		m = next.(Model)
		cmd = c
	}
	return m
}

func typeQuestion(m Model, q string) (Model, tea.Cmd) {
	m.input.SetValue(q)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

var _ = Describe("Model", func() {
	var (
		port  *fakePort
		conv  *conversation.Conversation
		saves int
		m     Model
	)

	BeforeEach(func() {
		port = &fakePort{}
		conv = conversation.New("tui")
		saves = 0
		m = New(context.Background(), port, conv, "A guide.", func() error {
			saves++
			return nil
		})
		next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
		m = next.(Model)
	})

	It("renders the summary once sized", func() {
		Expect(m.View()).To(ContainSubstring("A guide."))
		Expect(m.View()).To(ContainSubstring("No messages yet."))
	})

	It("streams an answer into the conversation and saves it", func() {
		m, cmd := typeQuestion(m, "What is the answer?")
		Expect(cmd).NotTo(BeNil())
		Expect(m.input.Value()).To(BeEmpty())

		m = drive(m, cmd)
		Expect(port.questions).To(Equal([]string{"What is the answer?"}))
		Expect(m.streaming()).To(BeFalse())
		Expect(conv.Turns()).To(HaveLen(2))
		Expect(conv.Turns()[1].Content).To(Equal("Forty-two."))
		Expect(saves).To(Equal(1))
		Expect(m.renderChat()).To(ContainSubstring("Forty-two."))
		Expect(m.status).To(ContainSubstring("1 sources"))
	})

	It("shows partial text while streaming", func() {
		m, cmd := typeQuestion(m, "What is the answer?")
		next, cmd := m.Update(cmd())
		m = next.(Model)
		next, _ = m.Update(cmd())
		m = next.(Model)

		Expect(m.streaming()).To(BeTrue())
		Expect(m.renderChat()).To(ContainSubstring("What is the answer?"))
		Expect(m.renderChat()).To(ContainSubstring("Forty"))

		_, again := typeQuestion(m, "ignored while streaming")
		Expect(again).To(BeNil())
	})

	It("ignores a second question while the first is still being retrieved", func() {
		m, first := typeQuestion(m, "first question")
		Expect(first).NotTo(BeNil())
		Expect(m.streaming()).To(BeTrue())

		m, second := typeQuestion(m, "second question")
		Expect(second).To(BeNil())

		m = drive(m, first)
		Expect(port.questions).To(Equal([]string{"first question"}))
		Expect(conv.Turns()).To(HaveLen(2))
		Expect(conv.Turns()[0].Content).To(Equal("first question"))
		Expect(m.streaming()).To(BeFalse())
	})

	It("accepts a new question after a failed one", func() {
		port.err = errors.New("down")
		m, cmd := typeQuestion(m, "first question")
		m = drive(m, cmd)
		Expect(m.streaming()).To(BeFalse())

		port.err = nil
		_, cmd = typeQuestion(m, "second question")
		Expect(cmd).NotTo(BeNil())
	})

	It("reports errors in the status line", func() {
		port.err = errors.New("all retrieval sources failed")
		m, cmd := typeQuestion(m, "Anything?")
		m = drive(m, cmd)
		Expect(m.status).To(ContainSubstring("all retrieval sources failed"))
		Expect(conv.Len()).To(Equal(0))
		Expect(saves).To(Equal(0))
	})

	It("ignores blank input", func() {
		_, cmd := typeQuestion(m, "   ")
		Expect(cmd).To(BeNil())
	})

	It("toggles to the source view with the best sentence highlighted", func() {
		m, cmd := typeQuestion(m, "What is the answer?")
		m = drive(m, cmd)
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
		m = next.(Model)

		Expect(m.showSources).To(BeTrue())
		view := m.renderCurrentSource()
		Expect(view).To(ContainSubstring("Source 1/1"))
		Expect(view).To(ContainSubstring("guide.pdf p.3 (local)"))
		Expect(view).To(ContainSubstring("The answer is forty-two."))
	})

	It("quits on ctrl+c", func() {
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		Expect(cmd).NotTo(BeNil())
		Expect(cmd()).To(Equal(tea.Quit()))
	})
})

var _ = Describe("highlightBestSentence", func() {
	It("returns text unchanged without query tokens", func() {
		Expect(highlightBestSentence("One. Two.", "")).To(Equal("One. Two."))
	})

	It("keeps every sentence when one matches", func() {
		out := highlightBestSentence("Cats sleep a lot. Dogs bark at night.", "why do dogs bark")
		Expect(out).To(ContainSubstring("Cats sleep a lot."))
		Expect(out).To(ContainSubstring("Dogs bark at night."))
	})
})
