// Package responder turns a question, retrieved context and recent history
// into a streamed answer from a chat model.
package responder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"pdfrag/internal/domain"
)

// ErrStreamClosed is returned by Recv after Close.
var ErrStreamClosed = errors.New("answer stream closed")

// Request is everything a model sees for one answer.
type Request struct {
	Question string
	Context  []domain.SearchResult
	History  []domain.Turn
}

// Responder produces answers. Respond returns once the model has accepted the
// request; fragments arrive through the Stream.
type Responder interface {
	Name() string
	Respond(ctx context.Context, req Request) (Stream, error)
}

// Stream is a finite sequence of answer fragments. Recv returns io.EOF once
// the answer is complete. A stream cannot be restarted.
type Stream interface {
	Recv() (string, error)
	Close() error
}

const systemPreamble = `You answer questions about the user's documents.
Use the following pieces of context to answer the question at the end.
If you don't know the answer, just say that you don't know, don't try to make up an answer.`

// BuildPrompt renders the retrieved context as a system prompt. Each passage
// is labelled with its source document and page.
func BuildPrompt(results []domain.SearchResult) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	if len(results) == 0 {
		b.WriteString("\n\nNo context was found in the documents.")
		return b.String()
	}
	b.WriteString("\n\nContext:")
	for i, r := range results {
		fmt.Fprintf(&b, "\n\n[%d] %s", i+1, Label(r))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(r.Entry.Chunk.Text))
	}
	return b.String()
}

// Label names where a result came from, e.g. "report.pdf p.3 (local)".
func Label(r domain.SearchResult) string {
	src := r.Entry.Chunk.Path
	if src == "" {
		src = r.Entry.Chunk.SourceID
	}
	if src == "" {
		src = "unknown"
	}
	label := filepath.Base(src)
	if r.Entry.Chunk.Page > 0 {
		label += fmt.Sprintf(" p.%d", r.Entry.Chunk.Page)
	}
	if r.Source != "" {
		label += " (" + r.Source + ")"
	}
	return label
}

// Collect drains a stream and closes it.
func Collect(s Stream) (string, error) {
	defer s.Close()
	var b strings.Builder
	for {
		frag, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(frag)
	}
}

// TextStream replays fixed fragments. It backs responders that produce the
// whole answer at once.
type TextStream struct {
	mu        sync.Mutex
	fragments []string
	closed    bool
}

func NewTextStream(fragments ...string) *TextStream {
	return &TextStream{fragments: fragments}
}

func (s *TextStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrStreamClosed
	}
	if len(s.fragments) == 0 {
		return "", io.EOF
	}
	frag := s.fragments[0]
	s.fragments = s.fragments[1:]
	return frag, nil
}

func (s *TextStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.fragments = nil
	s.mu.Unlock()
	return nil
}

// Func adapts a receive function into a Stream that stays at io.EOF once
// reached. closeFn may be nil.
func Func(recv func() (string, error), closeFn func() error) Stream {
	return &funcStream{recv: recv, close: closeFn}
}

type funcStream struct {
	mu     sync.Mutex
	recv   func() (string, error)
	close  func() error
	done   bool
	closed bool
}

func (s *funcStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrStreamClosed
	}
	if s.done {
		return "", io.EOF
	}
	frag, err := s.recv()
	if errors.Is(err, io.EOF) {
		s.done = true
	}
	return frag, err
}

func (s *funcStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.close != nil {
		return s.close()
	}
	return nil
}
