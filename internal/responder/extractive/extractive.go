// Package extractive answers offline by quoting the retrieved sentences that
// best match the question.
package extractive

import (
	"context"
	"fmt"

	"pdfrag/internal/responder"
	"pdfrag/internal/summarizer"
)

const (
	DefaultMaxSentences = 3
	// NoAnswer is returned when no context sentence shares a term with the question.
	NoAnswer = "I don't know; the documents don't seem to cover that."
)

type Responder struct {
	summarizer   *summarizer.FrequencySummarizer
	maxSentences int
}

func NewResponder(maxSentences int) *Responder {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	return &Responder{summarizer: summarizer.NewFrequencySummarizer(), maxSentences: maxSentences}
}

func (r *Responder) Name() string { return "extractive" }

// Respond ranks sentences per passage and keeps the best across passages in
// retrieval order. Each sentence is one fragment, followed by the labels of
// the passages quoted.
func (r *Responder) Respond(ctx context.Context, req responder.Request) (responder.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		fragments []string
		cited     []string
	)
	for _, res := range req.Context {
		left := r.maxSentences - len(fragments)
		if left == 0 {
			break
		}
		ranked := r.summarizer.Rank(req.Question, res.Entry.Chunk.Text, left)
		if len(ranked) == 0 {
			continue
		}
		for _, s := range ranked {
			if len(fragments) > 0 {
				s = " " + s
			}
			fragments = append(fragments, s)
		}
		cited = append(cited, responder.Label(res))
	}
	if len(fragments) == 0 {
		return responder.NewTextStream(NoAnswer), nil
	}
	for i, label := range cited {
		fragments = append(fragments, fmt.Sprintf("\n[%d] %s", i+1, label))
	}
	return responder.NewTextStream(fragments...), nil
}

var _ responder.Responder = (*Responder)(nil)
