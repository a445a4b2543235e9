package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"pdfrag/internal/domain"
)

// SentenceChunker groups sentences into chunks with sentence-level overlap.
// Each chunk is a contiguous substring of the document: whitespace between
// sentences stays with the sentence that follows it.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) (*SentenceChunker, error) {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 || overlapSentences >= sentencesPerChunk {
		return nil, fmt.Errorf("%w: sentence overlap must be in [0, %d), got %d",
			domain.ErrInvalidConfiguration, sentencesPerChunk, overlapSentences)
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}, nil
}

func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	text := document.Text()
	if text == "" {
		return nil, nil
	}
	// bounds[i] is the byte offset where sentence i starts; the final element
	// is len(text).
	bounds := []int{0}
	for i, m := range c.splitter.FindAllStringIndex(text, -1) {
		if i == 0 || m[0] <= bounds[len(bounds)-1] {
			continue
		}
		bounds = append(bounds, m[0])
	}
	bounds = append(bounds, len(text))
	sentences := len(bounds) - 1

	pageAt := document.PageLocator()
	var chunks []domain.Chunk
	i := 0
	for {
		end := min(i+c.sentencesPerChunk, sentences)
		from, to := bounds[i], bounds[end]
		offset := utf8.RuneCountInString(text[:from])
		chunks = append(chunks, domain.Chunk{
			Text:     text[from:to],
			SourceID: document.ID,
			Path:     document.Path,
			Page:     pageAt(offset),
			Offset:   offset,
		})
		if end == sentences {
			break
		}
		i = end - c.overlapSentences
	}
	return chunks, nil
}

// Reconstruct concatenates chunks of one document, dropping the part of each
// chunk that overlaps its predecessor. For chunks produced by this package it
// returns the original document text.
func Reconstruct(chunks []domain.Chunk) string {
	var b strings.Builder
	covered := 0
	for _, ch := range chunks {
		runes := []rune(ch.Text)
		skip := covered - ch.Offset
		if skip < 0 {
			skip = 0
		}
		if skip < len(runes) {
			b.WriteString(string(runes[skip:]))
		}
		if end := ch.End(); end > covered {
			covered = end
		}
	}
	return b.String()
}
