package chunker

import (
	"fmt"

	"pdfrag/internal/domain"
)

// CharacterChunker splits text into fixed-size windows of runes. Consecutive
// windows share exactly overlap runes, so the chunks cover the text with no
// gaps.
type CharacterChunker struct {
	size    int
	overlap int
}

// NewCharacterChunker validates 0 <= overlap < size.
func NewCharacterChunker(size, overlap int) (*CharacterChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", domain.ErrInvalidConfiguration, size, overlap)
	}
	return &CharacterChunker{size: size, overlap: overlap}, nil
}

// Size returns the maximum chunk length in runes.
func (c *CharacterChunker) Size() int { return c.size }

// Overlap returns the number of runes shared by consecutive chunks.
func (c *CharacterChunker) Overlap() int { return c.overlap }

func (c *CharacterChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	runes := []rune(document.Text())
	if len(runes) == 0 {
		return nil, nil
	}
	pageAt := document.PageLocator()
	step := c.size - c.overlap
	var chunks []domain.Chunk
	for start := 0; ; start += step {
		end := min(start+c.size, len(runes))
		chunks = append(chunks, domain.Chunk{
			Text:     string(runes[start:end]),
			SourceID: document.ID,
			Path:     document.Path,
			Page:     pageAt(start),
			Offset:   start,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
