package domain

import "context"

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts free text into numeric vectors, one per input and in the
// same order. Dimension reports the declared output size; it may be zero for
// remote models whose size is only learned from the first response.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Preparer is implemented by embedders that must see the corpus before they
// can embed anything (TF-IDF builds its vocabulary here).
type Preparer interface {
	Prepare(corpus []string) error
	Prepared() bool
}

// Index stores entries and answers nearest-neighbour queries. Query returns at
// most k results ordered by non-increasing score.
type Index interface {
	Name() string
	Insert(ctx context.Context, entries []Entry) error
	Query(ctx context.Context, vector []float32, k int) ([]SearchResult, error)
	Close() error
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
