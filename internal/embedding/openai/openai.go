// Package openai implements domain.Embedder on top of the OpenAI embeddings
// API (or any OpenAI-compatible server).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"pdfrag/internal/domain"
	"pdfrag/internal/embedding"
)

const (
	DefaultModel     = "text-embedding-3-small"
	DefaultBatchSize = 64
)

var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL string
	// APIKey takes precedence over APIKeyEnv.
	APIKey    string
	APIKeyEnv string
	Model     string
	// Dimensions requests shortened vectors from models that support it.
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
}

// Embedder is an OpenAI embeddings client.
type Embedder struct {
	client     *goopenai.Client
	model      string
	requestDim int
	batchSize  int

	mu        sync.RWMutex
	dimension int
}

// NewEmbedder creates a new embeddings client using the provided configuration.
func NewEmbedder(cfg Config) (*Embedder, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: missing OpenAI API key (env %s)", domain.ErrInvalidConfiguration, cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	ocfg := goopenai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		ocfg.BaseURL = cfg.BaseURL
	}
	ocfg.HTTPClient = &http.Client{Timeout: timeout}

	dim := cfg.Dimensions
	if dim == 0 {
		dim = knownDimensions[cfg.Model]
	}
	return &Embedder{
		client:     goopenai.NewClientWithConfig(ocfg),
		model:      cfg.Model,
		requestDim: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
		dimension:  dim,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "openai:" + e.model }

// Dimension returns the declared vector size; unknown models report zero
// until the first response arrives.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

// Embed returns one vector per text, batching requests by the configured size.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	offset := 0
	for _, batch := range embedding.Batches(texts, e.batchSize) {
		req := goopenai.EmbeddingRequest{
			Input: batch,
			Model: goopenai.EmbeddingModel(e.model),
		}
		if e.requestDim > 0 {
			req.Dimensions = e.requestDim
		}
		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, classify(err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("%w: openai returned %d embeddings for %d inputs", domain.ErrEmbeddingService, len(resp.Data), len(batch))
		}
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("%w: openai returned out-of-range index %d", domain.ErrEmbeddingService, d.Index)
			}
			out[offset+d.Index] = d.Embedding
		}
		offset += len(batch)
	}
	if len(out) == 0 {
		return out, nil
	}

	e.mu.Lock()
	if e.dimension == 0 {
		e.dimension = len(out[0])
	}
	dim := e.dimension
	e.mu.Unlock()

	if err := embedding.CheckVectors(out, len(texts), dim); err != nil {
		return nil, err
	}
	return out, nil
}

// classify marks transport failures, rate limits and server errors with
// domain.ErrEmbeddingService. Other API rejections (bad key, bad model) are
// returned without it since retrying cannot help.
func classify(err error) error {
	status := 0
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return fmt.Errorf("openai embeddings rejected (status %d): %w", status, err)
	}
	return fmt.Errorf("%w: openai: %v", domain.ErrEmbeddingService, err)
}

var _ domain.Embedder = (*Embedder)(nil)
