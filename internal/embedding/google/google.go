// Package google implements domain.Embedder with Gemini embedding models.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"pdfrag/internal/domain"
	"pdfrag/internal/embedding"
)

const (
	DefaultModel = "text-embedding-004"
	// maxBatch is the per-request limit of BatchEmbedContents.
	maxBatch = 100
)

var knownDimensions = map[string]int{
	"text-embedding-004":   768,
	"embedding-001":        768,
	"gemini-embedding-001": 3072,
}

type Config struct {
	APIKey    string
	APIKeyEnv string
	Model     string
	BatchSize int
}

type Embedder struct {
	client    *genai.Client
	model     string
	batchSize int

	mu        sync.RWMutex
	dimension int
}

func NewEmbedder(ctx context.Context, cfg Config) (*Embedder, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: missing Google API key (env %s)", domain.ErrInvalidConfiguration, cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > maxBatch {
		cfg.BatchSize = maxBatch
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Embedder{
		client:    client,
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		dimension: knownDimensions[cfg.Model],
	}, nil
}

func (e *Embedder) Name() string { return "google:" + e.model }

func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	model := e.client.EmbeddingModel(e.model)
	out := make([][]float32, 0, len(texts))
	for _, group := range embedding.Batches(texts, e.batchSize) {
		batch := model.NewBatch()
		for _, t := range group {
			batch.AddContent(genai.Text(t))
		}
		res, err := model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, classify(err)
		}
		if len(res.Embeddings) != len(group) {
			return nil, fmt.Errorf("%w: google returned %d embeddings for %d inputs", domain.ErrEmbeddingService, len(res.Embeddings), len(group))
		}
		for _, emb := range res.Embeddings {
			if emb == nil {
				return nil, fmt.Errorf("%w: google returned an empty embedding", domain.ErrEmbeddingService)
			}
			out = append(out, emb.Values)
		}
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
// domain.ErrEmbeddingService. Other API rejections (bad key, unknown model)
// are returned without it so the retrying wrapper gives up at once.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		code := apiErr.Code
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return fmt.Errorf("google embeddings rejected (status %d): %w", code, err)
		}
	}
	return fmt.Errorf("%w: google: %v", domain.ErrEmbeddingService, err)
}

// Close releases the underlying genai client.
func (e *Embedder) Close() error { return e.client.Close() }

var _ domain.Embedder = (*Embedder)(nil)
