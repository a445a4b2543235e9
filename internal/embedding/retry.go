package embedding

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"pdfrag/internal/domain"
)

// Retrying retries transport failures of the wrapped embedder with
// exponential backoff. Errors not wrapping domain.ErrEmbeddingService are
// returned immediately.
type Retrying struct {
	next       domain.Embedder
	maxRetries int
	newBackOff func() backoff.BackOff
	logger     *slog.Logger
}

// RetryOption configures a Retrying embedder.
type RetryOption func(*Retrying)

// WithBackOff overrides the backoff schedule (tests use backoff.ZeroBackOff).
func WithBackOff(fn func() backoff.BackOff) RetryOption {
	return func(r *Retrying) { r.newBackOff = fn }
}

// WithRetryLogger sets the logger used to report retried attempts.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(r *Retrying) { r.logger = logger }
}

func NewRetrying(next domain.Embedder, maxRetries int, opts ...RetryOption) *Retrying {
	r := &Retrying{
		next:       next,
		maxRetries: max(maxRetries, 0),
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retrying) Name() string { return r.next.Name() }

func (r *Retrying) Dimension() int { return r.next.Dimension() }

func (r *Retrying) Unwrap() domain.Embedder { return r.next }

func (r *Retrying) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	attempt := 0
	op := func() error {
		attempt++
		vectors, err := r.next.Embed(ctx, texts)
		if err == nil {
			out = vectors
			return nil
		}
		if !errors.Is(err, domain.ErrEmbeddingService) || errors.Is(err, domain.ErrDimensionMismatch) {
			return backoff.Permanent(err)
		}
		r.logger.Warn("embedding attempt failed",
			"embedder", r.next.Name(),
			"attempt", attempt,
			"texts", len(texts),
			"error", err,
		)
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), uint64(r.maxRetries)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return out, nil
}
