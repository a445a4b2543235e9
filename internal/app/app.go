// Package app assembles the pipeline components named in an AppConfig.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"pdfrag/internal/chunker"
	"pdfrag/internal/config"
	"pdfrag/internal/conversation"
	"pdfrag/internal/conversation/inmemory"
	"pdfrag/internal/conversation/sqlite"
	"pdfrag/internal/domain"
	"pdfrag/internal/embedding"
	embgoogle "pdfrag/internal/embedding/google"
	embopenai "pdfrag/internal/embedding/openai"
	"pdfrag/internal/embedding/tfidf"
	"pdfrag/internal/responder"
	"pdfrag/internal/responder/anthropic"
	"pdfrag/internal/responder/extractive"
	respgoogle "pdfrag/internal/responder/google"
	respopenai "pdfrag/internal/responder/openai"
	"pdfrag/internal/service"
	"pdfrag/internal/summarizer"
	"pdfrag/internal/vectorstore"
	"pdfrag/internal/vectorstore/memory"
	"pdfrag/internal/vectorstore/pgvector"
	"pdfrag/internal/vectorstore/qdrant"
)

// App owns the service and history store built from one configuration.
type App struct {
	Config  *config.AppConfig
	Service *service.RAGService
	History conversation.Store
	Logger  *slog.Logger

	remote  []domain.Index
	closers []io.Closer
}

// New validates cfg, builds every component and restores the local snapshot.
// Components built before a failure are closed again.
func New(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	ch, err := NewChunker(cfg.Chunker)
	if err != nil {
		return nil, err
	}
	emb, err := a.embedder(ctx)
	if err != nil {
		return nil, err
	}
	local, err := memory.NewIndex("local", 0, vectorstore.Metric(cfg.VectorStore.Metric))
	if err != nil {
		return nil, err
	}
	a.remote, err = a.remotes(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := a.responder(ctx)
	if err != nil {
		return nil, err
	}
	var sum domain.Summarizer
	if cfg.Summarizer.Type != "none" {
		sum = summarizer.NewFrequencySummarizer()
	}

	svc, err := service.NewRAGService(service.Dependencies{
		Chunker:    ch,
		Embedder:   emb,
		Local:      local,
		Remote:     a.remote,
		Responder:  resp,
		Summarizer: sum,
		Logger:     logger,
	}, service.Options{
		TopK:                cfg.VectorStore.TopK,
		MaxHistoryTurns:     cfg.Responder.MaxHistoryTurns,
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		SnapshotPath:        cfg.VectorStore.Snapshot,
	})
	if err != nil {
		return nil, err
	}
	a.Service = svc

	if _, err := svc.Open(ctx); err != nil {
		return nil, fmt.Errorf("opening knowledge base: %w", err)
	}

	a.History, err = NewHistory(cfg.History)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Conversation loads the session with the given id from the history store.
func (a *App) Conversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	return conversation.Open(ctx, a.History, id)
}

// Close releases the service, the history store and any client connections.
func (a *App) Close() error {
	var errs []error
	if a.Service != nil {
		errs = append(errs, a.Service.Close())
	} else {
		closeAll(a.remote)
	}
	if a.History != nil {
		errs = append(errs, a.History.Close())
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// NewChunker builds the configured chunker.
func NewChunker(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "character":
		return chunker.NewCharacterChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	case "sentence":
		return chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences)
	default:
		return nil, fmt.Errorf("%w: unknown chunker %q", domain.ErrInvalidConfiguration, cfg.Type)
	}
}

// NewHistory opens the configured history store.
func NewHistory(cfg config.HistoryConfig) (conversation.Store, error) {
	switch cfg.Type {
	case "memory":
		return inmemory.NewStore(), nil
	case "sqlite":
		return sqlite.NewStore(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: unknown history store %q", domain.ErrInvalidConfiguration, cfg.Type)
	}
}

func (a *App) embedder(ctx context.Context) (domain.Embedder, error) {
	cfg := a.Config.Embedder
	var base domain.Embedder
	switch cfg.Type {
	case "tfidf":
		// Local computation never fails transiently.
		return tfidf.NewEmbedder(), nil
	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			oc = &config.OpenAIEmbedderConfig{}
		}
		e, err := embopenai.NewEmbedder(embopenai.Config{
			BaseURL:    oc.BaseURL,
			APIKeyEnv:  oc.APIKeyEnv,
			Model:      oc.Model,
			Dimensions: oc.Dimensions,
			BatchSize:  oc.BatchSize,
			Timeout:    time.Duration(oc.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		base = e
	case "google":
		gc := cfg.Google
		if gc == nil {
			gc = &config.GoogleEmbedderConfig{}
		}
		e, err := embgoogle.NewEmbedder(ctx, embgoogle.Config{
			APIKeyEnv: gc.APIKeyEnv,
			Model:     gc.Model,
			BatchSize: gc.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, e)
		base = e
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", domain.ErrInvalidConfiguration, cfg.Type)
	}
	return embedding.NewRetrying(base, cfg.MaxRetries, embedding.WithRetryLogger(a.Logger)), nil
}

func (a *App) remotes(ctx context.Context) ([]domain.Index, error) {
	vs := a.Config.VectorStore
	metric := vectorstore.Metric(vs.Metric)
	var out []domain.Index
	if q := vs.Qdrant; q != nil {
		var key string
		if q.APIKeyEnv != "" {
			key = os.Getenv(q.APIKeyEnv)
		}
		idx, err := qdrant.NewIndex(qdrant.Config{
			Host:       q.Host,
			Port:       q.Port,
			APIKey:     key,
			UseTLS:     q.UseTLS,
			Collection: q.Collection,
			Metric:     metric,
			ReadOnly:   q.ReadOnly,
		}, a.Logger)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	if p := vs.PGVector; p != nil {
		dsn := os.Getenv(p.DSNEnv)
		if dsn == "" {
			closeAll(out)
			return nil, fmt.Errorf("%w: missing pgvector DSN (env %s)", domain.ErrInvalidConfiguration, p.DSNEnv)
		}
		idx, err := pgvector.NewIndex(ctx, pgvector.Config{
			DSN:      dsn,
			Table:    p.Table,
			Metric:   metric,
			ReadOnly: p.ReadOnly,
		}, a.Logger)
		if err != nil {
			closeAll(out)
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

func (a *App) responder(ctx context.Context) (responder.Responder, error) {
	cfg := a.Config.Responder
	switch cfg.Type {
	case "openai":
		return respopenai.NewResponder(respopenai.Config{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	case "google":
		r, err := respgoogle.NewResponder(ctx, respgoogle.Config{
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, r)
		return r, nil
	case "anthropic":
		return anthropic.NewResponder(anthropic.Config{
			BaseURL:   cfg.BaseURL,
			APIKeyEnv: cfg.APIKeyEnv,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		})
	case "extractive":
		return extractive.NewResponder(0), nil
	default:
		return nil, fmt.Errorf("%w: unknown responder %q", domain.ErrInvalidConfiguration, cfg.Type)
	}
}

func closeAll(indexes []domain.Index) {
	for _, idx := range indexes {
		_ = idx.Close()
	}
}
