// Package service runs the ingestion and question-answering pipeline.
package service

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdfrag/internal/conversation"
	"pdfrag/internal/domain"
	"pdfrag/internal/embedding"
	"pdfrag/internal/loader"
	"pdfrag/internal/responder"
	"pdfrag/internal/retrieval"
	"pdfrag/internal/vectorstore/memory"
)

// ErrEmptyQuestion is returned by Ask for blank input.
var ErrEmptyQuestion = errors.New("question is empty")

// Options tune the pipeline. Zero values fall back to the defaults below.
type Options struct {
	TopK                int
	MaxHistoryTurns     int
	SummaryMaxSentences int
	// SnapshotPath persists the local index when set. The embedder state, if
	// any, is written next to it with an ".embedder" suffix.
	SnapshotPath string
}

// Dependencies are the collaborators a RAGService is assembled from. Remote
// indexes are queried after the local one; the writable ones also receive
// ingested entries.
type Dependencies struct {
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Local      *memory.Index
	Remote     []domain.Index
	Responder  responder.Responder
	Summarizer domain.Summarizer
	Logger     *slog.Logger
}

type RAGService struct {
	chunker    domain.Chunker
	embedder   domain.Embedder
	local      *memory.Index
	remote     []domain.Index
	retriever  *retrieval.Retriever
	responder  responder.Responder
	summarizer domain.Summarizer
	logger     *slog.Logger
	opts       Options

	// ingestMu serializes ingestion so the embedder is prepared once.
	ingestMu sync.Mutex
}

// DocumentReport describes one ingested file.
type DocumentReport struct {
	ID     string
	Path   string
	Pages  int
	Chunks int
}

// IngestReport is the outcome of an Ingest call.
type IngestReport struct {
	Documents []DocumentReport
	Skipped   []string
	Chunks    int
	Summary   string
}

// Answer carries the sources an answer is grounded on and the stream that
// produces it. The conversation is updated once the stream reaches io.EOF.
type Answer struct {
	Sources []domain.SearchResult
	Stream  responder.Stream
}

func NewRAGService(deps Dependencies, opts Options) (*RAGService, error) {
	if deps.Chunker == nil || deps.Embedder == nil || deps.Local == nil || deps.Responder == nil {
		return nil, fmt.Errorf("%w: chunker, embedder, local index and responder are required", domain.ErrInvalidConfiguration)
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.MaxHistoryTurns < 0 {
		opts.MaxHistoryTurns = 0
	}
	if opts.SummaryMaxSentences <= 0 {
		opts.SummaryMaxSentences = 5
	}
	indexes := append([]domain.Index{deps.Local}, deps.Remote...)
	retriever, err := retrieval.NewRetriever(deps.Embedder, indexes, deps.Logger)
	if err != nil {
		return nil, err
	}
	return &RAGService{
		chunker:    deps.Chunker,
		embedder:   deps.Embedder,
		local:      deps.Local,
		remote:     deps.Remote,
		retriever:  retriever,
		responder:  deps.Responder,
		summarizer: deps.Summarizer,
		logger:     deps.Logger,
		opts:       opts,
	}, nil
}

// Open restores the local index and embedder state from the snapshot. It
// reports whether a snapshot was found.
func (s *RAGService) Open(ctx context.Context) (bool, error) {
	if s.opts.SnapshotPath == "" {
		return false, nil
	}
	found, err := s.local.LoadFile(s.opts.SnapshotPath)
	if err != nil || !found {
		return false, err
	}
	if u, ok := embedding.Base(s.embedder).(encoding.BinaryUnmarshaler); ok {
		data, err := os.ReadFile(s.embedderStatePath())
		if err != nil {
			return false, fmt.Errorf("reading embedder state: %w", err)
		}
		if err := u.UnmarshalBinary(data); err != nil {
			return false, err
		}
	}
	s.logger.Info("loaded knowledge base", "path", s.opts.SnapshotPath, "chunks", s.local.Len())
	return true, nil
}

// Ingest loads, chunks, embeds and indexes the files matched by paths.
// Files of unsupported types are skipped.
func (s *RAGService) Ingest(ctx context.Context, paths []string) (IngestReport, error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	var (
		report IngestReport
		docs   []domain.Document
		chunks [][]domain.Chunk
		corpus []string
	)
	for _, p := range loader.Expand(paths) {
		if !loader.Supported(p) {
			s.logger.Warn("skipping unsupported file", "path", p)
			report.Skipped = append(report.Skipped, p)
			continue
		}
		doc, err := loader.Load(p)
		if err != nil {
			return report, fmt.Errorf("loading %s: %w", p, err)
		}
		cs, err := s.chunker.Chunk(doc)
		if err != nil {
			return report, fmt.Errorf("chunking %s: %w", p, err)
		}
		cs = nonBlank(cs)
		docs = append(docs, doc)
		chunks = append(chunks, cs)
		for _, c := range cs {
			corpus = append(corpus, c.Text)
		}
	}
	if len(docs) == 0 {
		return report, domain.ErrNoDocuments
	}

	if p, ok := embedding.Base(s.embedder).(domain.Preparer); ok && !p.Prepared() {
		if len(corpus) == 0 {
			return report, fmt.Errorf("%w: documents contain no text", domain.ErrNoDocuments)
		}
		if err := p.Prepare(corpus); err != nil {
			return report, fmt.Errorf("preparing embedder: %w", err)
		}
	}

	var text strings.Builder
	for i, doc := range docs {
		start := time.Now()
		if err := s.index(ctx, chunks[i]); err != nil {
			return report, fmt.Errorf("indexing %s: %w", doc.Path, err)
		}
		s.logger.Info("indexed document", "path", doc.Path, "pages", len(doc.Pages), "chunks", len(chunks[i]), "took", time.Since(start))
		report.Documents = append(report.Documents, DocumentReport{ID: doc.ID, Path: doc.Path, Pages: len(doc.Pages), Chunks: len(chunks[i])})
		report.Chunks += len(chunks[i])
		text.WriteString("\n")
		text.WriteString(doc.Text())
	}

	if err := s.persist(); err != nil {
		return report, err
	}
	if s.summarizer != nil {
		summary, err := s.summarizer.Summarize(text.String(), s.opts.SummaryMaxSentences)
		if err != nil {
			return report, err
		}
		report.Summary = summary
	}
	return report, nil
}

// index embeds one document's chunks in a single call and stores them.
func (s *RAGService) index(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if err := embedding.CheckVectors(vectors, len(texts), s.embedder.Dimension()); err != nil {
		return err
	}
	entries := make([]domain.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = domain.Entry{ID: uuid.New().String(), Chunk: c, Vector: vectors[i]}
	}
	if err := s.local.Insert(ctx, entries); err != nil {
		return err
	}
	for _, idx := range s.remote {
		err := idx.Insert(ctx, entries)
		switch {
		case errors.Is(err, domain.ErrReadOnly):
		case err != nil:
			s.logger.Warn("remote index insert failed", "source", idx.Name(), "error", err)
		}
	}
	return nil
}

func (s *RAGService) persist() error {
	if s.opts.SnapshotPath == "" {
		return nil
	}
	if err := s.local.SaveFile(s.opts.SnapshotPath); err != nil {
		return fmt.Errorf("saving knowledge base: %w", err)
	}
	if m, ok := embedding.Base(s.embedder).(encoding.BinaryMarshaler); ok {
		data, err := m.MarshalBinary()
		if err != nil {
			return fmt.Errorf("saving embedder state: %w", err)
		}
		if err := os.WriteFile(s.embedderStatePath(), data, 0o644); err != nil {
			return fmt.Errorf("saving embedder state: %w", err)
		}
	}
	return nil
}

func (s *RAGService) embedderStatePath() string {
	return s.opts.SnapshotPath + ".embedder"
}

// Search retrieves the top k results for query across every index. When all
// scores are zero, as happens when the query shares no vocabulary with a
// TF-IDF model, it ranks local chunks by token overlap instead.
func (s *RAGService) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = s.opts.TopK
	}
	res, err := s.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if len(res) > 0 && allZero(res) {
		s.logger.Debug("falling back to lexical search", "query", query)
		return lexicalSearch(s.local.Chunks(), query, k, s.local.Name()), nil
	}
	return res, nil
}

// Ask retrieves context for question and starts streaming an answer. The
// question and the full answer are appended to conv when the stream ends.
func (s *RAGService) Ask(ctx context.Context, conv *conversation.Conversation, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	sources, err := s.Search(ctx, question, s.opts.TopK)
	if err != nil {
		return nil, err
	}
	stream, err := s.responder.Respond(ctx, responder.Request{
		Question: question,
		Context:  sources,
		History:  conv.Recent(s.opts.MaxHistoryTurns),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.responder.Name(), err)
	}
	s.logger.Debug("answer started", "responder", s.responder.Name(), "sources", len(sources))
	return &Answer{Sources: sources, Stream: &answerStream{Stream: stream, conv: conv, question: question}}, nil
}

// Summary returns a summary of everything in the local index.
func (s *RAGService) Summary() (string, error) {
	if s.summarizer == nil {
		return "", nil
	}
	var b strings.Builder
	for _, c := range s.local.Chunks() {
		b.WriteString(c.Text)
		b.WriteString("\n")
	}
	return s.summarizer.Summarize(b.String(), s.opts.SummaryMaxSentences)
}

// Chunks reports how many chunks the local index holds.
func (s *RAGService) Chunks() int { return s.local.Len() }

func (s *RAGService) Close() error {
	var errs []error
	for _, idx := range append([]domain.Index{s.local}, s.remote...) {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", idx.Name(), err))
		}
	}
	return errors.Join(errs...)
}

type answerStream struct {
	responder.Stream
	conv     *conversation.Conversation
	question string
	answer   strings.Builder
	recorded bool
}

func (a *answerStream) Recv() (string, error) {
	frag, err := a.Stream.Recv()
	a.answer.WriteString(frag)
	if errors.Is(err, io.EOF) && !a.recorded {
		a.recorded = true
		a.conv.Append(domain.RoleUser, a.question)
		a.conv.Append(domain.RoleAssistant, a.answer.String())
	}
	return frag, err
}

func nonBlank(chunks []domain.Chunk) []domain.Chunk {
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) != "" {
			out = append(out, c)
		}
	}
	return out
}

func allZero(res []domain.SearchResult) bool {
	for _, r := range res {
		if r.Score != 0 {
			return false
		}
	}
	return true
}
