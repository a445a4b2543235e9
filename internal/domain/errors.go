package domain

import "errors"

var (
	// ErrInvalidConfiguration is returned for bad chunking, index or pipeline
	// parameters. It is fatal to the call and should not be retried.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrEmbeddingService wraps transport failures from an embedding provider.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrDimensionMismatch is returned when a vector does not match the
	// dimension of the embedder or index it is used with.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrAllSourcesFailed is returned by retrieval when every index failed.
	ErrAllSourcesFailed = errors.New("all retrieval sources failed")

	// ErrUnsupportedDocument is returned for files the loader cannot read.
	ErrUnsupportedDocument = errors.New("unsupported document type")

	// ErrReadOnly is returned when inserting into a read-only index.
	ErrReadOnly = errors.New("index is read-only")

	// ErrNoDocuments is returned when an ingestion request matched nothing.
	ErrNoDocuments = errors.New("no documents found")
)
