package domain

import "errors"

var (
	// ErrInvalidInput signals a request rejected by validation. Never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound signals a missing law record or embedding.
	ErrNotFound = errors.New("not found")
	// ErrQueryNotFound signals an unknown search query id.
	ErrQueryNotFound = errors.New("search query not found")
	// ErrDimensionMismatch signals a vector with the wrong number of components.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding service failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCompletionProviderError signals a completion service failure.
	ErrCompletionProviderError = errors.New("completion provider error")
	// ErrLeaseHeld signals that a named advisory lease is held by someone else.
	ErrLeaseHeld = errors.New("lease held")
	// ErrRebuildInProgress signals that the index rebuild lease is held.
	ErrRebuildInProgress = errors.New("index rebuild already in progress")
	// ErrIngestInProgress signals that the corpus ingest lease is held.
	ErrIngestInProgress = errors.New("ingest already in progress")
	// ErrPersistence signals a non-fatal storage failure (e.g. duplicate key
	// on bulk insert). The overall operation continues.
	ErrPersistence = errors.New("persistence failure")
)
