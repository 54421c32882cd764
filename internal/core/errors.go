package core

import (
	"context"
	"errors"
)

// Pipeline error kinds. Stages wrap these with fmt.Errorf("...: %w") so callers
// can branch with errors.Is.
var (
	// ErrFetch indicates a network or HTTP failure while retrieving an artifact.
	ErrFetch = errors.New("fetch failed")

	// ErrExtraction indicates the document could not be opened or parsed at all.
	ErrExtraction = errors.New("text extraction failed")

	// ErrEmbeddingUnavailable indicates no usable embedding backend is configured or installed.
	// Indexing degrades to keyword-only.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

	// ErrStoreUnavailable indicates no index store is configured.
	ErrStoreUnavailable = errors.New("index store not configured")

	// ErrStoreWrite indicates the store was reachable but a write failed.
	ErrStoreWrite = errors.New("index store write failed")

	// ErrMixedEmbeddings indicates vectors from a different model or dimension
	// than the ones already in the collection.
	ErrMixedEmbeddings = errors.New("embedding model does not match collection")

	// ErrInvalidChunking indicates chunk parameters that cannot make forward progress.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrNotFound indicates a requested paper does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoPDF indicates the metadata provider has no downloadable PDF for a paper.
	ErrNoPDF = errors.New("no pdf available")

	// ErrCancelled indicates the batch was interrupted before the document finished.
	ErrCancelled = errors.New("cancelled")
)

// IsRetryable reports whether retrying the same document later may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrExtraction) || errors.Is(err, ErrMixedEmbeddings) {
		return false
	}
	return errors.Is(err, ErrFetch) ||
		errors.Is(err, ErrStoreWrite) ||
		errors.Is(err, context.DeadlineExceeded)
}
