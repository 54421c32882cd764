package core

import (
	"context"
)

// TextExtractor reads a document from disk and returns its text as a single blob.
type TextExtractor interface {
	// Extract fails with ErrExtraction when the file cannot be opened or parsed.
	Extract(ctx context.Context, path string) (string, error)
}
