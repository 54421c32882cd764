package ingestion_engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/paperdex/internal/core"
)

// stubExtractor is a test double for core.TextExtractor.
type stubExtractor struct {
	text  string
	err   error
	calls atomic.Int32
}

func (s *stubExtractor) Extract(_ context.Context, _ string) (string, error) {
	s.calls.Add(1)
	return s.text, s.err
}

func TestPDFExtractor_MissingFile(t *testing.T) {
	_, err := NewPDFExtractor().Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	assert.ErrorIs(t, err, core.ErrExtraction)
}

func TestPDFExtractor_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf at all"), 0o644))

	text, err := NewPDFExtractor().Extract(context.Background(), path)
	assert.ErrorIs(t, err, core.ErrExtraction)
	assert.Empty(t, text)
}

func TestDocconvExtractor_MissingFile(t *testing.T) {
	_, err := NewDocconvExtractor(false).Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	assert.ErrorIs(t, err, core.ErrExtraction)
}

func TestChainExtractor_FirstNonEmptyWins(t *testing.T) {
	first := &stubExtractor{text: "  \n"}
	second := &stubExtractor{text: "real text"}
	third := &stubExtractor{text: "never used"}

	text, err := ChainExtractor{first, second, third}.Extract(context.Background(), "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "real text", text)
	assert.EqualValues(t, 1, first.calls.Load())
	assert.EqualValues(t, 1, second.calls.Load())
	assert.Zero(t, third.calls.Load())
}

func TestChainExtractor_FallsBackAfterError(t *testing.T) {
	broken := &stubExtractor{err: errors.New("boom")}
	good := &stubExtractor{text: "body"}

	text, err := ChainExtractor{broken, good}.Extract(context.Background(), "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "body", text)
}

func TestChainExtractor_EmptyTextIsNotAnError(t *testing.T) {
	broken := &stubExtractor{err: errors.New("boom")}
	scanned := &stubExtractor{text: ""}

	text, err := ChainExtractor{broken, scanned}.Extract(context.Background(), "doc.pdf")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestChainExtractor_AllFail(t *testing.T) {
	a := &stubExtractor{err: errors.New("a failed")}
	b := &stubExtractor{err: errors.New("b failed")}

	_, err := ChainExtractor{a, b}.Extract(context.Background(), "doc.pdf")
	assert.ErrorIs(t, err, core.ErrExtraction)
	assert.Contains(t, err.Error(), "a failed")
	assert.Contains(t, err.Error(), "b failed")
}

func TestChainExtractor_Empty(t *testing.T) {
	_, err := ChainExtractor{}.Extract(context.Background(), "doc.pdf")
	assert.ErrorIs(t, err, core.ErrExtraction)
}
