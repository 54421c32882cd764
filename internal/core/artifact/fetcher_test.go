package artifact

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/paperdex/internal/core"
	"github.com/markdave123-py/paperdex/internal/models"
)

var samplePaper = models.Paper{
	ID:      "https://openalex.org/W2741809807",
	Title:   "Attention Is All You Need",
	Year:    2017,
	Authors: []string{"Ashish Vaswani", "Noam Shazeer"},
}

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	f, err := NewFetcher(Config{Dir: filepath.Join(t.TempDir(), "downloads")})
	require.NoError(t, err)
	return f
}

func TestNewFetcher(t *testing.T) {
	_, err := NewFetcher(Config{})
	assert.Error(t, err)

	f := newTestFetcher(t)
	assert.DirExists(t, f.Dir())
	assert.Equal(t, filepath.Join(f.Dir(), "Vaswani_2017_Attention_Is_All_You_Need.pdf"), f.PathFor(samplePaper))
}

func TestFetch_ReportsProgress(t *testing.T) {
	body := strings.Repeat("p", 3*BufferSize+17)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	var calls []int64
	var totals []int64
	art, err := f.Fetch(context.Background(), srv.URL, samplePaper, func(done, total int64) {
		calls = append(calls, done)
		totals = append(totals, total)
	})
	require.NoError(t, err)

	assert.Equal(t, int64(len(body)), art.Size)
	assert.Equal(t, art.Path, art.Paper.LocalPath)
	assert.Len(t, art.SHA256, 64)
	require.NotEmpty(t, calls)
	assert.Equal(t, int64(len(body)), calls[len(calls)-1])
	for i := 1; i < len(calls); i++ {
		assert.Greater(t, calls[i], calls[i-1])
	}
	for _, total := range totals {
		assert.Equal(t, int64(len(body)), total)
	}

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestFetch_UnknownLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// flushing before the body ends forces chunked encoding
		_, _ = w.Write([]byte("first part "))
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("second part"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	var totals []int64
	art, err := f.Fetch(context.Background(), srv.URL, samplePaper, func(_, total int64) {
		totals = append(totals, total)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len("first part second part")), art.Size)
	require.NotEmpty(t, totals)
	for _, total := range totals {
		assert.Equal(t, int64(-1), total)
	}
}

func TestFetch_HTTPErrorLeavesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	art, err := f.Fetch(context.Background(), srv.URL, samplePaper, nil)
	assert.ErrorIs(t, err, core.ErrFetch)
	assert.Nil(t, art)

	entries, err := os.ReadDir(f.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetch_TruncatedBodyLeavesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("only a little"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), srv.URL, samplePaper, nil)
	assert.ErrorIs(t, err, core.ErrFetch)

	entries, err := os.ReadDir(f.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f, err := NewFetcher(Config{Dir: t.TempDir(), Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL, samplePaper, nil)
	assert.ErrorIs(t, err, core.ErrFetch)
	assert.True(t, core.IsRetryable(err))
}

func TestFetch_Idempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.7 same bytes"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	first, err := f.Fetch(context.Background(), srv.URL, samplePaper, nil)
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), srv.URL, samplePaper, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, first.SHA256, second.SHA256)

	entries, err := os.ReadDir(f.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
