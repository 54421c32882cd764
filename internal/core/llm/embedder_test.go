package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/markdave123-py/paperdex/internal/config"
	"github.com/markdave123-py/paperdex/internal/core"
)

func fakeGemini(batchSize int, call func(texts []string) ([][]float32, error)) (*GeminiEmbedder, *[]time.Duration) {
	g := newGeminiEmbedder(GeminiConfig{Model: "text-embedding-004", BatchSize: batchSize})
	var slept []time.Duration
	g.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	g.embedBatch = func(_ context.Context, texts []string) ([][]float32, error) {
		return call(texts)
	}
	return g, &slept
}

func vectorsFor(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out
}

func TestGeminiEmbedder_Batches(t *testing.T) {
	var sizes []int
	g, _ := fakeGemini(2, func(texts []string) ([][]float32, error) {
		sizes = append(sizes, len(texts))
		return vectorsFor(texts), nil
	})

	vecs, err := g.EmbedTexts(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
	require.Len(t, vecs, 5)
	for i, v := range vecs {
		assert.Equal(t, float32(i+1), v[0])
	}
	assert.Equal(t, "gemini/text-embedding-004", g.Name())
}

func TestGeminiEmbedder_RetriesTransientErrors(t *testing.T) {
	calls := 0
	g, slept := fakeGemini(10, func(texts []string) ([][]float32, error) {
		calls++
		if calls < 3 {
			return nil, &googleapi.Error{Code: http.StatusTooManyRequests, Message: "slow down"}
		}
		return vectorsFor(texts), nil
	})

	vecs, err := g.EmbedTexts(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, *slept)
}

func TestGeminiEmbedder_GivesUp(t *testing.T) {
	calls := 0
	g, slept := fakeGemini(10, func([]string) ([][]float32, error) {
		calls++
		return nil, &googleapi.Error{Code: http.StatusServiceUnavailable}
	})

	_, err := g.EmbedTexts(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Equal(t, maxRetries+1, calls)
	assert.Len(t, *slept, maxRetries)

	var apiErr *googleapi.Error
	assert.True(t, errors.As(err, &apiErr))
}

func TestGeminiEmbedder_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	g, slept := fakeGemini(10, func([]string) ([][]float32, error) {
		calls++
		return nil, &googleapi.Error{Code: http.StatusBadRequest, Message: "bad input"}
	})

	_, err := g.EmbedTexts(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestGeminiEmbedder_RejectsEmptyVectors(t *testing.T) {
	g, _ := fakeGemini(10, func(texts []string) ([][]float32, error) {
		out := vectorsFor(texts)
		out[1] = nil
		return out, nil
	})

	_, err := g.EmbedTexts(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "empty embedding")
}

func TestGeminiEmbedder_RejectsCountMismatch(t *testing.T) {
	g, _ := fakeGemini(10, func(texts []string) ([][]float32, error) {
		return vectorsFor(texts[:1]), nil
	})

	_, err := g.EmbedTexts(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestGeminiEmbedder_CancelledContext(t *testing.T) {
	g, _ := fakeGemini(10, func(texts []string) ([][]float32, error) {
		return vectorsFor(texts), nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.EmbedTexts(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewGeminiEmbedder_NoKey(t *testing.T) {
	_, err := NewGeminiEmbedder(context.Background(), GeminiConfig{})
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, retryDelay(0))
	assert.Equal(t, 800*time.Millisecond, retryDelay(2))
	assert.Equal(t, 5*time.Second, retryDelay(10))
	assert.Equal(t, 200*time.Millisecond, retryDelay(-1))
}

func TestTransient(t *testing.T) {
	assert.True(t, transient(errors.New("connection reset")))
	assert.True(t, transient(&googleapi.Error{Code: 500}))
	assert.True(t, transient(&googleapi.Error{Code: 429}))
	assert.False(t, transient(&googleapi.Error{Code: 403}))
}

// ollamaServer fakes the two endpoints the embedder uses.
func ollamaServer(t *testing.T, installed string, embedCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/tags":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"models": []map[string]string{{"name": installed, "model": installed}},
			})
		case "/api/embed":
			embedCalls.Add(1)
			var req ollamaEmbedRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Model: req.Model, Embeddings: vectorsFor(req.Input)})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedder_Embeds(t *testing.T) {
	var calls atomic.Int32
	srv := ollamaServer(t, "all-minilm:latest", &calls)
	o := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL + "/", Model: "all-minilm", BatchSize: 2})

	vecs, err := o.EmbedTexts(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(3), vecs[2][0])
	assert.Equal(t, "ollama/all-minilm", o.Name())
	// warm-up plus two batches
	assert.EqualValues(t, 3, calls.Load())

	_, err = o.EmbedTexts(context.Background(), []string{"d"})
	require.NoError(t, err)
	assert.EqualValues(t, 4, calls.Load())
}

func TestOllamaEmbedder_MissingModel(t *testing.T) {
	var calls atomic.Int32
	srv := ollamaServer(t, "llama3:8b", &calls)
	o := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Model: "all-minilm"})

	_, err := o.EmbedTexts(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	assert.ErrorContains(t, err, "ollama pull all-minilm")

	_, err = o.EmbedTexts(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	assert.Zero(t, calls.Load())
}

func TestOllamaEmbedder_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	o := NewOllamaEmbedder(OllamaConfig{BaseURL: url, Timeout: time.Second})
	_, err := o.EmbedTexts(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
}

func TestHasModel(t *testing.T) {
	tags := ollamaTagsResponse{}
	tags.Models = append(tags.Models, struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	}{Name: "nomic-embed-text:latest"})

	assert.True(t, hasModel(tags, "nomic-embed-text"))
	assert.True(t, hasModel(tags, "nomic-embed-text:latest"))
	assert.False(t, hasModel(tags, "nomic"))
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.EmbedTexts(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)

	_, err = Unavailable{Reason: "no key"}.EmbedTexts(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	assert.ErrorContains(t, err, "no key")
	assert.Equal(t, "none", Unavailable{}.Name())
}

func TestNewEmbeddingProvider(t *testing.T) {
	ctx := context.Background()

	p, err := NewEmbeddingProvider(ctx, &config.Config{EmbedBackend: config.EmbedNone})
	require.NoError(t, err)
	assert.IsType(t, Unavailable{}, p)

	p, err = NewEmbeddingProvider(ctx, &config.Config{EmbedBackend: config.EmbedRemote})
	require.NoError(t, err)
	assert.IsType(t, Unavailable{}, p)

	p, err = NewEmbeddingProvider(ctx, &config.Config{EmbedBackend: config.EmbedLocal, LocalEmbedModel: "nomic-embed-text"})
	require.NoError(t, err)
	assert.Equal(t, "ollama/nomic-embed-text", p.Name())

	_, err = NewEmbeddingProvider(ctx, &config.Config{EmbedBackend: "word2vec"})
	assert.Error(t, err)
}

func TestNoLLM(t *testing.T) {
	_, err := NoLLM{}.Generate(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, ErrNoLLM)

	_, err = NewGeminiLLM(context.Background(), "", "gemini-1.5-flash")
	assert.ErrorIs(t, err, ErrNoLLM)
}
