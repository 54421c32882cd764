package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/markdave123-py/paperdex/internal/core"
)

// maxGeminiBatch is the API's limit on contents per BatchEmbedContents call.
const maxGeminiBatch = 100

// GeminiConfig configures the remote embedder.
type GeminiConfig struct {
	APIKey    string
	Model     string
	BatchSize int
	RPM       int
	Timeout   time.Duration
}

type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
	batchSize int
	timeout   time.Duration
	limiter   *rate.Limiter

	// embedBatch performs one API call; replaced in tests.
	embedBatch func(ctx context.Context, texts []string) ([][]float32, error)
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", core.ErrEmbeddingUnavailable)
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, err
	}
	g := newGeminiEmbedder(cfg)
	g.client = cl
	g.embedBatch = g.callAPI
	return g, nil
}

func newGeminiEmbedder(cfg GeminiConfig) *GeminiEmbedder {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > maxGeminiBatch {
		cfg.BatchSize = maxGeminiBatch
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RPM > 0 {
		limit = rate.Limit(float64(cfg.RPM) / 60)
	}
	return &GeminiEmbedder{
		modelName: cfg.Model,
		batchSize: cfg.BatchSize,
		timeout:   cfg.Timeout,
		limiter:   rate.NewLimiter(limit, 1),
		sleep:     sleepCtx,
	}
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiEmbedder) Name() string { return "gemini/" + g.modelName }

// EmbedTexts splits texts into batches, each one rate limited and retried on transient failures.
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += g.batchSize {
		end := min(start+g.batchSize, len(texts))
		vecs, err := g.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("gemini batch embed: got %d embeddings for %d texts", len(vecs), end-start)
		}
		for i, v := range vecs {
			if len(v) == 0 {
				return nil, fmt.Errorf("gemini batch embed: empty embedding for text %d", start+i)
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (g *GeminiEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		vecs, err := g.embedBatch(callCtx, texts)
		cancel()
		if err == nil {
			return vecs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !transient(err) {
			return nil, fmt.Errorf("gemini batch embed: %w", err)
		}
		lastErr = err
		if attempt < maxRetries {
			d := retryDelay(attempt)
			log.Printf("GeminiEmbedder: attempt %d failed, retrying in %s: %v", attempt+1, d, err)
			if err := g.sleep(ctx, d); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("gemini batch embed: giving up after %d attempts: %w", maxRetries+1, lastErr)
}

func (g *GeminiEmbedder) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	em := g.client.EmbeddingModel(g.modelName)

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		if e == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, e.Values)
	}
	return out, nil
}

// transient reports whether a failed call is worth repeating: rate limits,
// server errors, timeouts and transport failures. Other API errors are final.
func transient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return true
}

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)
