package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/markdave123-py/paperdex/internal/core"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "all-minilm"
)

// OllamaConfig configures the local embedder.
type OllamaConfig struct {
	BaseURL   string
	Model     string
	BatchSize int
	Timeout   time.Duration
}

// OllamaEmbedder embeds with a model served by a local Ollama runtime.
// The model is loaded once, on first use; if that fails every call reports
// core.ErrEmbeddingUnavailable.
type OllamaEmbedder struct {
	http      *resty.Client
	model     string
	batchSize int

	loadOnce sync.Once
	loadErr  error
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &OllamaEmbedder{http: client, model: cfg.Model, batchSize: cfg.BatchSize}
}

func (o *OllamaEmbedder) Name() string { return "ollama/" + o.model }

func (o *OllamaEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := o.load(ctx); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += o.batchSize {
		end := min(start+o.batchSize, len(texts))
		vecs, err := o.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// load checks the runtime is reachable and the model installed, then warms it up.
func (o *OllamaEmbedder) load(ctx context.Context) error {
	o.loadOnce.Do(func() {
		var tags ollamaTagsResponse
		resp, err := o.http.R().SetContext(ctx).SetResult(&tags).Get("/api/tags")
		if err != nil {
			o.loadErr = fmt.Errorf("%w: ollama unreachable: %v", core.ErrEmbeddingUnavailable, err)
			return
		}
		if resp.IsError() {
			o.loadErr = fmt.Errorf("%w: ollama tags: %s", core.ErrEmbeddingUnavailable, resp.Status())
			return
		}
		if !hasModel(tags, o.model) {
			o.loadErr = fmt.Errorf("%w: model %q not installed, run: ollama pull %s", core.ErrEmbeddingUnavailable, o.model, o.model)
			return
		}
		if _, err := o.embed(ctx, []string{"warmup"}); err != nil {
			o.loadErr = fmt.Errorf("%w: warm-up failed: %v", core.ErrEmbeddingUnavailable, err)
			return
		}
		log.Printf("OllamaEmbedder: model %s loaded", o.model)
	})
	return o.loadErr
}

func (o *OllamaEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out ollamaEmbedResponse
	resp, err := o.http.R().
		SetContext(ctx).
		SetBody(ollamaEmbedRequest{Model: o.model, Input: texts}).
		SetResult(&out).
		Post("/api/embed")
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("ollama embed: %s", resp.Status())
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d texts", len(out.Embeddings), len(texts))
	}
	for i, v := range out.Embeddings {
		if len(v) == 0 {
			return nil, fmt.Errorf("ollama embed: empty embedding for text %d", i)
		}
	}
	return out.Embeddings, nil
}

func hasModel(tags ollamaTagsResponse, model string) bool {
	for _, m := range tags.Models {
		for _, name := range []string{m.Name, m.Model} {
			if name == model || strings.HasPrefix(name, model+":") {
				return true
			}
		}
	}
	return false
}

var _ core.EmbeddingProvider = (*OllamaEmbedder)(nil)
