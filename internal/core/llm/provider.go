package llm

import (
	"context"
	"fmt"
	"log"

	"github.com/markdave123-py/paperdex/internal/config"
	"github.com/markdave123-py/paperdex/internal/core"
)

// Unavailable is the provider used when no embedding backend can run.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Name() string { return "none" }

func (u Unavailable) EmbedTexts(context.Context, []string) ([][]float32, error) {
	if u.Reason == "" {
		return nil, core.ErrEmbeddingUnavailable
	}
	return nil, fmt.Errorf("%w: %s", core.ErrEmbeddingUnavailable, u.Reason)
}

var _ core.EmbeddingProvider = Unavailable{}

// NewEmbeddingProvider picks the embedding variant once, from configuration.
func NewEmbeddingProvider(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, error) {
	switch cfg.EmbedBackend {
	case config.EmbedRemote:
		if cfg.AIAPIKey == "" {
			log.Println("Embedder: remote backend selected without GEMINI_API_KEY, embeddings disabled")
			return Unavailable{Reason: "GEMINI_API_KEY is not set"}, nil
		}
		g, err := NewGeminiEmbedder(ctx, GeminiConfig{
			APIKey:    cfg.AIAPIKey,
			Model:     cfg.EmbedModel,
			BatchSize: cfg.EmbedBatchSize,
			RPM:       cfg.EmbedRPM,
			Timeout:   cfg.EmbedTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
		}
		log.Printf("Embedder: using %s", g.Name())
		return g, nil
	case config.EmbedLocal:
		o := NewOllamaEmbedder(OllamaConfig{
			BaseURL:   cfg.OllamaURL,
			Model:     cfg.LocalEmbedModel,
			BatchSize: cfg.EmbedBatchSize,
			Timeout:   cfg.EmbedTimeout,
		})
		log.Printf("Embedder: using %s (loaded on first use)", o.Name())
		return o, nil
	case config.EmbedNone:
		return Unavailable{Reason: "EMBED_BACKEND=none"}, nil
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.EmbedBackend)
	}
}
