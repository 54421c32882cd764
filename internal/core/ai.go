package core

import "context"

// EmbeddingProvider turns texts into vectors, one per text, in input order.
// Callers depend only on this interface, never on the active variant.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// Name identifies the model; vectors from different names never share a collection.
	Name() string
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
