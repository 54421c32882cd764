package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/markdave123-py/paperdex/internal/core"
	"github.com/markdave123-py/paperdex/internal/models"
)

const (
	defaultTopK = 5

	systemPrompt = "You are a research assistant answering only from the given paper excerpts. " +
		"Cite the paper title for each claim. If the excerpts do not contain the answer, say 'I cannot find this in the indexed papers.'"
)

// Answer is a generated reply plus the chunks it was grounded on.
type Answer struct {
	Text    string             `json:"answer"`
	Sources []models.SearchHit `json:"sources"`
}

// RetrievalService answers questions from the vector index.
type RetrievalService struct {
	store    core.IndexStore
	embedder core.EmbeddingProvider
	llm      core.LLMProvider
	topK     int
}

func NewRetrievalService(store core.IndexStore, emb core.EmbeddingProvider, llm core.LLMProvider) *RetrievalService {
	return &RetrievalService{store: store, embedder: emb, llm: llm, topK: defaultTopK}
}

// Ask embeds the question, retrieves the closest chunks (restricted to paperID when
// set) and asks the language model to answer from them.
func (s *RetrievalService) Ask(ctx context.Context, question, paperID string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("empty question")
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embed question: no vector returned")
	}

	hits, err := s.store.VectorSearch(ctx, vecs[0], s.topK, paperID)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(hits) == 0 {
		return &Answer{Text: "No indexed passages match this question."}, nil
	}

	var sb strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&sb, "[%s]\n%s\n---\n", h.Title, h.Record.Text)
	}
	userPrompt := fmt.Sprintf("Context:\n%s\nQuestion: %s", sb.String(), question)

	text, err := s.llm.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return &Answer{Text: text, Sources: hits}, nil
}
