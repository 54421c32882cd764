package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/paperdex/internal/core"
)

// ErrNoLLM is returned by NoLLM, the generator used when no API key is configured.
var ErrNoLLM = errors.New("no language model configured")

// answerTemperature is the sampling temperature for answers.
const answerTemperature = 0.2

// GeminiLLM writes answers over retrieved paper passages.
type GeminiLLM struct {
	client    *genai.Client
	modelName string

	generate func(ctx context.Context, systemPrompt, userPrompt string) (*genai.GenerateContentResponse, error)
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrNoLLM)
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	g := &GeminiLLM{client: cl, modelName: modelName, sleep: sleepCtx}
	g.generate = g.generateContent
	return g, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Generate asks the model once, repeating the call on rate limits and server errors.
func (g *GeminiLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := g.generate(ctx, systemPrompt, userPrompt)
		if err == nil {
			return answerText(resp)
		}
		lastErr = err
		if !transient(err) {
			break
		}
		if attempt < maxRetries {
			if err := g.sleep(ctx, retryDelay(attempt)); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("gemini generate: %w", lastErr)
}

func (g *GeminiLLM) generateContent(ctx context.Context, systemPrompt, userPrompt string) (*genai.GenerateContentResponse, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(answerTemperature)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}
	return m.GenerateContent(ctx, genai.Text(userPrompt))
}

// answerText joins the text parts of the first candidate.
// A response without any text, such as a blocked prompt, is an error.
func answerText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		if resp != nil && resp.PromptFeedback != nil {
			return "", fmt.Errorf("gemini returned no answer: prompt blocked (%v)", resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("gemini returned no answer")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("gemini returned no answer (finish reason %v)", resp.Candidates[0].FinishReason)
	}
	return text, nil
}

// NoLLM answers every prompt with ErrNoLLM.
type NoLLM struct{}

func (NoLLM) Generate(context.Context, string, string) (string, error) {
	return "", ErrNoLLM
}

var (
	_ core.LLMProvider = (*GeminiLLM)(nil)
	_ core.LLMProvider = NoLLM{}
)
