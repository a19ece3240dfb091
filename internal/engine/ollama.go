package engine

import (
	"context"
	"io"

	"github.com/kalambet/fixhive/internal/ollama"
)

// DefaultOllamaModel is used when no model is configured.
const DefaultOllamaModel = "llama3.2"

// OllamaGenerator adapts the internal/ollama.Client to the Generator interface.
type OllamaGenerator struct {
	client *ollama.Client
	model  string
}

// NewOllamaGenerator creates an OllamaGenerator backed by an Ollama server at baseURL.
func NewOllamaGenerator(baseURL, model string) *OllamaGenerator {
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaGenerator{client: ollama.New(baseURL), model: model}
}

// Generate runs at temperature 0 so the same candidates rank the same way
// on every search.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	temp := 0.0
	return g.client.Chat(ctx, g.model, []ollama.Message{
		{Role: "user", Content: prompt},
	}, ollama.ChatOptions{MaxTokens: maxTokens, Temperature: &temp})
}

func (g *OllamaGenerator) Name() string { return "ollama/" + g.model }

// IsRunning reports whether the Ollama server is reachable.
func (g *OllamaGenerator) IsRunning(ctx context.Context) bool {
	return g.client.IsRunning(ctx)
}

// EnsureReady pulls and warms the configured model, writing progress to w.
func (g *OllamaGenerator) EnsureReady(ctx context.Context, w io.Writer) error {
	return ollama.EnsureReady(ctx, g.client, g.model, w)
}
