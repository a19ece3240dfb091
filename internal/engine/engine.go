// Package engine provides the text generation backends used to rank
// candidate errors and summarise solutions.
package engine

import (
	"context"
	"errors"
)

// ErrNoGenerator is returned by Select when no backend is configured or
// reachable. Callers fall back to keyword ranking.
var ErrNoGenerator = errors.New("no text generator available")

// Generator turns a prompt into text. Implementations must be safe for
// concurrent use.
type Generator interface {
	// Generate returns the model's reply to prompt, capped at maxTokens.
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)

	// Name identifies the backend and model, e.g. "ollama/llama3.2".
	Name() string
}
