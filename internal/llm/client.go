package llm

import (
	"context"
	"errors"
)

var ErrEmbeddingsUnsupported = errors.New("embeddings not supported by this provider")

type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Every generation in this service expects a single JSON object back.
const jsonInstruction = "Respond with a single valid JSON object and nothing else."
