package llm

import (
	"context"
	"fmt"
)

// Generator is the generation collaborator contract the evaluation core
// consumes: rendered prompt in, output text out. Failures surface as
// *GenerationError; the core never retries them.
type Generator interface {
	Generate(ctx context.Context, prompt, model string) (*Generation, error)
}

// Provider abstracts a single text-generation backend (OpenAI, Anthropic,
// Ollama).
type Provider interface {
	Generate(ctx context.Context, prompt, model string) (*Generation, error)
	Name() string
	Models() []string
}

// Generation is the result of one generation call.
type Generation struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Output       string  `json:"output"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	LatencyMs    int64   `json:"latency_ms"`
}

// GenerationError wraps any provider failure (network error, timeout,
// malformed response). It is non-fatal to a batch: sibling pairs proceed.
type GenerationError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("generation failed: %s", e.Reason)
	}
	return fmt.Sprintf("generation failed (%s): %s", e.Provider, e.Reason)
}

func (e *GenerationError) Unwrap() error { return e.Err }
