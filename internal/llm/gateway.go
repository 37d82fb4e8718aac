package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/promptlab/promptlab/internal/config"
)

// Gateway routes a model identifier to the provider that serves it. Retry
// here is transport-level plumbing; the evaluation core above it treats any
// error that escapes as final.
type Gateway struct {
	providers       map[string]Provider
	defaultProvider string
	maxRetries      int
}

func NewGateway(cfg config.LLMConfig) *Gateway {
	g := &Gateway{
		providers:       make(map[string]Provider),
		defaultProvider: cfg.DefaultProvider,
		maxRetries:      cfg.MaxRetries,
	}

	if cfg.OpenAIKey != "" {
		g.providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey)
	}
	if cfg.AnthropicKey != "" {
		g.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}
	if cfg.OllamaURL != "" {
		g.providers["ollama"] = NewOllamaProvider(cfg.OllamaURL)
	}

	return g
}

func (g *Gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *Gateway) Generate(ctx context.Context, prompt, model string) (*Generation, error) {
	providerName := g.providerFor(model)

	p, err := g.Provider(providerName)
	if err != nil {
		return nil, &GenerationError{Reason: err.Error(), Err: err}
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, &GenerationError{Provider: providerName, Reason: ctx.Err().Error(), Err: ctx.Err()}
			case <-time.After(backoff):
			}
			slog.Debug("retrying generation", "provider", providerName, "model", model, "attempt", attempt)
		}

		gen, err := p.Generate(ctx, prompt, model)
		if err == nil {
			return gen, nil
		}
		lastErr = err
	}
	return nil, &GenerationError{Provider: providerName, Reason: lastErr.Error(), Err: lastErr}
}

// providerFor picks a provider by model name: an exact match in a
// provider's advertised list wins, then a prefix heuristic, then the
// configured default.
func (g *Gateway) providerFor(model string) string {
	for name, p := range g.providers {
		for _, m := range p.Models() {
			if m == model {
				return name
			}
		}
	}
	switch {
	case strings.HasPrefix(model, "claude"):
		return "anthropic"
	case strings.HasPrefix(model, "gpt") || strings.HasPrefix(model, "o1"):
		return "openai"
	}
	return g.defaultProvider
}

func (g *Gateway) ListModels() []ModelInfo {
	var models []ModelInfo
	for _, p := range g.providers {
		for _, m := range p.Models() {
			models = append(models, ModelInfo{Provider: p.Name(), Model: m})
		}
	}
	return models
}

// ModelInfo describes an available model.
type ModelInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}
