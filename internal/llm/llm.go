// Package llm talks to the completion provider. It exposes two calls: a
// one-shot title completion and a streamed reply delivered as ordered text
// fragments. Providers are Gemini and Ollama; neither retries.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tbourn/smartlang-chat/internal/config"
)

// ErrEmptyCompletion is returned when the provider answered with no text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Client is the completion service used by the session controller.
type Client interface {
	// GenerateTitle returns a cleaned conversation title for seed.
	GenerateTitle(ctx context.Context, seed string) (string, error)
	// StreamReply starts a streamed completion of prompt. The caller must
	// Close the returned stream.
	StreamReply(ctx context.Context, prompt string) (*Stream, error)
}

// New builds the provider selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "gemini", "":
		return NewGemini(ctx, cfg.APIKey, cfg.GeminiModel, cfg.Timeout)
	case "ollama":
		return NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.Timeout)
	}
	return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
}

// completeFunc performs one blocking completion.
type completeFunc func(ctx context.Context, prompt string) (string, error)

// generateTitle runs the title prompt through complete and cleans the answer.
func generateTitle(ctx context.Context, complete completeFunc, seed string) (string, error) {
	raw, err := complete(ctx, TitlePrompt(seed))
	if err != nil {
		return "", err
	}
	title := CleanTitle(raw)
	if title == "" {
		return "", ErrEmptyCompletion
	}
	return title, nil
}
