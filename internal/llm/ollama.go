package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	olla "github.com/ollama/ollama/api"
)

// Ollama is a Client backed by a local Ollama server.
type Ollama struct {
	client  *olla.Client
	model   string
	timeout time.Duration
}

// NewOllama creates a client for the server at baseURL.
func NewOllama(baseURL, model string, timeout time.Duration) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("llm: invalid ollama url: %w", err)
	}
	// Deadlines come from the request context; an http.Client timeout would
	// also cut long streamed replies.
	return &Ollama{client: olla.NewClient(u, &http.Client{}), model: model, timeout: timeout}, nil
}

// GenerateTitle implements Client.
func (o *Ollama) GenerateTitle(ctx context.Context, seed string) (string, error) {
	return generateTitle(ctx, o.complete, seed)
}

// StreamReply implements Client.
func (o *Ollama) StreamReply(ctx context.Context, prompt string) (*Stream, error) {
	stream := true
	req := &olla.GenerateRequest{Model: o.model, Prompt: prompt, Stream: &stream}
	return NewStream(ctx, o.timeout, func(ctx context.Context, emit EmitFunc) error {
		err := o.client.Generate(ctx, req, func(resp olla.GenerateResponse) error {
			return emit(resp.Response)
		})
		if err != nil {
			return fmt.Errorf("ollama stream: %w", err)
		}
		return nil
	}), nil
}

func (o *Ollama) complete(ctx context.Context, prompt string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	stream := false
	var out string
	err := o.client.Generate(ctx, &olla.GenerateRequest{Model: o.model, Prompt: prompt, Stream: &stream},
		func(resp olla.GenerateResponse) error {
			out += resp.Response
			return nil
		})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return out, nil
}
