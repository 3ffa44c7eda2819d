package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Gemini is a Client backed by the Google Generative AI API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGemini creates a Gemini client for model. timeout bounds each call.
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("llm: gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, timeout: timeout}, nil
}

// Close releases the underlying connection.
func (g *Gemini) Close() error { return g.client.Close() }

// GenerateTitle implements Client.
func (g *Gemini) GenerateTitle(ctx context.Context, seed string) (string, error) {
	return generateTitle(ctx, g.complete, seed)
}

// StreamReply implements Client.
func (g *Gemini) StreamReply(ctx context.Context, prompt string) (*Stream, error) {
	m := g.client.GenerativeModel(g.model)
	return NewStream(ctx, g.timeout, func(ctx context.Context, emit EmitFunc) error {
		it := m.GenerateContentStream(ctx, genai.Text(prompt))
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("gemini stream: %w", err)
			}
			if err := emit(responseText(resp)); err != nil {
				return err
			}
		}
	}), nil
}

func (g *Gemini) complete(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := g.client.GenerativeModel(g.model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp), nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
