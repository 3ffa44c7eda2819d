package llm

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func TestResponseText(t *testing.T) {
	if got := responseText(nil); got != "" {
		t.Fatalf("nil response = %q", got)
	}
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []genai.Part{genai.Text("Block"), genai.Blob{MIMEType: "image/png"}, genai.Text("chain")}}},
		{Content: &genai.Content{Parts: []genai.Part{genai.Text("ignored")}}},
	}}
	if got := responseText(resp); got != "Blockchain" {
		t.Fatalf("responseText = %q", got)
	}
	if got := responseText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}); got != "" {
		t.Fatalf("candidate without content = %q", got)
	}
}

func TestNewGemini_RequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), "  ", "gemini-2.5-flash", 0); err == nil {
		t.Fatal("expected error for blank api key")
	}
}
