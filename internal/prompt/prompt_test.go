package prompt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestAssemble_Layout(t *testing.T) {
	history := []Turn{
		{Role: "user", Content: "Explain blockchain simply"},
		{Role: "assistant", Content: "A shared ledger."},
		{Role: "user", Content: "And mining?"},
	}
	knowledge := FormatKnowledge([]Source{{Title: "notes.txt", Content: "Blocks are chained."}})

	got := Assemble(history, knowledge, Chat)
	want := "You are a helpful assistant. Keep responses clear and concise.\n\n" +
		"Knowledge:\nDOCUMENT: notes.txt\nBlocks are chained.\n\n" +
		"Conversation:\n" +
		"User: Explain blockchain simply\n" +
		"Assistant: A shared ledger.\n" +
		"User: And mining?\n" +
		"\nAssistant:"
	if got != want {
		t.Fatalf("Assemble mismatch:\nwant:\n%q\ngot:\n%q", want, got)
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	history := []Turn{{Role: "user", Content: "hi"}, {Role: "SYSTEM", Content: "x"}}
	a := Assemble(history, "k", CodeAssistant)
	for i := 0; i < 50; i++ {
		if b := Assemble(history, "k", CodeAssistant); b != a {
			t.Fatalf("output changed between calls:\n%q\n%q", a, b)
		}
	}
	if !strings.HasPrefix(a, "You are a senior programming assistant.") {
		t.Fatalf("code mode should use the programming preamble: %q", a)
	}
	if !strings.Contains(a, "\nSystem: x\n") {
		t.Fatalf("role labels should be capitalized: %q", a)
	}
}

func TestAssemble_EmptyInputs(t *testing.T) {
	got := Assemble(nil, "", Chat)
	want := chatInstruction + "\n\nKnowledge:\n\n\nConversation:\n\nAssistant:"
	if got != want {
		t.Fatalf("empty assemble = %q; want %q", got, want)
	}
}

func TestFormatKnowledge(t *testing.T) {
	if FormatKnowledge(nil) != "" {
		t.Fatalf("no sources should format to empty string")
	}
	got := FormatKnowledge([]Source{{Title: "a", Content: "1"}, {Title: "b", Content: "2"}})
	if got != "DOCUMENT: a\n1\n\nDOCUMENT: b\n2" {
		t.Fatalf("FormatKnowledge = %q", got)
	}
}

func TestRoleLabel(t *testing.T) {
	cases := map[string]string{"user": "User", "ASSISTANT": "Assistant", "": "User", " tool ": "Tool"}
	for in, want := range cases {
		if got := RoleLabel(in); got != want {
			t.Fatalf("RoleLabel(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestParseMode(t *testing.T) {
	for _, in := range []string{"", "chat", " Chat "} {
		if m, err := ParseMode(in); err != nil || m != Chat {
			t.Fatalf("ParseMode(%q) = %v, %v", in, m, err)
		}
	}
	for _, in := range []string{"code", "Code Assistant", "code_assistant", "CODE-ASSISTANT"} {
		if m, err := ParseMode(in); err != nil || m != CodeAssistant {
			t.Fatalf("ParseMode(%q) = %v, %v", in, m, err)
		}
	}
	if _, err := ParseMode("poet"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestMode_JSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(struct{ M Mode }{CodeAssistant})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"M":"Code Assistant"}` {
		t.Fatalf("marshal = %s", b)
	}
	var out struct{ M Mode }
	if err := json.Unmarshal(b, &out); err != nil || out.M != CodeAssistant {
		t.Fatalf("unmarshal = %+v, %v", out, err)
	}
	if err := json.Unmarshal([]byte(`{"M":"poet"}`), &out); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
