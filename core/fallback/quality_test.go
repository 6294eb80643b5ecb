package fallback

import (
	"testing"

	"github.com/adalundhe/relay/core/providers"
)

func TestBasicVerifier_Check(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		agentKind string
		resp      *providers.Response
		want      bool
	}{
		{
			name:      "nil response is rejected",
			agentKind: "chat",
			resp:      nil,
			want:      false,
		},
		{
			name:      "empty text is rejected",
			agentKind: "chat",
			resp:      &providers.Response{Text: ""},
			want:      false,
		},
		{
			name:      "whitespace only is rejected",
			agentKind: "chat",
			resp:      &providers.Response{Text: "   \n\t  "},
			want:      false,
		},
		{
			name:      "too short is rejected",
			agentKind: "chat",
			resp:      &providers.Response{Text: "ok"},
			want:      false,
		},
		{
			name:      "repeated single rune is rejected",
			agentKind: "chat",
			resp:      &providers.Response{Text: "aaaaaaaaaaaaaaaa"},
			want:      false,
		},
		{
			name:      "normal prose is accepted",
			agentKind: "chat",
			resp:      &providers.Response{Text: "The capital of France is Paris."},
			want:      true,
		},
		{
			name:      "code agent without a code block is rejected",
			agentKind: "code",
			resp:      &providers.Response{Text: "Here is the function you asked for."},
			want:      false,
		},
		{
			name:      "code agent with a fenced block is accepted",
			agentKind: "code",
			resp:      &providers.Response{Text: "Here you go:\n```go\nfunc main() {}\n```"},
			want:      true,
		},
		{
			name:      "engineer agent requires a code block",
			agentKind: "engineer",
			resp:      &providers.Response{Text: "I would restructure the package."},
			want:      false,
		},
		{
			name:      "non-code agent needs no code block",
			agentKind: "summarizer",
			resp:      &providers.Response{Text: "A short summary of the document."},
			want:      true,
		},
	}

	v := DefaultVerifier()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := v.Check(tc.agentKind, tc.resp); got != tc.want {
				t.Errorf("Check(%q) = %v, want %v", tc.agentKind, got, tc.want)
			}
		})
	}
}

func TestBasicVerifier_ZeroValueRejectsEmptyText(t *testing.T) {
	t.Parallel()

	// MinLength 0 means the length gate passes empty text through; the
	// degenerate-payload check must still reject it without panicking.
	v := &BasicVerifier{}

	if v.Check("chat", &providers.Response{Text: ""}) {
		t.Error("empty text should be rejected")
	}
	if v.Check("chat", &providers.Response{Text: "   \n "}) {
		t.Error("whitespace-only text should be rejected")
	}
	if !v.Check("chat", &providers.Response{Text: "ok"}) {
		t.Error("short but real text should pass with no minimum length")
	}
}

func TestVerifierFunc(t *testing.T) {
	t.Parallel()

	calls := 0
	v := VerifierFunc(func(agentKind string, resp *providers.Response) bool {
		calls++
		return agentKind == "chat"
	})

	if !v.Check("chat", &providers.Response{Text: "hi"}) {
		t.Error("adapter should pass through the function result")
	}
	if v.Check("code", nil) {
		t.Error("adapter should pass through the function result")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
