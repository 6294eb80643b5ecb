package fallback

import (
	"strings"

	"github.com/adalundhe/relay/core/providers"
)

// QualityVerifier decides whether a transport-level success is structurally
// usable. Implementations are pure functions: no I/O, boolean only.
type QualityVerifier interface {
	Check(agentKind string, resp *providers.Response) bool
}

// VerifierFunc adapts a function to QualityVerifier.
type VerifierFunc func(agentKind string, resp *providers.Response) bool

// Check implements QualityVerifier.
func (f VerifierFunc) Check(agentKind string, resp *providers.Response) bool {
	return f(agentKind, resp)
}

// BasicVerifier rejects empty and degenerate payloads and applies
// agent-kind structural checks.
type BasicVerifier struct {
	// MinLength is the minimum trimmed response length.
	MinLength int

	// CodeAgentKinds are agent kinds whose responses must contain a fenced
	// code block.
	CodeAgentKinds []string
}

// DefaultVerifier returns a verifier with production defaults.
func DefaultVerifier() *BasicVerifier {
	return &BasicVerifier{
		MinLength:      8,
		CodeAgentKinds: []string{"code", "engineer"},
	}
}

// Check implements QualityVerifier.
func (v *BasicVerifier) Check(agentKind string, resp *providers.Response) bool {
	if resp == nil {
		return false
	}

	text := strings.TrimSpace(resp.Text)
	if len(text) < v.MinLength {
		return false
	}

	if isDegenerate(text) {
		return false
	}

	if v.isCodeAgent(agentKind) && !strings.Contains(text, "```") {
		return false
	}

	return true
}

func (v *BasicVerifier) isCodeAgent(agentKind string) bool {
	for _, kind := range v.CodeAgentKinds {
		if kind == agentKind {
			return true
		}
	}
	return false
}

// isDegenerate reports whether the text is empty or a single rune repeated.
func isDegenerate(text string) bool {
	runes := []rune(text)
	if len(runes) == 0 {
		return true
	}
	for _, r := range runes[1:] {
		if r != runes[0] {
			return false
		}
	}
	return true
}
