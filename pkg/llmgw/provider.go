// Package llmgw is the narrow boundary between the pipeline stages and
// whatever LLM actually answers a batch request. Stages never import a
// provider package directly; they depend only on the Provider interface
// declared here, so swapping anthropic for a dry-run mock is a config
// change, not a code change.
package llmgw

import (
	"context"
	"time"
)

// Message is one turn in a chat-style request.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// ChatRequest is one call to a provider: a system prompt describing the
// task and schema, plus the conversation so far.
type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// ChatResponse is a provider's raw answer plus token accounting. Text is
// expected to contain a JSON array or object; callers extract it with
// ExtractJSON rather than assuming the provider returns bare JSON.
type ChatResponse struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// Provider is the capability the core depends on: send messages under a
// model/temperature/token budget, get back text and usage. Concrete
// providers (anthropic, mock) are plug-ins; nothing above this interface
// knows which one is in use.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
