// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// LLMService provides chat completion for answer generation and the
// rerank judge.
//
// Implementations may include:
//   - OpenAI (GPT-4.1, GPT-4o)
//   - Anthropic (Claude)
//   - Ollama (local models)
type LLMService interface {
	// Chat conducts a conversation and returns the assistant reply.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate. Zero uses the
	// provider default.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic). Nil uses the
	// provider default; a pointer keeps an explicit 0 distinguishable.
	Temperature *float64

	// JSON asks for a single JSON object reply. Providers without a
	// structured output mode ignore it, so callers still parse leniently.
	JSON bool
}

// Temperature returns a ChatOptions temperature value.
func Temperature(v float64) *float64 {
	return &v
}
