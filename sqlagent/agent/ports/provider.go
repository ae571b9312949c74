package agentports

import (
	"context"
)

// PromptMessage is a single chat message used to build prompts.
type PromptMessage struct {
	Role    string // "system", "user", "assistant"
	Name    string // optional label, e.g. originating tool for observations
	Content string
}

// PromptInput aggregates everything the provider needs to produce a completion.
type PromptInput struct {
	System   string            // system instructions, includes the decision format contract
	Messages []PromptMessage   // ordered conversation history
	Tools    []ToolSpec        // tool declarations available to the model
	Meta     map[string]string // lightweight metadata for tracing/caching keys
}

// Options controls sampling and limits for a single provider call.
type Options struct {
	MaxNewTokens int
	Temperature  float32
	TopP         float32
	Seed         int
	Stop         []string
}

// Completion is the provider's response.
type Completion struct {
	Text string
	Raw  any // raw provider payload for debugging/telemetry
}

// Provider is the abstraction for all LLM backends. Inference is opaque:
// an ordered list of role-tagged messages in, a text completion out.
// Retries for malformed output belong to the orchestrator, not here.
type Provider interface {
	Complete(ctx context.Context, in PromptInput, opts Options) (Completion, error)
}
