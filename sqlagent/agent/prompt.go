package agent

import (
	"strings"

	ports "github.com/nagyist/agentscope/sqlagent/agent/ports"
)

// SystemPrompt is the default contract presented to the model: respond
// with a single decision object, request tools by name, stop calling
// tools to finish.
const SystemPrompt = `You are an assistant that answers natural-language questions against a SQL database.

Respond with exactly one JSON object of the form:
{"thought": "<your reasoning>", "speak": "<message for the user>", "function": [{"name": "<tool>", "arguments": {<flat primitive values>}}]}

Request tools only from the declared list, with the declared arguments.
Tool results arrive as system observations. When you can answer directly,
return an empty "function" array and put the answer in "speak".`

// correctiveObservation is appended when model output cannot be parsed,
// so the model can repair its next attempt.
const correctiveObservation = `Your last output could not be parsed. Reply with a single JSON object: {"thought": string, "speak": string, "function": [{"name": string, "arguments": object of primitive values}]}. Do not add text outside the JSON object.`

// PromptBuilder assembles model-ready inputs from system text, the
// conversation, and tool schema summaries.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder { return &PromptBuilder{} }

// Build flattens system + chat messages into a Provider PromptInput.
// Deterministic for identical inputs so loop behavior stays testable.
func (b *PromptBuilder) Build(system string, messages []ports.PromptMessage, toolSpecs []ports.ToolSpec, meta map[string]string) ports.PromptInput {
	// Normalize newlines and trim whitespace to reduce prompt diffs for caching
	norm := func(s string) string { return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n")) }

	for i := range messages {
		messages[i].Content = norm(messages[i].Content)
	}

	return ports.PromptInput{
		System:   norm(system),
		Messages: messages,
		Tools:    toolSpecs,
		Meta:     meta,
	}
}
