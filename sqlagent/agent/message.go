package agent

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	ports "github.com/nagyist/agentscope/sqlagent/agent/ports"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one immutable entry in a conversation. Ordering is the sole
// conversation invariant: the sequence is append-only and insertion order
// is meaning.
type Message struct {
	Role      string    `json:"role"`
	Name      string    `json:"name,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is the message sequence for one session. One loop instance
// owns one conversation; instances share no mutable state.
type Conversation struct {
	ID       string
	Messages []Message
}

// NewConversation creates an empty conversation with a fresh ID.
func NewConversation() *Conversation {
	return &Conversation{ID: uuid.NewString()}
}

// Append adds a message and returns it. Messages are never mutated or
// reordered after this point.
func (c *Conversation) Append(role, name, content string) Message {
	m := Message{Role: role, Name: name, Content: content, CreatedAt: time.Now()}
	c.Messages = append(c.Messages, m)
	return m
}

// PromptMessages projects the conversation into provider wire messages.
func (c *Conversation) PromptMessages() []ports.PromptMessage {
	out := make([]ports.PromptMessage, 0, len(c.Messages))
	for _, m := range c.Messages {
		out = append(out, ports.PromptMessage{Role: m.Role, Name: m.Name, Content: m.Content})
	}
	return out
}

// Decision is the parsed output of one reasoning phase. An empty Calls
// sequence signals termination.
type Decision struct {
	Thought string           `json:"thought"`
	Speak   string           `json:"speak"`
	Calls   []ports.ToolCall `json:"function"`
}

// Encode renders the decision back to canonical JSON for appending to the
// conversation as the assistant message.
func (d Decision) Encode() string {
	b, err := json.Marshal(d)
	if err != nil {
		return d.Speak
	}
	return string(b)
}
