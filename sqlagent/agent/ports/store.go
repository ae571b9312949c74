package agentports

import (
	"context"
	"time"
)

// Turn represents one persisted conversational exchange.
type Turn struct {
	Role      string    // "user" | "assistant" | "system"
	Name      string    // optional label (tool name for observations)
	Content   string    // text or JSON string (for decisions and tool outputs)
	CreatedAt time.Time // server-side timestamp
}

// ConversationStore persists conversation turns and tool artifacts for
// auditing. The in-memory conversation owned by the loop stays
// authoritative; store failures must never abort a turn.
type ConversationStore interface {
	SaveTurn(ctx context.Context, conversationID string, turn Turn) error
	LoadContext(ctx context.Context, conversationID string, k int) ([]Turn, error) // last-k turns, oldest first
	AppendToolArtifact(ctx context.Context, conversationID, name string, payload []byte) error
}
