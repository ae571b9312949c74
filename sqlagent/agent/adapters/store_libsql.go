// Package adapters provides concrete implementations of the agent ports.
package adapters

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	ports "github.com/nagyist/agentscope/sqlagent/agent/ports"
)

// LibSQLConversationStore persists turns to the conversation_turns table
// created by the db package migrations.
type LibSQLConversationStore struct {
	db *sql.DB
}

func NewLibSQLConversationStore(db *sql.DB) *LibSQLConversationStore {
	return &LibSQLConversationStore{db: db}
}

// SaveTurn appends one turn.
func (s *LibSQLConversationStore) SaveTurn(ctx context.Context, conversationID string, turn ports.Turn) error {
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_turns (id, conversation_id, role, name, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), conversationID, turn.Role, turn.Name, turn.Content, createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

// LoadContext returns the last k turns in chronological order. k <= 0
// loads the whole conversation.
func (s *LibSQLConversationStore) LoadContext(ctx context.Context, conversationID string, k int) ([]ports.Turn, error) {
	query := `
		SELECT role, name, content, created_at FROM (
			SELECT role, name, content, created_at, rowid
			FROM conversation_turns
			WHERE conversation_id = ?
			ORDER BY rowid DESC
			LIMIT ?
		) ORDER BY rowid ASC`
	limit := k
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}
	defer rows.Close()

	var turns []ports.Turn
	for rows.Next() {
		var t ports.Turn
		var createdAt string
		if err := rows.Scan(&t.Role, &t.Name, &t.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if parsed, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			t.CreatedAt = parsed
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

// AppendToolArtifact records a tool observation as a system turn labeled
// with the tool name.
func (s *LibSQLConversationStore) AppendToolArtifact(ctx context.Context, conversationID, name string, payload []byte) error {
	return s.SaveTurn(ctx, conversationID, ports.Turn{
		Role:      "system",
		Name:      name,
		Content:   string(payload),
		CreatedAt: time.Now(),
	})
}

var _ ports.ConversationStore = (*LibSQLConversationStore)(nil)
