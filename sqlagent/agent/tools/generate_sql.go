// Package tools provides the built-in tool descriptors the SQL agent
// registers: SQL generation and guarded execution.
package tools

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nagyist/agentscope/sqlagent/agent"
	ports "github.com/nagyist/agentscope/sqlagent/agent/ports"
	"github.com/nagyist/agentscope/sqlagent/nl2sql"
)

// GenerateSQLQuery turns a natural-language question into a SQL statement
// by building a natural-language-to-SQL prompt and asking the provider. The database
// handle and provider are fixed at construction; only the question is
// model-supplied.
type GenerateSQLQuery struct {
	builder  nl2sql.Builder
	provider ports.Provider
	db       *sql.DB
}

func NewGenerateSQLQuery(builder nl2sql.Builder, provider ports.Provider, db *sql.DB) *GenerateSQLQuery {
	return &GenerateSQLQuery{builder: builder, provider: provider, db: db}
}

// Descriptor returns the registry descriptor for this tool.
func (t *GenerateSQLQuery) Descriptor() agent.Descriptor {
	return agent.Descriptor{
		Name:        "generate_sql_query",
		Description: "Generate a SQLite SELECT statement answering a natural-language question about the connected database.",
		Params: []agent.Param{
			{Name: "question", Type: "string", Required: true, Description: "The natural-language question to translate into SQL."},
		},
		Handler: t.run,
	}
}

func (t *GenerateSQLQuery) run(ctx context.Context, args map[string]any) (any, error) {
	question, _ := args["question"].(string)
	if question == "" {
		return nil, fmt.Errorf("question must be a non-empty string")
	}

	prompt, err := t.builder.BuildPrompt(ctx, question, t.db)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	completion, err := t.provider.Complete(ctx, ports.PromptInput{
		Messages: []ports.PromptMessage{{Role: "user", Content: prompt}},
	}, ports.Options{Stop: []string{"\n\n"}})
	if err != nil {
		return nil, fmt.Errorf("generate sql: %w", err)
	}

	return nl2sql.NormalizeSQL(completion.Text), nil
}
