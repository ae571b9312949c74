package tools

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nagyist/agentscope/sqlagent/agent"
	"github.com/nagyist/agentscope/sqlagent/sqlexec"
)

// QuerySQLite executes one SQL statement through the execution guard.
// The mutation policy is a bound argument: fixed at registration, never
// visible to the model, never overridable by model-supplied arguments.
type QuerySQLite struct {
	guard *sqlexec.Guard
	db    *sql.DB
}

func NewQuerySQLite(guard *sqlexec.Guard, db *sql.DB) *QuerySQLite {
	return &QuerySQLite{guard: guard, db: db}
}

// Descriptor returns the registry descriptor with allow_mutation bound to
// the given policy value.
func (t *QuerySQLite) Descriptor(allowMutation bool) agent.Descriptor {
	return agent.Descriptor{
		Name:        "query_sqlite",
		Description: "Execute a single SQL statement against the connected SQLite database and return the result rows.",
		Params: []agent.Param{
			{Name: "query", Type: "string", Required: true, Description: "The SQL statement to execute."},
			{Name: "allow_mutation", Type: "boolean", Required: false, Description: "Whether mutating statements are permitted."},
		},
		Bound:   map[string]any{"allow_mutation": allowMutation},
		Handler: t.run,
	}
}

func (t *QuerySQLite) run(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("query must be a non-empty string")
	}
	allow, _ := args["allow_mutation"].(bool)

	// The guard already speaks the result envelope; return it untouched
	// so policy violations surface with their own error kind.
	return t.guard.Execute(ctx, sqlexec.Handle{DB: t.db, MutationAllowed: allow}, query), nil
}
