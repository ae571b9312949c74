package tools

import (
	"database/sql"

	"github.com/nagyist/agentscope/sqlagent/agent"
	ports "github.com/nagyist/agentscope/sqlagent/agent/ports"
	"github.com/nagyist/agentscope/sqlagent/nl2sql"
	"github.com/nagyist/agentscope/sqlagent/sqlexec"
)

// RegisterAll registers the built-in SQL agent tools on a registry.
// allowMutation becomes the bound mutation policy for query_sqlite.
func RegisterAll(reg *agent.Registry, builder nl2sql.Builder, provider ports.Provider, conn *sql.DB, allowMutation bool) error {
	if err := reg.Register(NewGenerateSQLQuery(builder, provider, conn).Descriptor()); err != nil {
		return err
	}
	return reg.Register(NewQuerySQLite(sqlexec.NewGuard(), conn).Descriptor(allowMutation))
}
