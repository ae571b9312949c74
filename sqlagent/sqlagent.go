package sqlagent

// Application-wide defaults referenced by config and db.
const (
	DefaultAppName = "sqlagent"

	DefaultConfigPath   = "/etc/sqlagent"
	DefaultDatabaseDir  = "data"
	DefaultDatabasePath = "data/sqlagent.db"
)
