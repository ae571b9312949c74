// Package sqlexec executes single SQL statements behind a mutation policy.
// Classification happens before any statement reaches the connection, so
// read-only access is enforced by policy, not by trust in the caller.
package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	ports "github.com/nagyist/agentscope/sqlagent/agent/ports"
)

// Handle couples a connection with the per-call mutation policy. The flag
// is supplied by the caller per call, not stored on the connection, so the
// same connection can serve read-only and explicitly permitted steps.
type Handle struct {
	DB              *sql.DB
	MutationAllowed bool
}

// QueryResult is the normalized payload for read queries: an ordered
// sequence of row tuples. An empty Rows slice is a valid success.
type QueryResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// ExecResult is the normalized payload for permitted mutations.
type ExecResult struct {
	RowsAffected int64 `json:"rows_affected"`
}

// mutating lists statement verbs that alter data or schema. PRAGMA,
// ATTACH and friends are included: the policy errs toward refusal.
var mutating = map[string]bool{
	"INSERT":  true,
	"UPDATE":  true,
	"DELETE":  true,
	"REPLACE": true,
	"DROP":    true,
	"ALTER":   true,
	"CREATE":  true,
	"PRAGMA":  true,
	"ATTACH":  true,
	"DETACH":  true,
	"VACUUM":  true,
	"REINDEX": true,
}

// Guard executes one statement per call and normalizes every outcome into
// the ExecutionResult envelope. It owns the policy decision, not the
// connection lifetime.
type Guard struct{}

func NewGuard() *Guard { return &Guard{} }

// Execute classifies, policy-checks, then runs the statement. Faults never
// raise past this boundary.
func (g *Guard) Execute(ctx context.Context, h Handle, query string) ports.ExecutionResult {
	verb := Classify(query)
	if verb == "" {
		return ports.Failure(ports.ErrKindExecutionFault, "empty statement")
	}

	if mutating[verb] {
		if !h.MutationAllowed {
			// Refused before the statement reaches the connection.
			return ports.Failuref(ports.ErrKindPolicyViolation,
				"statement %s is mutating and mutation_allowed is false", verb)
		}
		return g.executeMutation(ctx, h.DB, query)
	}
	return g.executeQuery(ctx, h.DB, query)
}

// executeQuery collects all rows as ordered tuples. Rows are released on
// every exit path. No implicit transaction is opened for reads.
func (g *Guard) executeQuery(ctx context.Context, db *sql.DB, query string) ports.ExecutionResult {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return engineFailure(ctx, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return engineFailure(ctx, err)
	}

	result := QueryResult{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		scan := make([]any, len(columns))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return engineFailure(ctx, err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return engineFailure(ctx, err)
	}
	return ports.Success(result)
}

// executeMutation runs a permitted mutation inside an explicit
// transaction; reads never get an implicit commit.
func (g *Guard) executeMutation(ctx context.Context, db *sql.DB, query string) ports.ExecutionResult {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return engineFailure(ctx, err)
	}

	res, err := tx.ExecContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return engineFailure(ctx, err)
	}
	if err := tx.Commit(); err != nil {
		return engineFailure(ctx, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		affected = -1
	}
	return ports.Success(ExecResult{RowsAffected: affected})
}

func engineFailure(ctx context.Context, err error) ports.ExecutionResult {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ports.Failuref(ports.ErrKindTimeout, "statement timed out: %v", err)
	}
	return ports.Failuref(ports.ErrKindExecutionFault, "%v", err)
}

// Classify returns the statement's top-level verb, upper-cased.
// Leading whitespace and SQL comments are skipped; a WITH prefix is
// resolved to the verb after the CTE body so mutating CTEs classify as
// mutations.
func Classify(query string) string {
	s := stripLeading(query)
	verb := leadingWord(s)
	if verb != "WITH" {
		return verb
	}

	// Scan past the CTE definitions: the top-level verb follows the last
	// closing parenthesis at depth zero before a non-separator token.
	depth := 0
	i := len("WITH")
	for i < len(s) {
		switch {
		case s[i] == '(':
			depth++
			i++
		case s[i] == ')':
			depth--
			i++
		case depth == 0 && isWordStart(s[i]):
			word := strings.ToUpper(leadingWord(s[i:]))
			switch word {
			case "RECURSIVE", "AS", "NOT", "MATERIALIZED":
				i += len(word)
			default:
				if isIdentifierLike(s, i, word) {
					i += len(word)
					continue
				}
				return word
			}
		default:
			i++
		}
	}
	return "WITH"
}

// isIdentifierLike reports whether the word at offset i names a CTE (it is
// followed, ignoring whitespace, by an opening paren, comma, or the AS
// keyword as a whole word).
func isIdentifierLike(s string, i int, word string) bool {
	j := i + len(word)
	for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
		j++
	}
	if j >= len(s) {
		return false
	}
	if s[j] == '(' || s[j] == ',' {
		return true
	}
	if j+1 < len(s) && (s[j] == 'A' || s[j] == 'a') && (s[j+1] == 'S' || s[j+1] == 's') {
		// AS must end the word; a table named "assets" is not the keyword.
		return j+2 >= len(s) || !isWordByte(s[j+2])
	}
	return false
}

// stripLeading removes whitespace and comments before the first token.
func stripLeading(s string) string {
	for {
		s = strings.TrimLeft(s, " \t\r\n;")
		switch {
		case strings.HasPrefix(s, "--"):
			if idx := strings.IndexByte(s, '\n'); idx >= 0 {
				s = s[idx+1:]
			} else {
				return ""
			}
		case strings.HasPrefix(s, "/*"):
			if idx := strings.Index(s, "*/"); idx >= 0 {
				s = s[idx+2:]
			} else {
				return ""
			}
		default:
			return s
		}
	}
}

func leadingWord(s string) string {
	end := 0
	for end < len(s) && isWordByte(s[end]) {
		end++
	}
	return strings.ToUpper(s[:end])
}

func isWordStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}

func isWordByte(b byte) bool {
	return isWordStart(b) || (b >= '0' && b <= '9')
}
