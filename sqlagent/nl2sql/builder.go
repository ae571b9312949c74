// Package nl2sql builds prompts that turn natural-language questions into
// SQL. The builder is deterministic for identical (question, schema)
// pairs so the loop's behavior stays testable.
package nl2sql

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// Builder is the interface the agent consumes. Failures surface as
// tool-level failures, never as a crash of the orchestrator.
type Builder interface {
	BuildPrompt(ctx context.Context, question string, db *sql.DB) (string, error)
}

// Example is one few-shot question/SQL pair.
type Example struct {
	Question string
	SQL      string
}

// Budget caps the prompt space given to schema text and examples.
type Budget struct {
	MaxExampleTokens int // hard cap for few-shot examples
	MaxExamples      int // safety bound on example count
}

// SchemaBuilder renders a prompt from the live schema, a packed set of
// few-shot examples, and the question.
type SchemaBuilder struct {
	Examples      []Example
	SampleRows    int // rows of sample data per table, 0 disables
	budget        Budget
	tokenEstimate func(s string) int
}

// NewSchemaBuilder creates a builder with the given examples and budget.
func NewSchemaBuilder(examples []Example, sampleRows int, b Budget, est func(s string) int) *SchemaBuilder {
	if est == nil {
		est = func(s string) int { // rough heuristic: ~4 chars per token
			l := len(s)
			if l == 0 {
				return 0
			}
			return (l + 3) / 4
		}
	}
	if b.MaxExamples <= 0 {
		b.MaxExamples = 8
	}
	if b.MaxExampleTokens <= 0 {
		b.MaxExampleTokens = 1200
	}
	return &SchemaBuilder{
		Examples:      examples,
		SampleRows:    sampleRows,
		budget:        b,
		tokenEstimate: est,
	}
}

// BuildPrompt assembles schema description + few-shot examples + question.
func (b *SchemaBuilder) BuildPrompt(ctx context.Context, question string, db *sql.DB) (string, error) {
	schema, err := b.describeSchema(ctx, db)
	if err != nil {
		return "", fmt.Errorf("describe schema: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Translate the question into a single SQLite SELECT statement.\n")
	sb.WriteString("Answer with SQL only, no explanation.\n\n")
	sb.WriteString("Database schema:\n")
	sb.WriteString(schema)

	if packed := b.packExamples(); len(packed) > 0 {
		sb.WriteString("\nExamples:\n")
		for _, ex := range packed {
			fmt.Fprintf(&sb, "Q: %s\nSQL: %s\n", ex.Question, ex.SQL)
		}
	}

	fmt.Fprintf(&sb, "\nQ: %s\nSQL:", question)
	return sb.String(), nil
}

// describeSchema reads table DDL from sqlite_master in name order, plus
// optional sample rows, so identical schema snapshots render identically.
func (b *SchemaBuilder) describeSchema(ctx context.Context, db *sql.DB) (string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name, sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	type table struct{ name, ddl string }
	var tables []table
	for rows.Next() {
		var t table
		if err := rows.Scan(&t.name, &t.ddl); err != nil {
			return "", err
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, t := range tables {
		sb.WriteString(t.ddl)
		sb.WriteString(";\n")
		if b.SampleRows > 0 {
			sample, err := b.sampleTable(ctx, db, t.name)
			if err == nil && sample != "" {
				sb.WriteString(sample)
			}
		}
	}
	return sb.String(), nil
}

// sampleTable renders up to SampleRows rows in rowid order.
func (b *SchemaBuilder) sampleTable(ctx context.Context, db *sql.DB, name string) (string, error) {
	query := fmt.Sprintf(`SELECT * FROM "%s" LIMIT %d`, strings.ReplaceAll(name, `"`, `""`), b.SampleRows)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	count := 0
	for rows.Next() {
		values := make([]any, len(columns))
		scan := make([]any, len(columns))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return "", err
		}
		parts := make([]string, len(values))
		for i, v := range values {
			if bs, ok := v.([]byte); ok {
				v = string(bs)
			}
			parts[i] = fmt.Sprint(v)
		}
		if count == 0 {
			fmt.Fprintf(&sb, "-- sample rows for %s (%s):\n", name, strings.Join(columns, ", "))
		}
		fmt.Fprintf(&sb, "-- (%s)\n", strings.Join(parts, ", "))
		count++
	}
	return sb.String(), rows.Err()
}

// packExamples keeps examples in declaration order up to the token budget.
func (b *SchemaBuilder) packExamples() []Example {
	remaining := b.budget.MaxExampleTokens
	packed := make([]Example, 0, min(len(b.Examples), b.budget.MaxExamples))
	for _, ex := range b.Examples {
		if len(packed) >= b.budget.MaxExamples {
			break
		}
		cost := b.tokenEstimate(ex.Question) + b.tokenEstimate(ex.SQL)
		if cost > remaining {
			continue
		}
		packed = append(packed, ex)
		remaining -= cost
	}
	return packed
}

var selectPattern = regexp.MustCompile(`(?is)\bSELECT\b`)

// NormalizeSQL strips model noise around a generated statement: code
// fences and any prose before the first SELECT. This is a normalization
// policy of this boundary, not a contract of the loop; it does not
// generalize beyond SELECT-only generation.
func NormalizeSQL(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```sql")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	if loc := selectPattern.FindStringIndex(s); loc != nil {
		s = s[loc[0]:]
	}
	return strings.TrimSpace(s)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
