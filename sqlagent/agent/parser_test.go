package agent

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_PlainDecision(t *testing.T) {
	parser := NewParser()

	dec, err := parser.Parse(`{"thought": "count the singers", "speak": "Let me check.", "function": [{"name": "query_sqlite", "arguments": {"query": "SELECT 1"}}]}`)
	require.NoError(t, err)

	assert.Equal(t, "count the singers", dec.Thought)
	assert.Equal(t, "Let me check.", dec.Speak)
	require.Len(t, dec.Calls, 1)
	assert.Equal(t, "query_sqlite", dec.Calls[0].Name)
	assert.JSONEq(t, `{"query": "SELECT 1"}`, string(dec.Calls[0].Args))
}

func TestParser_EmptyCallsSignalsTermination(t *testing.T) {
	parser := NewParser()

	dec, err := parser.Parse(`{"thought": "done", "speak": "We have 6 singers.", "function": []}`)
	require.NoError(t, err)
	assert.Empty(t, dec.Calls)
}

func TestParser_ToleratesProseAndFences(t *testing.T) {
	parser := NewParser()

	cases := map[string]string{
		"prose before and after": `Sure, here is my decision: {"thought": "t", "speak": "s", "function": []} hope that helps!`,
		"json fence": "```json\n{\"thought\": \"t\", \"speak\": \"s\", \"function\": []}\n```",
		"bare fence": "```\n{\"thought\": \"t\", \"speak\": \"s\", \"function\": []}\n```",
		"fence plus prose": "Here you go:\n```json\n{\"thought\": \"t\", \"speak\": \"s\", \"function\": []}\n```\nDone.",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			dec, err := parser.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, "t", dec.Thought)
			assert.Equal(t, "s", dec.Speak)
		})
	}
}

func TestParser_BracesInsideStrings(t *testing.T) {
	parser := NewParser()

	dec, err := parser.Parse(`{"thought": "use {curly} braces", "speak": "ok", "function": []}`)
	require.NoError(t, err)
	assert.Equal(t, "use {curly} braces", dec.Thought)
}

func TestParser_TrailingCommaRepaired(t *testing.T) {
	parser := NewParser()

	dec, err := parser.Parse(`{"thought": "t", "speak": "s", "function": [],}`)
	require.NoError(t, err)
	assert.Equal(t, "s", dec.Speak)
}

// Comma repair must never rewrite well-formed input: ",}" and ",]"
// sequences inside string literals stay as written.
func TestParser_CommaInStringsPreserved(t *testing.T) {
	parser := NewParser()

	dec, err := parser.Parse(`{"thought": "pattern [a,]", "speak": "use {a,}", "function": []}`)
	require.NoError(t, err)
	assert.Equal(t, "pattern [a,]", dec.Thought)
	assert.Equal(t, "use {a,}", dec.Speak)
}

func TestParser_MalformedInputs(t *testing.T) {
	parser := NewParser()

	cases := map[string]string{
		"no json at all":    "I think the answer is 6.",
		"unclosed object":   `{"thought": "t", "speak": "s"`,
		"missing thought":   `{"speak": "s", "function": []}`,
		"missing speak":     `{"thought": "t", "function": []}`,
		"call without name": `{"thought": "t", "speak": "s", "function": [{"arguments": {"q": "x"}}]}`,
		"call blank name":   `{"thought": "t", "speak": "s", "function": [{"name": "  ", "arguments": {}}]}`,
		"args not object":   `{"thought": "t", "speak": "s", "function": [{"name": "f", "arguments": [1, 2]}]}`,
		"nested arg value":  `{"thought": "t", "speak": "s", "function": [{"name": "f", "arguments": {"q": {"deep": true}}}]}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parser.Parse(raw)
			require.Error(t, err)
			var malformed *MalformedDecisionError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, raw, malformed.Raw)
		})
	}
}

// One structurally invalid call must reject the whole decision, even when
// other calls in the batch are valid.
func TestParser_AtomicParse(t *testing.T) {
	parser := NewParser()

	raw := `{"thought": "t", "speak": "s", "function": [
		{"name": "good_tool", "arguments": {"q": "x"}},
		{"name": "bad_tool", "arguments": {"q": {"nested": 1}}}
	]}`

	_, err := parser.Parse(raw)
	var malformed *MalformedDecisionError
	require.ErrorAs(t, err, &malformed)
}

func TestParser_MissingArgumentsDefaultsToEmptyObject(t *testing.T) {
	parser := NewParser()

	dec, err := parser.Parse(`{"thought": "t", "speak": "s", "function": [{"name": "f"}]}`)
	require.NoError(t, err)
	require.Len(t, dec.Calls, 1)

	var args map[string]any
	require.NoError(t, json.Unmarshal(dec.Calls[0].Args, &args))
	assert.Empty(t, args)
}

func TestParser_PreservesCallOrder(t *testing.T) {
	parser := NewParser()

	raw := `{"thought": "t", "speak": "s", "function": [
		{"name": "a", "arguments": {}},
		{"name": "b", "arguments": {}},
		{"name": "c", "arguments": {}}
	]}`

	dec, err := parser.Parse(raw)
	require.NoError(t, err)
	require.Len(t, dec.Calls, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, dec.Calls[i].Name)
	}
}

func BenchmarkParser_Parse(b *testing.B) {
	parser := NewParser()
	raw := fmt.Sprintf("Here is my answer:\n```json\n%s\n```",
		`{"thought": "reasoning", "speak": "answer", "function": [{"name": "query_sqlite", "arguments": {"query": "SELECT * FROM singer"}}]}`)

	for i := 0; i < b.N; i++ {
		if _, err := parser.Parse(raw); err != nil {
			b.Fatal(err)
		}
	}
}
