package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	ports "github.com/nagyist/agentscope/sqlagent/agent/ports"
)

// Parser extracts a typed Decision from free-form model output. The model
// may wrap its answer in prose or code fences; a structurally invalid call
// inside an otherwise valid decision invalidates the whole decision.
// Tool-level validation is the registry's responsibility, not the parser's.
type Parser struct {
	fencePattern *regexp.Regexp
}

// NewParser creates a parser for the decision object format:
// {"thought": ..., "speak": ..., "function": [{"name": ..., "arguments": {...}}]}
func NewParser() *Parser {
	return &Parser{
		fencePattern: regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```"),
	}
}

// rawDecision mirrors the expected shape with pointers so missing keys are
// distinguishable from empty values.
type rawDecision struct {
	Thought *string   `json:"thought"`
	Speak   *string   `json:"speak"`
	Calls   []rawCall `json:"function"`
}

type rawCall struct {
	Name      *string         `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Parse interprets raw model text as a Decision.
func (p *Parser) Parse(raw string) (Decision, error) {
	candidate := p.extractObject(raw)
	if candidate == "" {
		return Decision{}, &MalformedDecisionError{Raw: raw, Reason: "no JSON object found in output"}
	}

	var rd rawDecision
	if err := json.NewDecoder(strings.NewReader(candidate)).Decode(&rd); err != nil {
		// Repair only broken input; well-formed JSON is never rewritten.
		rd = rawDecision{}
		if rerr := json.NewDecoder(strings.NewReader(fixJSON(candidate))).Decode(&rd); rerr != nil {
			return Decision{}, &MalformedDecisionError{Raw: raw, Reason: fmt.Sprintf("invalid JSON: %v", err)}
		}
	}

	if rd.Thought == nil {
		return Decision{}, &MalformedDecisionError{Raw: raw, Reason: `missing "thought" field`}
	}
	if rd.Speak == nil {
		return Decision{}, &MalformedDecisionError{Raw: raw, Reason: `missing "speak" field`}
	}

	out := Decision{Thought: *rd.Thought, Speak: *rd.Speak}
	for i, c := range rd.Calls {
		call, err := validateCall(i, c)
		if err != nil {
			// Atomic parse: one bad call rejects the whole decision.
			return Decision{}, &MalformedDecisionError{Raw: raw, Reason: err.Error()}
		}
		out.Calls = append(out.Calls, call)
	}
	return out, nil
}

// validateCall checks one requested call for structural validity: a
// non-empty name and a flat object of primitive argument values.
func validateCall(index int, c rawCall) (ports.ToolCall, error) {
	if c.Name == nil || strings.TrimSpace(*c.Name) == "" {
		return ports.ToolCall{}, fmt.Errorf("function[%d]: missing tool name", index)
	}

	args := c.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	var flat map[string]any
	if err := json.Unmarshal(args, &flat); err != nil {
		return ports.ToolCall{}, fmt.Errorf("function[%d] %s: arguments are not an object: %v", index, *c.Name, err)
	}
	for k, v := range flat {
		switch v.(type) {
		case string, float64, bool, nil:
		default:
			return ports.ToolCall{}, fmt.Errorf("function[%d] %s: argument %q is not a primitive value", index, *c.Name, k)
		}
	}

	return ports.ToolCall{Name: *c.Name, Args: args}, nil
}

// extractObject locates the decision JSON inside surrounding prose. Fenced
// blocks are preferred; otherwise the first balanced top-level object is
// taken.
func (p *Parser) extractObject(raw string) string {
	if m := p.fencePattern.FindStringSubmatch(raw); m != nil {
		if obj := balancedObject(m[1]); obj != "" {
			return obj
		}
	}
	return balancedObject(raw)
}

// balancedObject returns the first brace-balanced object in s, respecting
// string literals and escapes.
func balancedObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// fixJSON repairs the malformations models most often produce. It is
// applied only after plain decoding has failed, since the regex cannot
// tell a trailing comma from one inside a string literal.
func fixJSON(s string) string {
	return trailingCommaPattern.ReplaceAllString(s, "$1")
}
