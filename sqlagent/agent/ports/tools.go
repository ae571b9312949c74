package agentports

import (
	"encoding/json"
	"fmt"
)

// ToolSpec describes a callable tool exposed to the model.
type ToolSpec struct {
	Name        string // unique logical name
	Description string // concise doc for model selection
	JSONSchema  []byte // JSON schema for the model-supplied args
}

// ToolCall represents a model-requested invocation with JSON arguments.
// Args are untrusted until validated against the registered schema.
type ToolCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"arguments"`
}

// Status classifies an ExecutionResult.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// ErrorKind labels the failure taxonomy carried on results.
type ErrorKind string

const (
	ErrKindUnknownTool        ErrorKind = "unknown_tool"
	ErrKindMissingArgument    ErrorKind = "missing_argument"
	ErrKindUnexpectedArgument ErrorKind = "unexpected_argument"
	ErrKindTypeMismatch       ErrorKind = "type_mismatch"
	ErrKindPolicyViolation    ErrorKind = "policy_violation"
	ErrKindExecutionFault     ErrorKind = "execution_fault"
	ErrKindTimeout            ErrorKind = "timeout"
)

// ExecutionResult is the uniform envelope every tool invocation normalizes
// to, successful or not, before re-entering the conversation.
type ExecutionResult struct {
	Status      Status    `json:"status"`
	Payload     any       `json:"payload,omitempty"`
	ErrorKind   ErrorKind `json:"error_kind,omitempty"`
	ErrorDetail string    `json:"error_detail,omitempty"`
}

// Success wraps a payload in a SUCCESS envelope.
func Success(payload any) ExecutionResult {
	return ExecutionResult{Status: StatusSuccess, Payload: payload}
}

// Failure wraps an error kind and detail in a FAILURE envelope.
func Failure(kind ErrorKind, detail string) ExecutionResult {
	return ExecutionResult{Status: StatusFailure, ErrorKind: kind, ErrorDetail: detail}
}

// Failuref is Failure with fmt-style detail.
func Failuref(kind ErrorKind, format string, args ...any) ExecutionResult {
	return Failure(kind, fmt.Sprintf(format, args...))
}

// Render serializes the envelope for use as an observation message body.
// Falls back to a plain string on marshal failure so an observation is
// always produced.
func (r ExecutionResult) Render() string {
	b, err := json.Marshal(r)
	if err != nil {
		if r.Status == StatusSuccess {
			return fmt.Sprintf(`{"status":"success","payload":%q}`, fmt.Sprint(r.Payload))
		}
		return fmt.Sprintf(`{"status":"failure","error_kind":%q,"error_detail":%q}`, r.ErrorKind, r.ErrorDetail)
	}
	return string(b)
}
