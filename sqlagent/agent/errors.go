package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateTool is a programming-contract violation raised at
	// registration time; it is the only registry error that is fatal.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrBudgetExhausted is returned when the loop reaches its iteration
	// or parse-retry budget without terminating.
	ErrBudgetExhausted = errors.New("loop budget exhausted")

	// ErrModelCall is returned when the provider call fails or times out;
	// fatal for the turn.
	ErrModelCall = errors.New("model call failed")
)

// MalformedDecisionError reports model output that could not be parsed
// into a Decision. It carries the offending text for the corrective
// observation and for inspection.
type MalformedDecisionError struct {
	Raw    string
	Reason string
}

func (e *MalformedDecisionError) Error() string {
	return fmt.Sprintf("malformed decision: %s", e.Reason)
}

// BudgetError wraps ErrBudgetExhausted with which budget ran out.
type BudgetError struct {
	Budget string // "iterations" | "parse_retries"
	Limit  int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("%s budget of %d exhausted", e.Budget, e.Limit)
}

func (e *BudgetError) Unwrap() error { return ErrBudgetExhausted }
