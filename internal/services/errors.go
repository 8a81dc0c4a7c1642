package services

import "fmt"

// ValidationError reports a malformed rule definition. Rules failing
// validation are rejected before storage and never reach the engine.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid rule: %s %s", e.Field, e.Reason)
}

// ActionExecutionError is an action handler's own failure. It is caught per
// action, recorded in the execution log, and aborts only the remaining
// actions of the same rule.
type ActionExecutionError struct {
	Action string
	Err    error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %s: %v", e.Action, e.Err)
}

func (e *ActionExecutionError) Unwrap() error { return e.Err }

// RuleExecutionError is an unexpected failure escaping a single rule's run.
// The dispatcher logs it and continues with the remaining rules.
type RuleExecutionError struct {
	RuleID string
	Err    error
}

func (e *RuleExecutionError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.RuleID, e.Err)
}

func (e *RuleExecutionError) Unwrap() error { return e.Err }

// CollaboratorError wraps a rule/execution store I/O failure. It propagates
// for management operations; during event processing the engine degrades and
// returns whatever executions succeeded.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }
