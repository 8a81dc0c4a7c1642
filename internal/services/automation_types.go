package services

import (
	"time"
)

// Connector joins a condition's result into the running boolean accumulator.
type Connector string

const (
	ConnectorAnd Connector = "AND"
	ConnectorOr  Connector = "OR"
)

// Condition operators.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpContains    = "contains"
	OpNotContains = "not_contains"
)

// RuleCondition is a single boolean test against event data. Logic, when set,
// is the connector used to combine the NEXT condition's result, not this one's.
type RuleCondition struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
	Logic    Connector   `json:"logic,omitempty"`
}

// Action type tags as stored in a rule's action list.
const (
	ActionAssignSOP        = "assign_sop"
	ActionSendNotification = "send_notification"
	ActionUpdateStatus     = "update_status"
	ActionCreateSchedule   = "create_schedule"
	ActionEscalate         = "escalate"
	ActionAutoComplete     = "auto_complete"
)

// RuleAction is the stored wire shape of one action. Parameters are decoded
// into a typed action before execution, see decodeAction.
type RuleAction struct {
	Type       string                 `json:"type"`
	Parameters map[string]interface{} `json:"parameters"`
}

// TriggerEvent is an external occurrence delivered to the engine. It is not
// persisted except as embedded in RuleExecution records.
type TriggerEvent struct {
	EventType string                 `json:"event_type"`
	EventData map[string]interface{} `json:"event_data"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
}

// Log entry statuses.
const (
	LogStatusSuccess = "success"
	LogStatusError   = "error"
	LogStatusWarning = "warning"
)

// ExecutionLogEntry is one line of a RuleExecution's append-only log.
type ExecutionLogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Step      string                 `json:"step"`
	Status    string                 `json:"status"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
