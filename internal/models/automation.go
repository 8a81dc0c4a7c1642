package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AutomationRule is a stored automation policy. TriggerEvents, Conditions and
// Actions are JSON text columns interpreted by the services package.
type AutomationRule struct {
	ID             string     `gorm:"primaryKey" json:"id"`
	Name           string     `gorm:"not null" json:"name"`
	NameLocalized  string     `json:"name_localized"`
	Description    string     `gorm:"type:text" json:"description"`
	TriggerEvents  string     `gorm:"type:text;not null" json:"trigger_events"` // JSON: ["sop_completed", ...]
	Conditions     string     `gorm:"type:text" json:"conditions"`              // JSON: [{field,operator,value,logic}]
	Actions        string     `gorm:"type:text;not null" json:"actions"`        // JSON: [{type,parameters}]
	Priority       int        `gorm:"default:0;index" json:"priority"`
	IsActive       bool       `gorm:"default:true;index" json:"is_active"`
	ExecutionCount int64      `gorm:"default:0" json:"execution_count"`
	SuccessRate    float64    `gorm:"default:1.0" json:"success_rate"`
	LastExecutedAt *time.Time `json:"last_executed_at"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (r *AutomationRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Execution statuses. Cancelled is reserved for administrative
// intervention and is never set by the engine itself.
const (
	ExecutionStatusRunning   = "running"
	ExecutionStatusCompleted = "completed"
	ExecutionStatusFailed    = "failed"
	ExecutionStatusCancelled = "cancelled"
)

// RuleExecution is the audit record of one rule run against one trigger event.
// Created in running state before the first action, finalized once the action
// list is exhausted or aborted; after that it is immutable history.
type RuleExecution struct {
	ID             string     `gorm:"primaryKey" json:"id"`
	RuleID         string     `gorm:"index;not null" json:"rule_id"`
	TriggerEvent   string     `gorm:"index" json:"trigger_event"`
	TriggerData    string     `gorm:"type:text" json:"trigger_data"`  // JSON copy of the event data
	Status         string     `gorm:"index;default:'running'" json:"execution_status"`
	StepsCompleted int        `gorm:"default:0" json:"steps_completed"`
	TotalSteps     int        `gorm:"default:0" json:"total_steps"`
	ExecutionLog   string     `gorm:"type:text" json:"execution_log"`  // JSON: [{timestamp,step,status,message,data}]
	ErrorMessages  string     `gorm:"type:text" json:"error_messages"` // JSON: ["Action 2 failed: ..."]
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	DurationMs     *int64     `json:"duration_ms"`

	Rule AutomationRule `gorm:"foreignKey:RuleID" json:"rule,omitempty"`
}

func (e *RuleExecution) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
