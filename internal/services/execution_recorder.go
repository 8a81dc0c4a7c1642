package services

import (
	"context"
	"encoding/json"
	"time"

	"opsflow/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ExecutionRecorder owns the audit trail of rule runs. It writes each record
// twice: once in running state before the first action (so partial progress
// is observable mid-execution) and once at finalization. The two writes are
// not transactional; a crash between them leaves the record in running state.
type ExecutionRecorder struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewExecutionRecorder(db *gorm.DB, logger *logrus.Logger) *ExecutionRecorder {
	if logger == nil {
		logger = logrus.New()
	}
	return &ExecutionRecorder{db: db, logger: logger}
}

// executionState accumulates log entries between the create and finalize
// writes. Only the executing goroutine touches it.
type executionState struct {
	record        *models.RuleExecution
	log           []ExecutionLogEntry
	errorMessages []string
}

// Begin persists a running execution record before any action side effect.
func (r *ExecutionRecorder) Begin(ctx context.Context, rule *models.AutomationRule, event TriggerEvent, totalSteps int) (*executionState, error) {
	dataJSON, err := json.Marshal(event.EventData)
	if err != nil {
		return nil, &CollaboratorError{Op: "marshal trigger data", Err: err}
	}
	record := &models.RuleExecution{
		RuleID:       rule.ID,
		TriggerEvent: event.EventType,
		TriggerData:  string(dataJSON),
		Status:       models.ExecutionStatusRunning,
		TotalSteps:   totalSteps,
		StartedAt:    time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, &CollaboratorError{Op: "create execution", Err: err}
	}
	return &executionState{record: record}, nil
}

func (st *executionState) appendLog(status, step, message string, data map[string]interface{}) {
	st.log = append(st.log, ExecutionLogEntry{
		Timestamp: time.Now(),
		Step:      step,
		Status:    status,
		Message:   message,
		Data:      data,
	})
}

func (st *executionState) LogSuccess(step, message string, data map[string]interface{}) {
	st.appendLog(LogStatusSuccess, step, message, data)
}

func (st *executionState) LogError(step, message string) {
	st.appendLog(LogStatusError, step, message, nil)
}

func (st *executionState) LogWarning(step, message string) {
	st.appendLog(LogStatusWarning, step, message, nil)
}

func (st *executionState) AddErrorMessage(message string) {
	st.errorMessages = append(st.errorMessages, message)
}

func (st *executionState) StepCompleted() {
	st.record.StepsCompleted++
}

// Finalize closes the record: completed iff every step ran cleanly, failed
// otherwise. A failed attempt counts toward steps_completed, so the error
// list has to be consulted too or a rule failing on its last action would
// read as completed.
func (r *ExecutionRecorder) Finalize(ctx context.Context, st *executionState) error {
	now := time.Now()
	duration := now.Sub(st.record.StartedAt).Milliseconds()

	status := models.ExecutionStatusFailed
	if len(st.errorMessages) == 0 && st.record.StepsCompleted == st.record.TotalSteps {
		status = models.ExecutionStatusCompleted
	}

	entries := st.log
	if entries == nil {
		entries = []ExecutionLogEntry{}
	}
	messages := st.errorMessages
	if messages == nil {
		messages = []string{}
	}
	logJSON, err := json.Marshal(entries)
	if err != nil {
		r.logger.Warnf("recorder: marshal execution log: %v", err)
		logJSON = []byte("[]")
	}
	errorsJSON, err := json.Marshal(messages)
	if err != nil {
		errorsJSON = []byte("[]")
	}

	st.record.Status = status
	st.record.CompletedAt = &now
	st.record.DurationMs = &duration
	st.record.ExecutionLog = string(logJSON)
	st.record.ErrorMessages = string(errorsJSON)

	if err := r.db.WithContext(ctx).Model(&models.RuleExecution{}).
		Where("id = ?", st.record.ID).
		Updates(map[string]interface{}{
			"status":          status,
			"steps_completed": st.record.StepsCompleted,
			"execution_log":   st.record.ExecutionLog,
			"error_messages":  st.record.ErrorMessages,
			"completed_at":    now,
			"duration_ms":     duration,
		}).Error; err != nil {
		return &CollaboratorError{Op: "finalize execution", Err: err}
	}
	return nil
}
