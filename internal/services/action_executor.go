package services

import (
	"context"
	"fmt"
	"time"

	"opsflow/internal/config"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ActionExecutor runs a rule's action list strictly sequentially against one
// event data map. Actions can depend on earlier actions' writes, and the
// step count must be exact, so there is no intra-rule concurrency.
type ActionExecutor struct {
	deps    *actionDeps
	timeout time.Duration
	logger  *logrus.Logger
}

func NewActionExecutor(
	db *gorm.DB,
	assignments AssignmentManager,
	notifier Notifier,
	schedules ScheduleManager,
	users UserDirectory,
	cfg config.AutomationConfig,
	logger *logrus.Logger,
) *ActionExecutor {
	if logger == nil {
		logger = logrus.New()
	}
	timeout := cfg.ActionTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dueDays := cfg.DefaultDueDays
	if dueDays <= 0 {
		dueDays = 3
	}
	return &ActionExecutor{
		deps: &actionDeps{
			db:             db,
			assignments:    assignments,
			notifier:       notifier,
			schedules:      schedules,
			users:          users,
			defaultDueDays: dueDays,
		},
		timeout: timeout,
		logger:  logger,
	}
}

// RunActions attempts each action in order, logging every step into st. The
// first failure stops the loop; the failed attempt counts toward
// steps_completed, the remaining unattempted actions do not.
func (e *ActionExecutor) RunActions(ctx context.Context, st *executionState, actions []RuleAction, eventData map[string]interface{}) {
	for i, raw := range actions {
		stepNum := i + 1
		step := fmt.Sprintf("action_%d_%s", stepNum, raw.Type)

		if err := e.runOne(ctx, raw, eventData); err != nil {
			message := err.Error()
			if aerr, ok := err.(*ActionExecutionError); ok {
				message = aerr.Err.Error()
			}
			st.LogError(step, message)
			st.AddErrorMessage(fmt.Sprintf("Action %d failed: %s", stepNum, message))
			st.StepCompleted()
			e.logger.Warnf("executor: %s: %s", step, message)
			return
		}

		st.LogSuccess(step, fmt.Sprintf("Executed %s", raw.Type), raw.Parameters)
		st.StepCompleted()
	}
}

// runOne decodes and executes a single action under a per-action deadline.
// The original service had no timeout at all; a stalled external call would
// block every rule still queued for the event. Here a deadline expiry is
// reported as an ordinary action failure.
func (e *ActionExecutor) runOne(ctx context.Context, raw RuleAction, eventData map[string]interface{}) error {
	act, err := decodeAction(raw)
	if err != nil {
		return &ActionExecutionError{Action: raw.Type, Err: err}
	}

	actionCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := act.Execute(actionCtx, e.deps, eventData); err != nil {
		if actionCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("timed out after %s: %v", e.timeout, err)
		}
		return &ActionExecutionError{Action: act.Name(), Err: err}
	}
	return nil
}
