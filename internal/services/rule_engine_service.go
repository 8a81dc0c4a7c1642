package services

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"time"

	"opsflow/internal/config"
	"opsflow/internal/metrics"
	"opsflow/internal/models"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SourceManualExecution marks trigger events synthesized by the manual
// execution endpoint.
const SourceManualExecution = "manual_execution"

// RuleEngineService matches trigger events against stored automation rules
// and runs the matching rules' action lists.
type RuleEngineService struct {
	db               *gorm.DB
	executor         *ActionExecutor
	recorder         *ExecutionRecorder
	maxRulesPerEvent int
	logger           *logrus.Logger
}

func NewRuleEngineService(db *gorm.DB, executor *ActionExecutor, recorder *ExecutionRecorder, cfg config.AutomationConfig, logger *logrus.Logger) *RuleEngineService {
	if logger == nil {
		logger = logrus.New()
	}
	return &RuleEngineService{
		db:               db,
		executor:         executor,
		recorder:         recorder,
		maxRulesPerEvent: cfg.MaxRulesPerEvent,
		logger:           logger,
	}
}

// ProcessTriggerEvent runs the full pipeline for one event: load active
// rules subscribed to the event type, filter by conditions, order by
// priority (descending, retrieval order as tie-break), execute sequentially.
// Failures in one rule's execution never block the remaining rules. A rule
// store read failure is degraded mode: the error is returned alongside
// whatever executions already succeeded.
func (s *RuleEngineService) ProcessTriggerEvent(ctx context.Context, event TriggerEvent) ([]models.RuleExecution, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	candidates, err := s.loadCandidateRules(ctx, event.EventType)
	if err != nil {
		s.logger.Warnf("engine: load rules for %s: %v", event.EventType, err)
		return nil, err
	}

	matched := make([]models.AutomationRule, 0, len(candidates))
	for _, rule := range candidates {
		conditions, err := parseConditions(rule.Conditions)
		if err != nil {
			s.logger.Warnf("engine: rule %s has invalid conditions, skipping: %v", rule.ID, err)
			continue
		}
		if EvaluateConditions(conditions, event.EventData) {
			matched = append(matched, rule)
		}
	}

	// Higher priority first; the stable sort keeps retrieval order between
	// equal priorities so repeated runs are deterministic.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})
	if s.maxRulesPerEvent > 0 && len(matched) > s.maxRulesPerEvent {
		s.logger.Warnf("engine: %d rules matched %s, capping at %d", len(matched), event.EventType, s.maxRulesPerEvent)
		matched = matched[:s.maxRulesPerEvent]
	}

	executions := make([]models.RuleExecution, 0, len(matched))
	for _, rule := range matched {
		if execution := s.executeRule(ctx, rule, event); execution != nil {
			executions = append(executions, *execution)
		}
	}
	return executions, nil
}

// ExecuteRule is the manual/administrative entry point. It synthesizes a
// trigger event and re-runs the full matching pipeline; ruleID is recorded
// for audit but deliberately not used as a filter, matching the behavior of
// the service this engine replaces.
func (s *RuleEngineService) ExecuteRule(ctx context.Context, ruleID, eventType string, eventData map[string]interface{}) ([]models.RuleExecution, error) {
	s.logger.Infof("engine: manual execution requested for rule %s via event %s", ruleID, eventType)
	return s.ProcessTriggerEvent(ctx, TriggerEvent{
		EventType: eventType,
		EventData: eventData,
		Source:    SourceManualExecution,
		Timestamp: time.Now(),
	})
}

// loadCandidateRules returns active rules subscribed to eventType, in
// retrieval order. The LIKE clause prefilters on the JSON column; exact
// membership is confirmed after unmarshalling.
func (s *RuleEngineService) loadCandidateRules(ctx context.Context, eventType string) ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("trigger_events LIKE ?", `%"`+eventType+`"%`).
		Order("created_at ASC, id ASC").
		Find(&rules).Error; err != nil {
		return nil, &CollaboratorError{Op: "list active rules", Err: err}
	}

	subscribed := rules[:0]
	for _, rule := range rules {
		events, err := parseTriggerEvents(rule.TriggerEvents)
		if err != nil {
			s.logger.Warnf("engine: rule %s has invalid trigger_events, skipping: %v", rule.ID, err)
			continue
		}
		for _, e := range events {
			if e == eventType {
				subscribed = append(subscribed, rule)
				break
			}
		}
	}
	return subscribed, nil
}

// executeRule runs one rule's actions and finalizes its audit record. A nil
// return means the rule never produced an execution record (store failure or
// malformed action list); the caller logs and moves on.
func (s *RuleEngineService) executeRule(ctx context.Context, rule models.AutomationRule, event TriggerEvent) (execution *models.RuleExecution) {
	defer func() {
		if r := recover(); r != nil {
			err := &RuleExecutionError{RuleID: rule.ID, Err: errors.Errorf("panic: %v", r)}
			s.logger.Errorf("engine: %v", err)
			execution = nil
		}
	}()

	actions, err := parseActions(rule.Actions)
	if err != nil {
		s.logger.Warnf("engine: rule %s has invalid actions, skipping: %v", rule.ID, err)
		return nil
	}

	st, err := s.recorder.Begin(ctx, &rule, event, len(actions))
	if err != nil {
		s.logger.Warnf("engine: begin execution for rule %s: %v", rule.ID, err)
		return nil
	}

	s.executor.RunActions(ctx, st, actions, event.EventData)

	if err := s.recorder.Finalize(ctx, st); err != nil {
		s.logger.Warnf("engine: finalize execution %s: %v", st.record.ID, err)
	}
	metrics.IncExecution(st.record.Status)

	succeeded := st.record.Status == models.ExecutionStatusCompleted
	s.updateRuleStats(ctx, rule.ID, succeeded)

	s.logger.Infof("engine: rule %s (%s) finished %s, %d/%d steps",
		rule.ID, rule.Name, st.record.Status, st.record.StepsCompleted, st.record.TotalSteps)
	return st.record
}

// updateRuleStats folds one more outcome into the rule's rolling counters.
// This is a plain read-modify-write; concurrent executions of the same rule
// can lose an update. Accepted as approximate bookkeeping.
func (s *RuleEngineService) updateRuleStats(ctx context.Context, ruleID string, succeeded bool) {
	var rule models.AutomationRule
	if err := s.db.WithContext(ctx).First(&rule, "id = ?", ruleID).Error; err != nil {
		s.logger.Warnf("engine: reload rule %s for stats: %v", ruleID, err)
		return
	}

	previousSuccesses := math.Round(rule.SuccessRate * float64(rule.ExecutionCount))
	newCount := rule.ExecutionCount + 1
	newSuccesses := previousSuccesses
	if succeeded {
		newSuccesses++
	}
	newRate := newSuccesses / float64(newCount)

	if err := s.db.WithContext(ctx).Model(&models.AutomationRule{}).
		Where("id = ?", ruleID).
		Updates(map[string]interface{}{
			"execution_count":  newCount,
			"success_rate":     newRate,
			"last_executed_at": time.Now(),
		}).Error; err != nil {
		s.logger.Warnf("engine: update stats for rule %s: %v", ruleID, err)
	}
}

func parseTriggerEvents(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var events []string
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil, err
	}
	return events, nil
}

func parseConditions(raw string) ([]RuleCondition, error) {
	if raw == "" {
		return nil, nil
	}
	var conditions []RuleCondition
	if err := json.Unmarshal([]byte(raw), &conditions); err != nil {
		return nil, err
	}
	return conditions, nil
}

func parseActions(raw string) ([]RuleAction, error) {
	if raw == "" {
		return nil, nil
	}
	var actions []RuleAction
	if err := json.Unmarshal([]byte(raw), &actions); err != nil {
		return nil, err
	}
	return actions, nil
}
