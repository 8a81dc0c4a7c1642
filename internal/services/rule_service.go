package services

import (
	"context"
	"encoding/json"

	"opsflow/internal/models"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AutomationRuleRequest is the management-surface payload for creating or
// updating a rule.
type AutomationRuleRequest struct {
	Name          string          `json:"name" binding:"required"`
	NameLocalized string          `json:"name_localized"`
	Description   string          `json:"description"`
	TriggerEvents []string        `json:"trigger_events"`
	Conditions    []RuleCondition `json:"conditions"`
	Actions       []RuleAction    `json:"actions"`
	Priority      *int            `json:"priority"`
	IsActive      *bool           `json:"is_active"`
}

// RuleService is the thin CRUD wrapper around the rule store.
type RuleService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewRuleService(db *gorm.DB, logger *logrus.Logger) *RuleService {
	if logger == nil {
		logger = logrus.New()
	}
	return &RuleService{db: db, logger: logger}
}

func (s *RuleService) validate(req *AutomationRuleRequest) error {
	if req == nil {
		return &ValidationError{Field: "request", Reason: "is required"}
	}
	if req.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if len(req.TriggerEvents) == 0 {
		return &ValidationError{Field: "trigger_events", Reason: "must contain at least one event type"}
	}
	if len(req.Actions) == 0 {
		return &ValidationError{Field: "actions", Reason: "must contain at least one action"}
	}
	for _, a := range req.Actions {
		if _, err := decodeAction(a); err != nil {
			return &ValidationError{Field: "actions", Reason: err.Error()}
		}
	}
	return nil
}

// CreateRule validates and stores a new rule. New rules start with a full
// success rate so the first failure is visible in the statistics.
func (s *RuleService) CreateRule(ctx context.Context, req *AutomationRuleRequest, createdBy string) (*models.AutomationRule, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	eventsJSON, err := json.Marshal(req.TriggerEvents)
	if err != nil {
		return nil, &ValidationError{Field: "trigger_events", Reason: err.Error()}
	}
	condJSON, err := json.Marshal(req.Conditions)
	if err != nil {
		return nil, &ValidationError{Field: "conditions", Reason: err.Error()}
	}
	actJSON, err := json.Marshal(req.Actions)
	if err != nil {
		return nil, &ValidationError{Field: "actions", Reason: err.Error()}
	}

	priority := 0
	if req.Priority != nil {
		priority = *req.Priority
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	rule := &models.AutomationRule{
		Name:           req.Name,
		NameLocalized:  req.NameLocalized,
		Description:    req.Description,
		TriggerEvents:  string(eventsJSON),
		Conditions:     string(condJSON),
		Actions:        string(actJSON),
		Priority:       priority,
		IsActive:       isActive,
		ExecutionCount: 0,
		SuccessRate:    1.0,
		CreatedBy:      createdBy,
	}
	if err := s.db.WithContext(ctx).Create(rule).Error; err != nil {
		return nil, &CollaboratorError{Op: "create rule", Err: err}
	}
	s.logger.Infof("rules: created %s (%s)", rule.ID, rule.Name)
	return rule, nil
}

// UpdateRule applies a patch to a rule. Identity and statistics fields are
// immutable through this surface and stripped from the patch.
func (s *RuleService) UpdateRule(ctx context.Context, id string, patch map[string]interface{}) (*models.AutomationRule, error) {
	for _, immutable := range []string{"id", "created_by", "created_at", "execution_count", "success_rate", "last_executed_at"} {
		delete(patch, immutable)
	}
	if len(patch) == 0 {
		return s.GetRule(ctx, id)
	}

	// Structured fields arrive as JSON values and are re-serialized into
	// their text columns.
	for _, field := range []string{"trigger_events", "conditions", "actions"} {
		if v, ok := patch[field]; ok {
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, &ValidationError{Field: field, Reason: err.Error()}
			}
			patch[field] = string(raw)
		}
	}

	result := s.db.WithContext(ctx).Model(&models.AutomationRule{}).
		Where("id = ?", id).
		Updates(patch)
	if result.Error != nil {
		return nil, &CollaboratorError{Op: "update rule", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return nil, errors.Errorf("rule %s not found", id)
	}
	return s.GetRule(ctx, id)
}

func (s *RuleService) DeleteRule(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.AutomationRule{}, "id = ?", id)
	if result.Error != nil {
		return &CollaboratorError{Op: "delete rule", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return errors.Errorf("rule %s not found", id)
	}
	return nil
}

func (s *RuleService) GetRule(ctx context.Context, id string) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	if err := s.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Errorf("rule %s not found", id)
		}
		return nil, &CollaboratorError{Op: "load rule", Err: err}
	}
	return &rule, nil
}

func (s *RuleService) ListRules(ctx context.Context) ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	if err := s.db.WithContext(ctx).Order("priority DESC, created_at ASC").Find(&rules).Error; err != nil {
		return nil, &CollaboratorError{Op: "list rules", Err: err}
	}
	return rules, nil
}

// ListExecutions returns a rule's execution history, newest first.
func (s *RuleService) ListExecutions(ctx context.Context, ruleID string, limit int) ([]models.RuleExecution, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var executions []models.RuleExecution
	if err := s.db.WithContext(ctx).
		Where("rule_id = ?", ruleID).
		Order("started_at DESC").
		Limit(limit).
		Find(&executions).Error; err != nil {
		return nil, &CollaboratorError{Op: "list executions", Err: err}
	}
	return executions, nil
}
