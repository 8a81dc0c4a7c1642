package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"opsflow/internal/models"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// action is one executable step of a rule. Each action kind has its own
// implementing type with validated, typed parameters.
type action interface {
	Name() string
	Execute(ctx context.Context, deps *actionDeps, eventData map[string]interface{}) error
}

// actionDeps is the collaborator surface handed to every action.
type actionDeps struct {
	db             *gorm.DB
	assignments    AssignmentManager
	notifier       Notifier
	schedules      ScheduleManager
	users          UserDirectory
	defaultDueDays int
}

// decodeAction maps a stored RuleAction onto its typed counterpart. Unknown
// kinds and malformed parameter bags are rejected here, before any side
// effect runs.
func decodeAction(raw RuleAction) (action, error) {
	var target action
	switch raw.Type {
	case ActionAssignSOP:
		target = &assignSOPAction{}
	case ActionSendNotification:
		target = &sendNotificationAction{}
	case ActionUpdateStatus:
		target = &updateStatusAction{}
	case ActionCreateSchedule:
		target = &createScheduleAction{}
	case ActionEscalate:
		target = &escalateAction{}
	case ActionAutoComplete:
		target = &autoCompleteAction{}
	default:
		return nil, errors.Errorf("unsupported action type: %s", raw.Type)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build action decoder")
	}
	if err := decoder.Decode(raw.Parameters); err != nil {
		return nil, errors.Wrapf(err, "decode %s parameters", raw.Type)
	}
	return target, nil
}

// eventString fetches a key from event data as a string, or "".
func eventString(eventData map[string]interface{}, key string) string {
	if v, ok := eventData[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// assignSOPAction creates a pending SOP assignment for a user.
type assignSOPAction struct {
	SOPID       string `mapstructure:"sop_id"`
	AssignedTo  string `mapstructure:"assigned_to"`
	DueDateDays int    `mapstructure:"due_date_days"`
	Priority    string `mapstructure:"priority"`
}

func (a *assignSOPAction) Name() string { return ActionAssignSOP }

func (a *assignSOPAction) Execute(ctx context.Context, deps *actionDeps, eventData map[string]interface{}) error {
	sopID := a.SOPID
	if sopID == "" {
		sopID = eventString(eventData, "sop_id")
	}
	assignedTo := a.AssignedTo
	if assignedTo == "" {
		assignedTo = eventString(eventData, "user_id")
	}
	if sopID == "" {
		return errors.New("sop_id could not be resolved from parameters or event data")
	}
	if assignedTo == "" {
		return errors.New("assigned_to could not be resolved from parameters or event data")
	}

	dueDays := a.DueDateDays
	if dueDays <= 0 {
		dueDays = deps.defaultDueDays
	}
	priority := a.Priority
	if priority == "" {
		priority = "medium"
	}

	due := time.Now().AddDate(0, 0, dueDays)
	assignment := &models.SOPAssignment{
		SOPID:      sopID,
		AssignedTo: assignedTo,
		Status:     "pending",
		Priority:   priority,
		DueDate:    &due,
	}
	return deps.assignments.CreateAssignment(ctx, assignment)
}

// sendNotificationAction notifies one or more users about the trigger.
type sendNotificationAction struct {
	UserIDs          []string `mapstructure:"user_ids"`
	NotificationType string   `mapstructure:"notification_type"`
	Title            string   `mapstructure:"title"`
	Message          string   `mapstructure:"message"`
}

func (a *sendNotificationAction) Name() string { return ActionSendNotification }

func (a *sendNotificationAction) Execute(ctx context.Context, deps *actionDeps, eventData map[string]interface{}) error {
	userIDs := a.UserIDs
	if len(userIDs) == 0 {
		if id := eventString(eventData, "user_id"); id != "" {
			userIDs = []string{id}
		}
	}
	if len(userIDs) == 0 {
		return errors.New("no notification recipients resolved")
	}

	payload := NotificationPayload{
		Type:    a.NotificationType,
		Title:   a.Title,
		Message: a.Message,
		SOPID:   eventString(eventData, "sop_id"),
	}
	if payload.Type == "" {
		payload.Type = "automation"
	}
	if payload.Title == "" {
		payload.Title = "Automation notification"
	}
	if payload.Message == "" {
		payload.Message = "An automation rule matched one of your SOPs."
	}
	return deps.notifier.Notify(ctx, userIDs, payload)
}

// statusUpdateAllowlist is the closed set of (table, column) pairs the
// update_status action may write. Anything else is rejected up front.
var statusUpdateAllowlist = map[string]string{
	"sops":            "status",
	"sop_assignments": "status",
	"sop_schedules":   "status",
}

// updateStatusAction flips the status column of one allowlisted record.
type updateStatusAction struct {
	TargetTable     string                 `mapstructure:"target_table"`
	NewStatus       string                 `mapstructure:"new_status"`
	TargetIDField   string                 `mapstructure:"target_id_field"`
	WhereConditions map[string]interface{} `mapstructure:"where_conditions"`
}

func (a *updateStatusAction) Name() string { return ActionUpdateStatus }

func (a *updateStatusAction) Execute(ctx context.Context, deps *actionDeps, eventData map[string]interface{}) error {
	if a.TargetTable == "" || a.NewStatus == "" {
		return errors.New("target_table and new_status are required")
	}
	column, ok := statusUpdateAllowlist[a.TargetTable]
	if !ok {
		return errors.Errorf("table %s is not allowed for status updates", a.TargetTable)
	}

	recordID := ""
	if a.TargetIDField != "" {
		recordID = eventString(eventData, a.TargetIDField)
	}
	if recordID == "" {
		recordID = eventString(eventData, "id")
	}
	if recordID == "" {
		return errors.New("target record id could not be resolved from event data")
	}

	tx := deps.db.WithContext(ctx).Table(a.TargetTable).Where("id = ?", recordID)
	for field, value := range a.WhereConditions {
		tx = tx.Where(fmt.Sprintf("%s = ?", field), value)
	}
	if err := tx.Update(column, a.NewStatus).Error; err != nil {
		return errors.Wrapf(err, "update %s.%s", a.TargetTable, column)
	}
	return nil
}

// defaultScheduleConfig is weekdays at 09:00.
func defaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		Days: []int{1, 2, 3, 4, 5},
		Time: "09:00",
	}
}

// createScheduleAction sets up a recurring schedule for a SOP.
type createScheduleAction struct {
	SOPID          string                 `mapstructure:"sop_id"`
	ScheduleType   string                 `mapstructure:"schedule_type"`
	ScheduleConfig map[string]interface{} `mapstructure:"schedule_config"`
	AssignedRoles  []string               `mapstructure:"assigned_roles"`
}

func (a *createScheduleAction) Name() string { return ActionCreateSchedule }

func (a *createScheduleAction) Execute(ctx context.Context, deps *actionDeps, eventData map[string]interface{}) error {
	sopID := a.SOPID
	if sopID == "" {
		sopID = eventString(eventData, "sop_id")
	}
	if sopID == "" {
		return errors.New("sop_id could not be resolved from parameters or event data")
	}

	scheduleType := a.ScheduleType
	if scheduleType == "" {
		scheduleType = "weekly"
	}
	cfg := defaultScheduleConfig()
	if len(a.ScheduleConfig) > 0 {
		if err := mapstructure.WeakDecode(a.ScheduleConfig, &cfg); err != nil {
			return errors.Wrap(err, "decode schedule_config")
		}
	}
	roles := a.AssignedRoles
	if len(roles) == 0 {
		roles = []string{"server"}
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal schedule_config")
	}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return errors.Wrap(err, "marshal assigned_roles")
	}

	schedule := &models.SOPSchedule{
		SOPID:          sopID,
		ScheduleType:   scheduleType,
		ScheduleConfig: string(cfgJSON),
		AssignedRoles:  string(rolesJSON),
		NextDueDate:    NextDueDate(scheduleType, cfg, time.Now()),
		IsActive:       true,
	}
	return deps.schedules.CreateSchedule(ctx, schedule)
}

// escalateAction notifies every active user holding the escalation role.
type escalateAction struct {
	EscalateToRole string `mapstructure:"escalate_to_role"`
	Message        string `mapstructure:"message"`
}

func (a *escalateAction) Name() string { return ActionEscalate }

func (a *escalateAction) Execute(ctx context.Context, deps *actionDeps, eventData map[string]interface{}) error {
	role := a.EscalateToRole
	if role == "" {
		role = "manager"
	}
	targets, err := deps.users.FindActiveUsersByRole(ctx, role)
	if err != nil {
		return errors.Wrapf(err, "find users with role %s", role)
	}
	if len(targets) == 0 {
		return errors.Errorf("no active users found with role %s", role)
	}

	userIDs := make([]string, 0, len(targets))
	for _, u := range targets {
		userIDs = append(userIDs, u.ID)
	}
	message := a.Message
	if message == "" {
		message = "An automation rule escalated an event that needs attention."
	}
	return deps.notifier.Notify(ctx, userIDs, NotificationPayload{
		Type:    "escalation",
		Title:   "Escalation",
		Message: message,
		SOPID:   eventString(eventData, "sop_id"),
	})
}

// autoCompleteAction marks an assignment completed and records progress for
// its SOP/user pair.
type autoCompleteAction struct {
	AssignmentID string `mapstructure:"assignment_id"`
	// pointer so an explicit 0 is distinguishable from an absent parameter
	CompletionPercentage *float64 `mapstructure:"completion_percentage"`
}

func (a *autoCompleteAction) Name() string { return ActionAutoComplete }

func (a *autoCompleteAction) Execute(ctx context.Context, deps *actionDeps, eventData map[string]interface{}) error {
	assignmentID := a.AssignmentID
	if assignmentID == "" {
		assignmentID = eventString(eventData, "assignment_id")
	}
	if assignmentID == "" {
		return errors.New("assignment_id could not be resolved from parameters or event data")
	}

	assignment, err := deps.assignments.MarkCompleted(ctx, assignmentID)
	if err != nil {
		return errors.Wrapf(err, "complete assignment %s", assignmentID)
	}
	completion := 100.0
	if a.CompletionPercentage != nil {
		completion = *a.CompletionPercentage
	}
	return deps.assignments.UpsertProgress(ctx, assignment.SOPID, assignment.AssignedTo, completion)
}
