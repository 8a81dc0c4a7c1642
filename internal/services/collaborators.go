package services

import (
	"context"

	"opsflow/internal/models"
)

// NotificationPayload is what an action asks the Notifier to deliver.
type NotificationPayload struct {
	Type    string
	Title   string
	Message string
	SOPID   string
}

// AssignmentManager is the assignment collaborator consumed by actions.
type AssignmentManager interface {
	CreateAssignment(ctx context.Context, a *models.SOPAssignment) error
	MarkCompleted(ctx context.Context, assignmentID string) (*models.SOPAssignment, error)
	UpsertProgress(ctx context.Context, sopID, userID string, completion float64) error
}

// Notifier delivers one notification per target user.
type Notifier interface {
	Notify(ctx context.Context, userIDs []string, payload NotificationPayload) error
}

// ScheduleManager creates recurring SOP schedules.
type ScheduleManager interface {
	CreateSchedule(ctx context.Context, s *models.SOPSchedule) error
}

// UserDirectory resolves users for role-based escalation.
type UserDirectory interface {
	FindActiveUsersByRole(ctx context.Context, role string) ([]models.User, error)
}
