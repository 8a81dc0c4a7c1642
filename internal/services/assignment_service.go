package services

import (
	"context"
	"time"

	"opsflow/internal/models"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AssignmentService manages SOP assignments and per-user progress records.
type AssignmentService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewAssignmentService(db *gorm.DB, logger *logrus.Logger) *AssignmentService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AssignmentService{db: db, logger: logger}
}

func (s *AssignmentService) CreateAssignment(ctx context.Context, a *models.SOPAssignment) error {
	if a.SOPID == "" || a.AssignedTo == "" {
		return errors.New("assignment requires sop_id and assigned_to")
	}
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return &CollaboratorError{Op: "create assignment", Err: err}
	}
	s.logger.Infof("assignment: created %s for user %s (sop %s)", a.ID, a.AssignedTo, a.SOPID)
	return nil
}

// MarkCompleted flips an assignment to completed and returns the updated row.
func (s *AssignmentService) MarkCompleted(ctx context.Context, assignmentID string) (*models.SOPAssignment, error) {
	var assignment models.SOPAssignment
	if err := s.db.WithContext(ctx).First(&assignment, "id = ?", assignmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Errorf("assignment %s not found", assignmentID)
		}
		return nil, &CollaboratorError{Op: "load assignment", Err: err}
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&models.SOPAssignment{}).
		Where("id = ?", assignmentID).
		Updates(map[string]interface{}{"status": "completed", "completed_at": now}).Error; err != nil {
		return nil, &CollaboratorError{Op: "complete assignment", Err: err}
	}
	assignment.Status = "completed"
	assignment.CompletedAt = &now
	return &assignment, nil
}

// UpsertProgress creates or refreshes the progress record for a (sop, user) pair.
func (s *AssignmentService) UpsertProgress(ctx context.Context, sopID, userID string, completion float64) error {
	now := time.Now()
	var progress models.SOPProgress
	err := s.db.WithContext(ctx).
		Where("sop_id = ? AND user_id = ?", sopID, userID).
		First(&progress).Error
	switch {
	case err == nil:
		return s.db.WithContext(ctx).Model(&models.SOPProgress{}).
			Where("id = ?", progress.ID).
			Updates(map[string]interface{}{
				"completion_percentage": completion,
				"last_activity_at":      now,
			}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.db.WithContext(ctx).Create(&models.SOPProgress{
			SOPID:                sopID,
			UserID:               userID,
			CompletionPercentage: completion,
			LastActivityAt:       now,
		}).Error
	default:
		return &CollaboratorError{Op: "load progress", Err: err}
	}
}
