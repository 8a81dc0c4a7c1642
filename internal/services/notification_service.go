package services

import (
	"context"
	"time"

	"opsflow/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NotificationService persists in-app notifications and pushes them to
// connected websocket clients when a hub is attached.
type NotificationService struct {
	db     *gorm.DB
	hub    *WebSocketHub
	logger *logrus.Logger
}

func NewNotificationService(db *gorm.DB, logger *logrus.Logger) *NotificationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &NotificationService{db: db, logger: logger}
}

// SetHub attaches the optional websocket hub for live delivery.
func (s *NotificationService) SetHub(hub *WebSocketHub) {
	s.hub = hub
}

// Notify writes one notification row per target user. Websocket push is best
// effort; a disconnected user still gets the persisted row.
func (s *NotificationService) Notify(ctx context.Context, userIDs []string, payload NotificationPayload) error {
	for _, userID := range userIDs {
		n := &models.Notification{
			UserID:  userID,
			Type:    payload.Type,
			Title:   payload.Title,
			Message: payload.Message,
			SOPID:   payload.SOPID,
		}
		if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
			return &CollaboratorError{Op: "create notification", Err: err}
		}
		if s.hub != nil {
			s.hub.SendToUser(userID, WebSocketMessage{
				Type:      "notification",
				Data:      n,
				Timestamp: time.Now(),
			})
		}
	}
	s.logger.Infof("notification: delivered %q to %d user(s)", payload.Title, len(userIDs))
	return nil
}

// ListForUser returns a user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	var notifications []models.Notification
	if err := q.Order("created_at DESC").Find(&notifications).Error; err != nil {
		return nil, &CollaboratorError{Op: "list notifications", Err: err}
	}
	return notifications, nil
}
