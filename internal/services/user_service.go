package services

import (
	"context"

	"opsflow/internal/models"

	"gorm.io/gorm"
)

// UserService is the user directory consumed by the escalate action.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) FindActiveUsersByRole(ctx context.Context, role string) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).
		Where("role = ? AND status = ?", role, "active").
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, &CollaboratorError{Op: "find users by role", Err: err}
	}
	return users, nil
}
