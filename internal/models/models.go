package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User of the platform. Role drives escalation targeting.
type User struct {
	ID        string         `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"unique;not null" json:"username"`
	Email     string         `gorm:"unique;not null" json:"email"`
	Name      string         `json:"name"`
	Role      string         `gorm:"default:'server'" json:"role"`   // server, supervisor, manager, admin
	Status    string         `gorm:"default:'active'" json:"status"` // active, inactive
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// SOP is a standard operating procedure document.
type SOP struct {
	ID             string         `gorm:"primaryKey" json:"id"`
	Title          string         `gorm:"not null" json:"title"`
	TitleLocalized string         `json:"title_localized"`
	Description    string         `gorm:"type:text" json:"description"`
	Category       string         `json:"category"`
	Priority       string         `gorm:"default:'medium'" json:"priority"` // low, medium, high, critical
	Status         string         `gorm:"default:'active'" json:"status"`   // draft, active, archived
	CreatedBy      string         `gorm:"index" json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (s *SOP) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// SOPAssignment tracks one user's obligation to complete a SOP.
type SOPAssignment struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	SOPID       string     `gorm:"index;not null" json:"sop_id"`
	AssignedTo  string     `gorm:"index;not null" json:"assigned_to"`
	AssignedBy  string     `json:"assigned_by"`
	Status      string     `gorm:"default:'pending'" json:"status"` // pending, in_progress, completed, overdue
	Priority    string     `gorm:"default:'medium'" json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	SOP SOP `gorm:"foreignKey:SOPID" json:"sop,omitempty"`
}

func (a *SOPAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// SOPProgress is the per-(sop, user) completion record, upserted by the engine.
type SOPProgress struct {
	ID                   string    `gorm:"primaryKey" json:"id"`
	SOPID                string    `gorm:"index:idx_sop_user,unique;not null" json:"sop_id"`
	UserID               string    `gorm:"index:idx_sop_user,unique;not null" json:"user_id"`
	CompletionPercentage float64   `gorm:"default:0" json:"completion_percentage"`
	LastActivityAt       time.Time `json:"last_activity_at"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (p *SOPProgress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// SOPSchedule describes a recurring assignment of a SOP to one or more roles.
// ScheduleConfig and AssignedRoles are stored as JSON text.
type SOPSchedule struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	SOPID          string    `gorm:"index;not null" json:"sop_id"`
	ScheduleType   string    `gorm:"default:'weekly'" json:"schedule_type"` // daily, weekly, monthly
	ScheduleConfig string    `gorm:"type:text" json:"schedule_config"`
	AssignedRoles  string    `gorm:"type:text" json:"assigned_roles"`
	NextDueDate    time.Time `json:"next_due_date"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (s *SOPSchedule) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Notification is an in-app notification row. Delivery beyond persistence
// (websocket push) is best effort.
type Notification struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Type      string    `gorm:"default:'automation'" json:"type"`
	Title     string    `json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	SOPID     string    `gorm:"index" json:"sop_id,omitempty"`
	Read      bool      `gorm:"default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
