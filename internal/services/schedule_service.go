package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"opsflow/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ScheduleConfig is the decoded shape of SOPSchedule.ScheduleConfig.
// Days uses time.Weekday numbering (0=Sunday) for weekly schedules.
type ScheduleConfig struct {
	Days       []int  `json:"days,omitempty" mapstructure:"days"`
	Time       string `json:"time" mapstructure:"time"`
	DayOfMonth int    `json:"day_of_month,omitempty" mapstructure:"day_of_month"`
}

// ScheduleService persists recurring SOP schedules.
type ScheduleService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewScheduleService(db *gorm.DB, logger *logrus.Logger) *ScheduleService {
	if logger == nil {
		logger = logrus.New()
	}
	return &ScheduleService{db: db, logger: logger}
}

func (s *ScheduleService) CreateSchedule(ctx context.Context, schedule *models.SOPSchedule) error {
	if err := s.db.WithContext(ctx).Create(schedule).Error; err != nil {
		return &CollaboratorError{Op: "create schedule", Err: err}
	}
	s.logger.Infof("schedule: created %s schedule %s for sop %s, next due %s",
		schedule.ScheduleType, schedule.ID, schedule.SOPID, schedule.NextDueDate.Format(time.RFC3339))
	return nil
}

func (s *ScheduleService) ListForSOP(ctx context.Context, sopID string) ([]models.SOPSchedule, error) {
	var schedules []models.SOPSchedule
	if err := s.db.WithContext(ctx).Where("sop_id = ? AND is_active = ?", sopID, true).
		Find(&schedules).Error; err != nil {
		return nil, &CollaboratorError{Op: "list schedules", Err: err}
	}
	return schedules, nil
}

// NextDueDate computes the first occurrence of the schedule strictly after
// from. Unknown schedule types fall back to daily.
func NextDueDate(scheduleType string, cfg ScheduleConfig, from time.Time) time.Time {
	hour, minute := parseClock(cfg.Time)

	at := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
	}

	switch scheduleType {
	case "weekly":
		days := cfg.Days
		if len(days) == 0 {
			days = []int{1, 2, 3, 4, 5}
		}
		wanted := make(map[int]bool, len(days))
		for _, d := range days {
			wanted[((d%7)+7)%7] = true
		}
		for offset := 0; offset < 8; offset++ {
			candidate := at(from.AddDate(0, 0, offset))
			if wanted[int(candidate.Weekday())] && candidate.After(from) {
				return candidate
			}
		}
		return at(from.AddDate(0, 0, 1))
	case "monthly":
		day := cfg.DayOfMonth
		if day <= 0 {
			day = 1
		}
		candidate := time.Date(from.Year(), from.Month(), day, hour, minute, 0, 0, from.Location())
		if candidate.After(from) {
			return candidate
		}
		return candidate.AddDate(0, 1, 0)
	default: // daily
		candidate := at(from)
		if candidate.After(from) {
			return candidate
		}
		return candidate.AddDate(0, 0, 1)
	}
}

// parseClock parses "HH:MM", defaulting to 09:00 on any malformed input.
func parseClock(s string) (hour, minute int) {
	hour, minute = 9, 0
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 9, 0
	}
	return h, m
}
