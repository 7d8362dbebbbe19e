package notification

import (
	"time"

	"github.com/trezcool/studentportal/core"
)

type Notification struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipient_id"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// Send is the admin form for a targeted or broadcast notification.
type Send struct {
	Message       string `json:"message" form:"message" validate:"required"`
	RecipientType string `json:"recipient_type" form:"recipient_type"` // "all" or "student"
	StudentID     int64  `json:"student_id" form:"student_id"`
}

func (s *Send) Clean() {
	s.Message = core.CleanString(s.Message)
	s.RecipientType = core.CleanString(s.RecipientType, true /* lower */)
	if s.RecipientType == "" {
		s.RecipientType = RecipientAll
	}
}

func (s *Send) IsBroadcast() bool { return s.RecipientType == RecipientAll }

const RecipientAll = "all"
