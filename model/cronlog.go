package model

import (
	"time"

	"gorm.io/gorm"
)

// CronJobLog records scheduled job runs for observability
type CronJobLog struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	JobName     string         `json:"job_name" gorm:"not null;index"`
	Status      string         `json:"status" gorm:"not null"` // running, completed, failed
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Message     string         `json:"message,omitempty"`
	ErrorMsg    string         `json:"error_msg,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
