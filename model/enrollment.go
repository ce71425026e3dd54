package model

import (
	"time"

	"gorm.io/gorm"
)

// Enrollment statuses. Records are never deleted, only status-transitioned.
const (
	EnrollmentActive    = "active"
	EnrollmentSuspended = "suspended"
	EnrollmentCompleted = "completed"
)

// Enrollment grants a user conditional access to a course's non-preview content
type Enrollment struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	UserID          uint           `gorm:"not null;uniqueIndex:idx_user_course" json:"user_id"`
	CourseID        uint           `gorm:"not null;uniqueIndex:idx_user_course" json:"course_id"`
	Status          string         `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	PaymentID       *string        `gorm:"type:varchar(100)" json:"payment_id,omitempty"`
	AccessExpiresAt *time.Time     `json:"access_expires_at,omitempty"`

	// Relationships
	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}

// IsExpired reports whether the enrollment's access window has passed.
func (e *Enrollment) IsExpired(now time.Time) bool {
	return e.AccessExpiresAt != nil && e.AccessExpiresAt.Before(now)
}
