package model

import (
	"time"

	"gorm.io/gorm"
)

// User roles
const (
	RoleLearner = "learner"
	RoleAdmin   = "admin"
)

// User represents a registered learner or admin
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Never expose password in JSON
	Name         string         `gorm:"not null" json:"name"`
	NativeLang   string         `gorm:"type:varchar(10)" json:"native_language"`
	Role         string         `gorm:"type:varchar(20);default:'learner'" json:"role"` // learner, admin
	TokenVersion int            `gorm:"default:0" json:"-"`                             // Increment to invalidate all user tokens

	// Relationships
	Enrollments []Enrollment     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"enrollments,omitempty"`
	Progress    []LessonProgress `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Payments    []CoursePayment  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
