package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultCompletionThreshold is the watch percentage at which a lesson
// counts as completed unless the course overrides it.
const DefaultCompletionThreshold = 80

// Course represents a language course (e.g., "Spanish A1", "Japanese N5")
type Course struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
	Title               string         `gorm:"not null" json:"title"`
	Language            string         `gorm:"type:varchar(10);not null;index" json:"language"` // ISO 639-1 code
	Level               string         `gorm:"type:varchar(10)" json:"level"`                   // e.g., A1..C2
	Description         string         `gorm:"type:text" json:"description"`
	Price               float64        `gorm:"default:0" json:"price"`
	CompletionThreshold int            `gorm:"default:80" json:"completion_threshold"` // percent watched for a lesson to count completed
	UnlockSequential    bool           `gorm:"default:true" json:"unlock_sequential"`
	TotalDuration       int            `gorm:"default:0" json:"total_duration"` // sum of lesson durations, seconds
	EnrollmentCount     int64          `gorm:"default:0" json:"enrollment_count"`
	Rating              float64        `gorm:"default:0" json:"rating"`

	// Relationships
	Lessons     []Lesson     `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"lessons,omitempty"`
	Enrollments []Enrollment `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// Threshold returns the effective completion threshold for the course.
func (c *Course) Threshold() int {
	if c.CompletionThreshold <= 0 {
		return DefaultCompletionThreshold
	}
	return c.CompletionThreshold
}

// Lesson represents a single video lesson within a course.
// Order is zero-based and contiguous within its course; the sequential
// unlock rule depends on that invariant, which the authoring endpoints
// enforce at write time.
type Lesson struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID           uint           `gorm:"not null;index;uniqueIndex:idx_course_order" json:"course_id"`
	Order              int            `gorm:"column:lesson_order;not null;uniqueIndex:idx_course_order" json:"order"`
	Title              string         `gorm:"not null" json:"title"`
	IsPreview          bool           `gorm:"default:false" json:"is_preview"` // previews bypass enrollment gating
	Duration           int            `gorm:"default:0" json:"duration"`       // seconds
	VideoID            string         `gorm:"type:varchar(100);not null" json:"video_id"`
	VideoProvider      string         `gorm:"type:varchar(20);default:'embed'" json:"video_provider"` // embed, rest
	LearningObjectives datatypes.JSON `gorm:"type:jsonb" json:"learning_objectives,omitempty"`

	// Relationships
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}
