package model

import (
	"time"
)

// LessonProgress records how much of a lesson's video a user has watched.
// One row per (user, course, lesson); derived fields are recomputed on every
// write from the raw watched/total seconds, never trusted from the caller.
type LessonProgress struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
	UserID               uint      `gorm:"not null;uniqueIndex:idx_user_course_lesson" json:"user_id"`
	CourseID             uint      `gorm:"not null;index;uniqueIndex:idx_user_course_lesson" json:"course_id"`
	LessonID             uint      `gorm:"not null;uniqueIndex:idx_user_course_lesson" json:"lesson_id"`
	WatchedSeconds       float64   `gorm:"default:0" json:"watched_seconds"`
	TotalSeconds         float64   `gorm:"default:0" json:"total_seconds"`
	CompletionPercentage float64   `gorm:"default:0" json:"completion_percentage"` // clamped [0,100]
	IsCompleted          bool      `gorm:"default:false;index" json:"is_completed"`
	FirstWatchedAt       time.Time `json:"first_watched_at"` // set once, never overwritten
	LastWatchedAt        time.Time `json:"last_watched_at"`

	// Relationships
	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Lesson Lesson `gorm:"foreignKey:LessonID;constraint:OnDelete:CASCADE" json:"-"`
}

// CourseProgress is derived per request from lesson progress rows; it is
// never persisted as a source of truth.
type CourseProgress struct {
	CourseID          uint    `json:"course_id"`
	TotalLessons      int     `json:"total_lessons"`
	CompletedLessons  int     `json:"completed_lessons"`
	OverallCompletion float64 `json:"overall_completion"`
	CurrentLessonID   *uint   `json:"current_lesson_id,omitempty"`       // first lesson not yet completed
	LastAccessedID    *uint   `json:"last_accessed_lesson_id,omitempty"` // lesson with max last_watched_at
}
