package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lingodeck/api/model"
	"github.com/lingodeck/api/utils/cache"
	"gorm.io/gorm"
)

// DirectoryTTL is how long a course document stays cached.
const DirectoryTTL = 5 * time.Minute

// DirectoryService provides read-only, cached access to course and
// lesson documents. Writes happen on the authoring side; learners only
// ever read through here.
type DirectoryService struct {
	db    *gorm.DB
	cache *cache.TTLCache[*model.Course]
}

// NewDirectoryService creates a directory over db with the given course
// cache. The cache is owned by the caller so tests can inject a clock.
func NewDirectoryService(db *gorm.DB, courseCache *cache.TTLCache[*model.Course]) *DirectoryService {
	if courseCache == nil {
		courseCache = cache.NewTTLCache[*model.Course](DirectoryTTL, nil)
	}
	return &DirectoryService{
		db:    db,
		cache: courseCache,
	}
}

func courseKey(courseID uint) string {
	return fmt.Sprintf("course:%d", courseID)
}

// GetCourse returns the course with its lessons in order, or nil when it
// does not exist.
func (s *DirectoryService) GetCourse(ctx context.Context, courseID uint) (*model.Course, error) {
	if course, ok := s.cache.Get(courseKey(courseID)); ok {
		return course, nil
	}

	var course model.Course
	err := s.db.WithContext(ctx).
		Preload("Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("lesson_order ASC")
		}).
		First(&course, courseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load course %d: %w", courseID, err)
	}

	s.cache.Set(courseKey(courseID), &course)
	return &course, nil
}

// InvalidateCourse drops the cached course, forcing a fresh read.
func (s *DirectoryService) InvalidateCourse(courseID uint) {
	s.cache.Invalidate(courseKey(courseID))
}

// GetLesson returns a lesson of the course, or nil when either is missing.
func (s *DirectoryService) GetLesson(ctx context.Context, courseID, lessonID uint) (*model.Lesson, error) {
	course, err := s.GetCourse(ctx, courseID)
	if err != nil || course == nil {
		return nil, err
	}
	for i := range course.Lessons {
		if course.Lessons[i].ID == lessonID {
			return &course.Lessons[i], nil
		}
	}
	return nil, nil
}

// GetNextLesson returns the lesson following the given one by order, or
// nil at the end of the course.
func (s *DirectoryService) GetNextLesson(ctx context.Context, courseID, lessonID uint) (*model.Lesson, error) {
	return s.adjacentLesson(ctx, courseID, lessonID, 1)
}

// GetPreviousLesson returns the lesson preceding the given one by order,
// or nil at the start of the course.
func (s *DirectoryService) GetPreviousLesson(ctx context.Context, courseID, lessonID uint) (*model.Lesson, error) {
	return s.adjacentLesson(ctx, courseID, lessonID, -1)
}

func (s *DirectoryService) adjacentLesson(ctx context.Context, courseID, lessonID uint, offset int) (*model.Lesson, error) {
	course, err := s.GetCourse(ctx, courseID)
	if err != nil || course == nil {
		return nil, err
	}

	current, err := s.GetLesson(ctx, courseID, lessonID)
	if err != nil || current == nil {
		return nil, err
	}

	target := current.Order + offset
	for i := range course.Lessons {
		if course.Lessons[i].Order == target {
			return &course.Lessons[i], nil
		}
	}
	return nil, nil
}

// AccessibleLessons lists the lessons currently open to a user with the
// given completed set, for navigation UI. Enforcement happens in the
// access engine; both share the AccessiblePrefix predicate.
func (s *DirectoryService) AccessibleLessons(ctx context.Context, courseID uint, completed map[uint]bool, allowPreview bool) ([]model.Lesson, error) {
	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, nil
	}
	if !course.UnlockSequential {
		return course.Lessons, nil
	}
	return AccessiblePrefix(course.Lessons, completed, allowPreview), nil
}
