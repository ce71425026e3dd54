package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lingodeck/api/model"
	"github.com/lingodeck/api/utils/cache"
)

// newTestDB opens a fresh in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Lesson{},
		&model.Enrollment{},
		&model.LessonProgress{},
		&model.CoursePayment{},
		&model.CronJobLog{},
	))
	return db
}

func newDirectory(t *testing.T, db *gorm.DB) *DirectoryService {
	t.Helper()
	return NewDirectoryService(db, cache.NewTTLCache[*model.Course](DirectoryTTL, nil))
}

// seedCourse creates a course with n lessons, lessons[0] marked preview
// when withPreview is set. Lesson orders are contiguous from zero.
func seedCourse(t *testing.T, db *gorm.DB, n int, withPreview bool) *model.Course {
	t.Helper()

	course := &model.Course{
		Title:               "Spanish for Beginners",
		Language:            "es",
		Level:               "A1",
		CompletionThreshold: 80,
		UnlockSequential:    true,
	}
	require.NoError(t, db.Create(course).Error)

	for i := 0; i < n; i++ {
		lesson := &model.Lesson{
			CourseID:      course.ID,
			Order:         i,
			Title:         "Lesson",
			Duration:      300,
			VideoID:       "vid",
			VideoProvider: "embed",
			IsPreview:     withPreview && i == 0,
		}
		require.NoError(t, db.Create(lesson).Error)
	}

	require.NoError(t, db.Preload("Lessons", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("lesson_order ASC")
	}).First(course, course.ID).Error)
	return course
}

// seedUser creates a learner account.
func seedUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()

	user := &model.User{
		Email:        email,
		PasswordHash: "x",
		Name:         "Test Learner",
		Role:         model.RoleLearner,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// completeLesson records completed progress for a lesson.
func completeLesson(t *testing.T, db *gorm.DB, userID, courseID, lessonID uint) {
	t.Helper()

	require.NoError(t, db.Create(&model.LessonProgress{
		UserID:               userID,
		CourseID:             courseID,
		LessonID:             lessonID,
		WatchedSeconds:       280,
		TotalSeconds:         300,
		CompletionPercentage: 93.3,
		IsCompleted:          true,
	}).Error)
}
